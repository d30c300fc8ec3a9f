package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEmptyCorpus      = errors.New("corpus has no usable documents")
	ErrFeedbackConflict = errors.New("feedback write conflict")
	ErrStoreUnavailable = errors.New("feedback store unavailable")
	ErrInvalidStrategy  = errors.New("invalid ranking strategy")
	ErrInvalidInput     = errors.New("invalid input")
	ErrRebuildFailed    = errors.New("index rebuild failed")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEmptyCorpus):
		return http.StatusNotFound
	case errors.Is(err, ErrFeedbackConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidStrategy):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
