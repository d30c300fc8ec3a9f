package feedback

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
	"github.com/errdocs/retrieval-engine/pkg/redis"
	"github.com/errdocs/retrieval-engine/pkg/resilience"
)

// RedisStore is the Redis-backed RecordStore. Compare-and-swap maps onto
// WATCH-based optimistic transactions, and every operation runs behind a
// circuit breaker so a dead Redis fails fast instead of stalling feedback
// writers.
type RedisStore struct {
	client  *redis.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client *redis.Client, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = 2 * time.Second
	}
	return &RedisStore{
		client:  client,
		breaker: resilience.NewCircuitBreaker("feedback-redis", resilience.CircuitBreakerConfig{}),
		timeout: opTimeout,
	}
}

func (r *RedisStore) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	err := r.breaker.Execute(func() error {
		opCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return fn(opCtx)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(apperrors.ErrStoreUnavailable, 503, err.Error())
	}
	return err
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var found bool
	err := r.execute(ctx, func(ctx context.Context) error {
		var opErr error
		data, found, opErr = r.client.GetBytes(ctx, key)
		return opErr
	})
	return data, found, err
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, key string, expected, updated []byte) (bool, error) {
	var swapped bool
	err := r.execute(ctx, func(ctx context.Context) error {
		var opErr error
		swapped, opErr = r.client.CompareAndSwap(ctx, key, expected, updated)
		return opErr
	})
	return swapped, err
}

func (r *RedisStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	var result map[string][]byte
	err := r.execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = r.client.ScanPrefix(ctx, prefix)
		return opErr
	})
	return result, err
}
