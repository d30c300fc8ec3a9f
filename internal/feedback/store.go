package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/errdocs/retrieval-engine/internal/index/tokenizer"
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
	"github.com/errdocs/retrieval-engine/pkg/resilience"
)

// Key prefixes for the record types. Keys embed the normalised query, so the
// same question phrased with different punctuation or casing lands on the
// same record.
const (
	keyQueryDoc   = "feedback:qd:"
	keyDocument   = "feedback:doc:"
	keyEngine     = "feedback:engine:"
	keyPattern    = "feedback:pattern:"
	keyPrediction = "feedback:pred:"
)

// RecordStore is the persistence contract the feedback store needs: per-key
// get and compare-and-swap, plus prefix scanning for pattern signatures. A
// nil expected value in CompareAndSwap means the key must not exist yet.
type RecordStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	CompareAndSwap(ctx context.Context, key string, expected, updated []byte) (bool, error)
	Scan(ctx context.Context, prefix string) (map[string][]byte, error)
}

// Config holds the learning parameters.
type Config struct {
	// Alpha is the EMA smoothing factor for query-document success rates.
	Alpha float64
	// PatternThreshold is the minimum Jaccard similarity for a pattern match.
	PatternThreshold float64
	// PatternMinCount is the confirmation count a pattern needs before it can
	// serve the fast path.
	PatternMinCount int64
	// PatternMinConf is the minimum derived confidence for the fast path.
	PatternMinConf float64
	// Retry bounds the compare-and-swap conflict retries.
	Retry resilience.RetryConfig
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:            0.1,
		PatternThreshold: 0.8,
		PatternMinCount:  2,
		PatternMinConf:   90,
		Retry: resilience.RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 2 * time.Millisecond,
			MaxDelay:     50 * time.Millisecond,
		},
	}
}

// ConflictObserver is notified whenever a compare-and-swap loses a race.
type ConflictObserver func()

// Store implements the feedback operations on top of a RecordStore.
type Store struct {
	records    RecordStore
	cfg        Config
	logger     *slog.Logger
	onConflict ConflictObserver
}

// NewStore creates a Store with the given persistence backend.
func NewStore(records RecordStore, cfg Config) *Store {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultConfig().Alpha
	}
	if cfg.PatternThreshold <= 0 {
		cfg.PatternThreshold = DefaultConfig().PatternThreshold
	}
	if cfg.PatternMinCount <= 0 {
		cfg.PatternMinCount = DefaultConfig().PatternMinCount
	}
	if cfg.PatternMinConf <= 0 {
		cfg.PatternMinConf = DefaultConfig().PatternMinConf
	}
	return &Store{
		records: records,
		cfg:     cfg,
		logger:  slog.Default().With("component", "feedback-store"),
	}
}

// OnConflict registers an observer for CAS conflicts (e.g. a metrics
// counter).
func (s *Store) OnConflict(fn ConflictObserver) {
	s.onConflict = fn
}

func queryDocKey(normQuery, docID string) string {
	return keyQueryDoc + normQuery + "|" + docID
}

// errConflict marks a lost CAS race inside a mutate attempt so the retry
// wrapper can distinguish it from a hard store failure.
var errConflict = errors.New("cas conflict")

// mutate runs a read-modify-write cycle on one key under the bounded retry
// policy. Conflicts are retried with backoff and surfaced as
// ErrFeedbackConflict when the budget is exhausted; they are never silently
// dropped.
func (s *Store) mutate(ctx context.Context, key string, apply func(data []byte, found bool) ([]byte, error)) error {
	op := func() error {
		data, found, err := s.records.Get(ctx, key)
		if err != nil {
			return err
		}
		updated, err := apply(data, found)
		if err != nil {
			return err
		}
		var expected []byte
		if found {
			expected = data
		}
		ok, err := s.records.CompareAndSwap(ctx, key, expected, updated)
		if err != nil {
			return err
		}
		if !ok {
			if s.onConflict != nil {
				s.onConflict()
			}
			return errConflict
		}
		return nil
	}
	if err := resilience.Retry(ctx, "feedback-write", s.cfg.Retry, op); err != nil {
		if errors.Is(err, errConflict) {
			return apperrors.Newf(apperrors.ErrFeedbackConflict, 409, "key %s", key)
		}
		return fmt.Errorf("updating feedback record %s: %w", key, err)
	}
	return nil
}

// mutateRecord is mutate with JSON (de)serialisation of a typed record. It
// returns the record as written.
func mutateRecord[T any](ctx context.Context, s *Store, key string, apply func(rec *T, found bool)) (T, error) {
	var out T
	err := s.mutate(ctx, key, func(data []byte, found bool) ([]byte, error) {
		var rec T
		if found {
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil, fmt.Errorf("decoding record %s: %w", key, err)
			}
		}
		apply(&rec, found)
		out = rec
		return json.Marshal(rec)
	})
	return out, err
}

// getRecord reads a typed record without modifying it.
func getRecord[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var rec T
	data, found, err := s.records.Get(ctx, key)
	if err != nil || !found {
		return rec, false, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, fmt.Errorf("decoding record %s: %w", key, err)
	}
	return rec, true, nil
}

// RecordPrediction books a prediction before ground truth is known. It never
// blocks the query path on correctness; persistence failures are returned so
// the caller can log and count them, but a search result is still served.
func (s *Store) RecordPrediction(ctx context.Context, query, docID string, confidence float64, engine string) error {
	norm := tokenizer.NormalizeQuery(query)
	_, err := mutateRecord[Prediction](ctx, s, keyPrediction+norm, func(rec *Prediction, found bool) {
		rec.Query = norm
		rec.DocID = docID
		rec.Confidence = confidence
		rec.Engine = engine
		rec.Count++
		rec.LastAt = time.Now().UTC()
	})
	return err
}

// RecordFeedback applies one ground-truth observation: the predicted
// document was either confirmed (predicted == actual) or corrected. It
// atomically updates the query-document EMA, the document counters, and the
// engine counters, and feeds confirmed answers into the pattern cache. On a
// mismatch the actual document's own query-document record is also pulled
// up, recording that it should have been shown.
func (s *Store) RecordFeedback(ctx context.Context, query, predictedDoc, actualDoc, engine string) (Outcome, error) {
	norm := tokenizer.NormalizeQuery(query)
	correct := predictedDoc == actualDoc

	qd, err := mutateRecord[QueryDocStat](ctx, s, queryDocKey(norm, predictedDoc), func(rec *QueryDocStat, found bool) {
		applyObservation(rec, norm, predictedDoc, correct, s.cfg.Alpha, found)
	})
	if err != nil {
		return Outcome{}, err
	}

	if !correct {
		if _, err := mutateRecord[QueryDocStat](ctx, s, queryDocKey(norm, actualDoc), func(rec *QueryDocStat, found bool) {
			applyObservation(rec, norm, actualDoc, true, s.cfg.Alpha, found)
		}); err != nil {
			return Outcome{}, err
		}
	}

	doc, err := mutateRecord[DocumentStat](ctx, s, keyDocument+predictedDoc, func(rec *DocumentStat, found bool) {
		rec.DocID = predictedDoc
		rec.TimesShown++
		if correct {
			rec.TimesCorrect++
		}
	})
	if err != nil {
		return Outcome{}, err
	}

	eng, err := mutateRecord[EngineStat](ctx, s, keyEngine+engine, func(rec *EngineStat, found bool) {
		rec.Engine = engine
		if correct {
			rec.Correct++
		} else {
			rec.Incorrect++
		}
	})
	if err != nil {
		return Outcome{}, err
	}

	if correct {
		if err := s.confirmPattern(ctx, tokenizer.Signature(query), actualDoc); err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{
		Correct:        correct,
		SuccessRate:    qd.SuccessRate,
		DocAccuracy:    doc.Accuracy(),
		EngineAccuracy: eng.Accuracy(),
		EngineWeight:   eng.Weight(),
	}, nil
}

// applyObservation folds one observation into a QueryDocStat. The EMA seeds
// from the first observation; the neutral 0.5 cold-start value only applies
// to reads of records that do not exist yet.
func applyObservation(rec *QueryDocStat, query, docID string, success bool, alpha float64, found bool) {
	rec.Query = query
	rec.DocID = docID
	observation := 0.0
	if success {
		observation = 1.0
		rec.SuccessCount++
	}
	rec.TotalCount++
	if !found {
		rec.SuccessRate = observation
		return
	}
	rec.SuccessRate = alpha*observation + (1-alpha)*rec.SuccessRate
}

// Adjustment breaks a confidence calibration into its components.
type Adjustment struct {
	Raw          float64 `json:"raw"`
	HistoryBoost float64 `json:"history_boost"`
	DocBoost     float64 `json:"doc_boost"`
	PatternBoost float64 `json:"pattern_boost"`
	Final        float64 `json:"final"`
}

// AdjustConfidence calibrates a raw fused confidence with the historical
// signals for this query-document pair. A pair with no history returns the
// raw value unchanged. Store read failures degrade to the raw score rather
// than failing the query; "no good match" and "no history" are valid
// outcomes, a lost search is not.
func (s *Store) AdjustConfidence(ctx context.Context, query, docID string, raw float64, engine string) Adjustment {
	adj := Adjustment{Raw: raw}
	norm := tokenizer.NormalizeQuery(query)

	if qd, found, err := getRecord[QueryDocStat](ctx, s, queryDocKey(norm, docID)); err != nil {
		s.logger.Warn("query-doc history unavailable, using raw confidence", "error", err)
	} else if found {
		// The penalty slope is steeper than the reward slope: a pair that
		// keeps being wrong loses confidence twice as fast as a pair that
		// keeps being right gains it.
		boost := 5.0
		if qd.SuccessRate < 0.5 {
			boost = 10.0
		}
		adj.HistoryBoost = (qd.SuccessRate - 0.5) * boost
	}

	if doc, found, err := getRecord[DocumentStat](ctx, s, keyDocument+docID); err != nil {
		s.logger.Warn("document history unavailable", "error", err)
	} else if found && doc.TimesShown > 0 {
		adj.DocBoost = (doc.Accuracy() - 0.5) * 5
	}

	if pattern, jaccard, err := s.LookupPattern(ctx, tokenizer.Signature(query)); err != nil {
		s.logger.Warn("pattern lookup unavailable", "error", err)
	} else if pattern != nil && jaccard >= s.cfg.PatternThreshold && pattern.BestDoc == docID {
		adj.PatternBoost = jaccard * 5
	}

	adj.Final = clamp(raw+adj.HistoryBoost+adj.DocBoost+adj.PatternBoost, 0, 100)
	return adj
}

// EngineWeight returns the UCB1-style weight for an engine; 0.5 with no
// recorded outcomes.
func (s *Store) EngineWeight(ctx context.Context, engine string) (float64, error) {
	eng, found, err := getRecord[EngineStat](ctx, s, keyEngine+engine)
	if err != nil {
		return 0, err
	}
	if !found {
		return EngineStat{}.Weight(), nil
	}
	return eng.Weight(), nil
}

// QueryDocHistory returns the stored stat for a (query, doc) pair, if any.
func (s *Store) QueryDocHistory(ctx context.Context, query, docID string) (QueryDocStat, bool, error) {
	return getRecord[QueryDocStat](ctx, s, queryDocKey(tokenizer.NormalizeQuery(query), docID))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
