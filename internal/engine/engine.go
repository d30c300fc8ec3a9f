// Package engine is the hybrid retrieval and adaptive feedback core. It
// matches a free-text error message to the most relevant document in the
// current index generation, calibrates the confidence with feedback-store
// signals, and learns from corrections.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/errdocs/retrieval-engine/internal/feedback"
	"github.com/errdocs/retrieval-engine/internal/index"
	"github.com/errdocs/retrieval-engine/internal/index/tokenizer"
	"github.com/errdocs/retrieval-engine/internal/rank"
	"github.com/errdocs/retrieval-engine/pkg/config"
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
	"github.com/errdocs/retrieval-engine/pkg/kafka"
	"github.com/errdocs/retrieval-engine/pkg/metrics"
	"github.com/errdocs/retrieval-engine/pkg/tracing"
)

// Result is one answered query.
type Result struct {
	DocID      string   `json:"doc_id"`
	Confidence float64  `json:"confidence"`
	Strategy   Strategy `json:"-"`
	RawScore   float64  `json:"raw_score"`
	// FastPath reports whether the answer came from the query-pattern cache
	// without running full ranking.
	FastPath bool `json:"fast_path"`
}

// OutcomeEvent is published to the feedback-outcomes topic after every
// accepted correction.
type OutcomeEvent struct {
	Query     string    `json:"query"`
	Predicted string    `json:"predicted"`
	Actual    string    `json:"actual"`
	Correct   bool      `json:"correct"`
	Engine    string    `json:"engine"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine wires the index controller, the ranking pipeline, and the feedback
// store together behind the four caller-facing operations.
type Engine struct {
	controller *index.Controller
	store      *feedback.Store
	weights    rank.Weights
	topK       int
	logger     *slog.Logger
	metrics    *metrics.Metrics
	producer   *kafka.Producer
}

// New creates an Engine. The metrics collector is optional.
func New(controller *index.Controller, store *feedback.Store, cfg config.EngineConfig, m *metrics.Metrics) (*Engine, error) {
	weights, err := rank.NewWeights(cfg.TFIDFWeight, cfg.BM25Weight)
	if err != nil {
		return nil, err
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	e := &Engine{
		controller: controller,
		store:      store,
		weights:    weights,
		topK:       topK,
		logger:     slog.Default().With("component", "engine"),
		metrics:    m,
	}
	if m != nil {
		store.OnConflict(m.FeedbackConflicts.Inc)
	}
	return e, nil
}

// SetOutcomeProducer attaches an optional Kafka producer for feedback
// outcome events.
func (e *Engine) SetOutcomeProducer(p *kafka.Producer) {
	e.producer = p
}

// Search matches a query against the current generation with the given
// strategy and returns the winning document with a calibrated confidence.
// The query-pattern cache is consulted first; a strong enough match skips
// ranking entirely.
func (e *Engine) Search(ctx context.Context, query string, strat Strategy) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, apperrors.New(apperrors.ErrInvalidInput, 400, "empty query")
	}
	if strat == StrategyEnsemble {
		results, err := e.SearchMulti(ctx, query)
		if err != nil {
			return Result{}, err
		}
		return results[0], nil
	}

	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search", strconv.FormatInt(start.UnixNano(), 36))
	defer func() {
		span.End()
		span.Log()
	}()
	span.SetAttr("strategy", strat.String())

	signature := tokenizer.Signature(query)
	if pattern, sim, ok := e.store.MatchPattern(ctx, signature); ok {
		span.SetAttr("path", "fast")
		if e.metrics != nil {
			e.metrics.PatternCacheHits.Inc()
		}
		result := Result{
			DocID:      pattern.BestDoc,
			Confidence: pattern.Confidence,
			Strategy:   strat,
			RawScore:   pattern.Confidence,
			FastPath:   true,
		}
		e.recordPrediction(ctx, query, result)
		e.observeSearch(strat, "fast", start, result.Confidence)
		e.logger.Debug("pattern cache hit",
			"doc", pattern.BestDoc,
			"jaccard", sim,
			"confirmations", pattern.Count,
		)
		return result, nil
	}
	if e.metrics != nil {
		e.metrics.PatternCacheMisses.Inc()
	}

	gen := e.controller.Current()
	if gen == nil {
		return Result{}, apperrors.New(apperrors.ErrEmptyCorpus, 404, "no index generation available")
	}
	span.SetAttr("generation", gen.ID)

	winner, raw := e.rank(gen, query, strat)
	adj := e.store.AdjustConfidence(ctx, query, winner, raw, strat.String())

	result := Result{
		DocID:      winner,
		Confidence: adj.Final,
		Strategy:   strat,
		RawScore:   raw,
	}
	e.recordPrediction(ctx, query, result)
	e.observeSearch(strat, "full", start, result.Confidence)
	span.SetAttr("path", "full")
	span.SetAttr("doc", winner)
	return result, nil
}

// rank runs the full pipeline for one strategy against a generation and
// returns the winner with its raw fused confidence in [0,100]. The ranking
// itself is stateless and side-effect free; abandoning a query before the
// prediction is recorded discards nothing but CPU time.
func (e *Engine) rank(gen *index.Generation, query string, strat Strategy) (string, float64) {
	tokens := tokenizer.Tokenize(query)
	queryVec := gen.Vectorize(tokens)

	var weights rank.Weights
	switch strat {
	case StrategyTFIDF:
		weights = rank.Weights{TFIDF: 1}
	case StrategyBM25:
		weights = rank.Weights{BM25: 1}
	default:
		weights = e.weights
	}

	cosine := rank.CosineRank(gen, queryVec, e.topK)
	okapi := rank.BM25Rank(gen, tokens, e.topK)
	fused := rank.Fuse(cosine, okapi, weights)
	if len(fused) == 0 {
		// Generations always contain at least one rankable document, so the
		// cosine list is never empty; defensive fallback only.
		return gen.Docs[0], 0
	}
	return fused[0].DocID, fused[0].Combined * 100
}

// SearchMulti runs every ranking strategy, weighs each result by its
// engine's learned UCB weight, and returns the results ranked best first.
func (e *Engine) SearchMulti(ctx context.Context, query string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "empty query")
	}
	gen := e.controller.Current()
	if gen == nil {
		return nil, apperrors.New(apperrors.ErrEmptyCorpus, 404, "no index generation available")
	}

	start := time.Now()
	type weighted struct {
		result Result
		rank   float64
	}
	entries := make([]weighted, 0, len(RankingStrategies()))
	for _, strat := range RankingStrategies() {
		winner, raw := e.rank(gen, query, strat)
		adj := e.store.AdjustConfidence(ctx, query, winner, raw, strat.String())
		weight, err := e.store.EngineWeight(ctx, strat.String())
		if err != nil {
			e.logger.Warn("engine weight unavailable, using neutral", "strategy", strat.String(), "error", err)
			weight = 0.5
		}
		result := Result{
			DocID:      winner,
			Confidence: adj.Final,
			Strategy:   strat,
			RawScore:   raw,
		}
		e.recordPrediction(ctx, query, result)
		entries = append(entries, weighted{result: result, rank: adj.Final * weight})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].rank != entries[j].rank {
			return entries[i].rank > entries[j].rank
		}
		return entries[i].result.DocID < entries[j].result.DocID
	})

	results := make([]Result, len(entries))
	for i, entry := range entries {
		results[i] = entry.result
	}
	e.observeSearch(StrategyEnsemble, "full", start, results[0].Confidence)
	return results, nil
}

// SubmitFeedback records a correction and returns the post-update outcome
// summary. Conflicts that exhaust the retry budget and store outages are
// surfaced, never swallowed: a silently dropped write would corrupt future
// learning.
func (e *Engine) SubmitFeedback(ctx context.Context, query, predictedDoc, actualDoc string, strat Strategy) (feedback.Outcome, error) {
	if strings.TrimSpace(query) == "" || predictedDoc == "" || actualDoc == "" {
		return feedback.Outcome{}, apperrors.New(apperrors.ErrInvalidInput, 400, "query and document ids are required")
	}
	outcome, err := e.store.RecordFeedback(ctx, query, predictedDoc, actualDoc, strat.String())
	if err != nil {
		return feedback.Outcome{}, err
	}

	if e.metrics != nil {
		label := "incorrect"
		if outcome.Correct {
			label = "correct"
		}
		e.metrics.FeedbackTotal.WithLabelValues(strat.String(), label).Inc()
	}
	if e.producer != nil {
		event := OutcomeEvent{
			Query:     tokenizer.NormalizeQuery(query),
			Predicted: predictedDoc,
			Actual:    actualDoc,
			Correct:   outcome.Correct,
			Engine:    strat.String(),
			Timestamp: time.Now().UTC(),
		}
		if err := e.producer.Publish(ctx, kafka.Event{Key: event.Query, Value: event}); err != nil {
			e.logger.Warn("failed to publish feedback outcome event", "error", err)
		}
	}
	return outcome, nil
}

// Rebuild builds a fresh generation from the corpus and swaps it in. A
// failed build keeps the previous generation serving and reports the error.
func (e *Engine) Rebuild(ctx context.Context) error {
	start := time.Now()
	gen, err := e.controller.Rebuild(ctx)
	if e.metrics != nil {
		e.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.RebuildsTotal.WithLabelValues("failure").Inc()
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.RebuildsTotal.WithLabelValues("success").Inc()
		e.metrics.CurrentGeneration.Set(float64(gen.ID))
		e.metrics.IndexedDocuments.Set(float64(len(gen.Docs)))
		e.metrics.VocabularySize.Set(float64(gen.Vocab.Size()))
	}
	return nil
}

// recordPrediction books the prediction without blocking the result on
// persistence; a failed write is logged and counted, and the search still
// answers.
func (e *Engine) recordPrediction(ctx context.Context, query string, result Result) {
	if err := e.store.RecordPrediction(ctx, query, result.DocID, result.Confidence, result.Strategy.String()); err != nil {
		e.logger.Warn("failed to record prediction", "doc", result.DocID, "error", err)
		if e.metrics != nil {
			e.metrics.StorePredictionsLost.Inc()
		}
	}
}

func (e *Engine) observeSearch(strat Strategy, path string, start time.Time, confidence float64) {
	if e.metrics == nil {
		return
	}
	e.metrics.SearchesTotal.WithLabelValues(strat.String(), path).Inc()
	e.metrics.SearchLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	e.metrics.SearchConfidence.WithLabelValues(strat.String()).Observe(confidence)
}
