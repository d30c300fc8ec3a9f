package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/errdocs/retrieval-engine/internal/corpus"
	"github.com/errdocs/retrieval-engine/internal/feedback"
	"github.com/errdocs/retrieval-engine/internal/index"
	"github.com/errdocs/retrieval-engine/pkg/config"
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		TopK:             5,
		TFIDFWeight:      0.4,
		BM25Weight:       0.6,
		BM25K1:           1.5,
		BM25B:            0.75,
		EMAAlpha:         0.1,
		PatternThreshold: 0.8,
		PatternMinCount:  2,
		PatternMinConf:   90,
	}
}

// newTestEngine builds an engine over an in-memory corpus and feedback store
// and runs the initial rebuild.
func newTestEngine(t *testing.T, docs []corpus.Document) *Engine {
	t.Helper()
	controller := index.NewController(corpus.StaticSource(docs), index.BuildParams{
		BM25K1: 1.5,
		BM25B:  0.75,
	}, time.Second)
	store := feedback.NewStore(feedback.NewMemStore(), feedback.DefaultConfig())
	eng, err := New(controller, store, testEngineConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Rebuild(context.Background()); err != nil {
		t.Fatalf("initial Rebuild: %v", err)
	}
	return eng
}

func twoDocCorpus() []corpus.Document {
	return []corpus.Document{
		{ID: "doc1", Text: "negative value quantity"},
		{ID: "doc2", Text: "missing required field"},
	}
}

func TestSearchMatchesRightDocument(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())

	for _, strat := range RankingStrategies() {
		result, err := eng.Search(context.Background(), "quantity is negative", strat)
		if err != nil {
			t.Fatalf("%s: Search: %v", strat, err)
		}
		if result.DocID != "doc1" {
			t.Errorf("%s: DocID = %s, want doc1", strat, result.DocID)
		}
		if result.Confidence <= 0 || result.Confidence > 100 {
			t.Errorf("%s: Confidence = %f, outside (0,100]", strat, result.Confidence)
		}
		if result.FastPath {
			t.Errorf("%s: fast path taken with no confirmed patterns", strat)
		}
	}
}

// With no feedback history, the calibrated confidence is exactly the raw
// fused score.
func TestSearchColdStartNeutrality(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())

	result, err := eng.Search(context.Background(), "quantity is negative", StrategyHybrid)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Confidence != result.RawScore {
		t.Errorf("cold start: Confidence %f != RawScore %f", result.Confidence, result.RawScore)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())

	for _, q := range []string{"", "   "} {
		if _, err := eng.Search(context.Background(), q, StrategyHybrid); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("query %q: got %v, want ErrInvalidInput", q, err)
		}
	}
}

func TestSearchBeforeFirstBuild(t *testing.T) {
	controller := index.NewController(corpus.StaticSource(nil), index.BuildParams{}, time.Second)
	store := feedback.NewStore(feedback.NewMemStore(), feedback.DefaultConfig())
	eng, err := New(controller, store, testEngineConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := eng.Rebuild(context.Background()); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("Rebuild over empty corpus: got %v, want ErrEmptyCorpus", err)
	}
	if _, err := eng.Search(context.Background(), "anything at all", StrategyHybrid); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("Search with no generation: got %v, want ErrEmptyCorpus", err)
	}
}

// Documents that tokenise to nothing are excluded from ranking but do not
// break indexing or search.
func TestSearchSkipsUnusableDocuments(t *testing.T) {
	docs := append(twoDocCorpus(),
		corpus.Document{ID: "zz-stopwords", Text: "the of and is to"},
	)
	eng := newTestEngine(t, docs)

	result, err := eng.Search(context.Background(), "missing field", StrategyHybrid)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.DocID != "doc2" {
		t.Errorf("DocID = %s, want doc2", result.DocID)
	}
}

// Two confirmed corrections open the pattern fast path for the same query.
func TestSearchFastPathAfterConfirmations(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())
	ctx := context.Background()
	query := "quantity is negative"

	first, err := eng.Search(ctx, query, StrategyHybrid)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if first.FastPath {
		t.Fatal("fast path open before any feedback")
	}

	for i := 0; i < 2; i++ {
		if _, err := eng.SubmitFeedback(ctx, query, first.DocID, first.DocID, StrategyHybrid); err != nil {
			t.Fatalf("SubmitFeedback %d: %v", i, err)
		}
	}

	cached, err := eng.Search(ctx, query, StrategyHybrid)
	if err != nil {
		t.Fatalf("Search after confirmations: %v", err)
	}
	if !cached.FastPath {
		t.Fatal("fast path closed after two confirmations")
	}
	if cached.DocID != first.DocID {
		t.Errorf("cached DocID = %s, want %s", cached.DocID, first.DocID)
	}
	if cached.Confidence < 90 {
		t.Errorf("cached Confidence = %f, want >= 90", cached.Confidence)
	}

	// A near-duplicate phrasing rides the same cached pattern.
	variant, err := eng.Search(ctx, "Quantity NEGATIVE!", StrategyHybrid)
	if err != nil {
		t.Fatalf("variant Search: %v", err)
	}
	if !variant.FastPath || variant.DocID != first.DocID {
		t.Errorf("variant: fastPath=%v doc=%s, want cached doc1", variant.FastPath, variant.DocID)
	}
}

// A correction drags the calibrated confidence of the wrongly predicted
// pair below the raw score on subsequent searches.
func TestCorrectionLowersConfidence(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())
	ctx := context.Background()
	query := "quantity is negative"

	baseline, err := eng.Search(ctx, query, StrategyHybrid)
	if err != nil {
		t.Fatalf("baseline Search: %v", err)
	}
	if _, err := eng.SubmitFeedback(ctx, query, baseline.DocID, "doc2", StrategyHybrid); err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}

	adjusted, err := eng.Search(ctx, query, StrategyHybrid)
	if err != nil {
		t.Fatalf("adjusted Search: %v", err)
	}
	if adjusted.FastPath {
		t.Fatal("a correction should not open the fast path")
	}
	if adjusted.DocID != baseline.DocID {
		t.Fatalf("ranking changed without a rebuild: %s vs %s", adjusted.DocID, baseline.DocID)
	}
	if adjusted.Confidence >= adjusted.RawScore {
		t.Errorf("Confidence %f not below RawScore %f after correction", adjusted.Confidence, adjusted.RawScore)
	}
}

func TestSubmitFeedbackValidation(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())
	ctx := context.Background()

	cases := []struct {
		name                string
		query, pred, actual string
	}{
		{"empty_query", "", "doc1", "doc1"},
		{"empty_predicted", "negative quantity", "", "doc1"},
		{"empty_actual", "negative quantity", "doc1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := eng.SubmitFeedback(ctx, tc.query, tc.pred, tc.actual, StrategyHybrid); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestSubmitFeedbackOutcome(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())
	ctx := context.Background()

	outcome, err := eng.SubmitFeedback(ctx, "negative quantity", "doc2", "doc1", StrategyBM25)
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if outcome.Correct {
		t.Error("correction reported Correct")
	}
	if outcome.EngineAccuracy != 0 {
		t.Errorf("EngineAccuracy = %f, want 0 after a single miss", outcome.EngineAccuracy)
	}
}

func TestSearchMulti(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())

	results, err := eng.SearchMulti(context.Background(), "quantity is negative")
	if err != nil {
		t.Fatalf("SearchMulti: %v", err)
	}
	if len(results) != len(RankingStrategies()) {
		t.Fatalf("got %d results, want %d", len(results), len(RankingStrategies()))
	}

	seen := make(map[Strategy]bool)
	for _, r := range results {
		if seen[r.Strategy] {
			t.Errorf("strategy %s appears twice", r.Strategy)
		}
		seen[r.Strategy] = true
		if r.DocID != "doc1" {
			t.Errorf("%s: DocID = %s, want doc1", r.Strategy, r.DocID)
		}
	}
}

// The ensemble strategy routes Search through SearchMulti and answers with
// its best-ranked result.
func TestSearchEnsemble(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())

	result, err := eng.Search(context.Background(), "quantity is negative", StrategyEnsemble)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.DocID != "doc1" {
		t.Errorf("DocID = %s, want doc1", result.DocID)
	}
}

// Rebuilding between searches does not disturb in-flight determinism: the
// same query returns the same winner before and after.
func TestSearchStableAcrossRebuilds(t *testing.T) {
	eng := newTestEngine(t, twoDocCorpus())
	ctx := context.Background()

	before, err := eng.Search(ctx, "missing required field", StrategyHybrid)
	if err != nil {
		t.Fatalf("Search before rebuild: %v", err)
	}
	if err := eng.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	after, err := eng.Search(ctx, "missing required field", StrategyHybrid)
	if err != nil {
		t.Fatalf("Search after rebuild: %v", err)
	}
	if before.DocID != after.DocID {
		t.Errorf("winner changed across rebuild: %s vs %s", before.DocID, after.DocID)
	}
}
