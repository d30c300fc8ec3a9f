package feedback

import (
	"context"
	"math"
	"testing"

	"github.com/errdocs/retrieval-engine/internal/index/tokenizer"
)

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"a", "b", "c"}, []string{"a", "b", "c"}, 1.0},
		{"disjoint", []string{"a", "b"}, []string{"c", "d"}, 0.0},
		{"half", []string{"a", "b", "c"}, []string{"a", "b", "d"}, 0.5},
		{"subset", []string{"a", "b", "c", "d"}, []string{"a", "b", "c"}, 0.75},
		{"empty", nil, []string{"a"}, 0.0},
		{"both_empty", nil, nil, 0.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Jaccard(tc.a, tc.b); math.Abs(got-tc.want) > epsilon {
				t.Errorf("Jaccard(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestPatternConfidence(t *testing.T) {
	if got := patternConfidence(1); got != 85 {
		t.Errorf("confidence(1) = %f, want 85", got)
	}
	if got := patternConfidence(2); got != 90 {
		t.Errorf("confidence(2) = %f, want 90", got)
	}
	if got := patternConfidence(100); got != 99 {
		t.Errorf("confidence(100) = %f, want cap 99", got)
	}
}

// A pattern serves the fast path only after two confirmations push its
// confidence past the floor.
func TestMatchPatternGate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	query := "payment rejected negative quantity"
	sig := tokenizer.Signature(query)

	if _, _, ok := s.MatchPattern(ctx, sig); ok {
		t.Fatal("fast path open with no patterns stored")
	}

	if _, err := s.RecordFeedback(ctx, query, "doc1", "doc1", "hybrid"); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	if _, _, ok := s.MatchPattern(ctx, sig); ok {
		t.Fatal("fast path open after a single confirmation")
	}

	if _, err := s.RecordFeedback(ctx, query, "doc1", "doc1", "hybrid"); err != nil {
		t.Fatalf("second confirmation: %v", err)
	}
	pattern, sim, ok := s.MatchPattern(ctx, sig)
	if !ok {
		t.Fatal("fast path closed after two confirmations")
	}
	if pattern.BestDoc != "doc1" {
		t.Errorf("BestDoc = %s, want doc1", pattern.BestDoc)
	}
	if pattern.Confidence < 90 {
		t.Errorf("Confidence = %f, want >= 90", pattern.Confidence)
	}
	if sim != 1.0 {
		t.Errorf("similarity for exact signature = %f, want 1.0", sim)
	}
}

// Near-duplicate phrasings of a confirmed query match the stored pattern
// when their signatures overlap enough.
func TestMatchPatternNearDuplicate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	query := "payment rejected negative quantity value"

	for i := 0; i < 2; i++ {
		if _, err := s.RecordFeedback(ctx, query, "doc1", "doc1", "hybrid"); err != nil {
			t.Fatalf("confirmation %d: %v", i, err)
		}
	}

	// Four of five terms shared: Jaccard 0.8, right at the threshold.
	near := tokenizer.Signature("payment rejected negative quantity")
	pattern, sim, ok := s.MatchPattern(ctx, near)
	if !ok {
		t.Fatalf("near-duplicate signature did not match (sim %f)", sim)
	}
	if pattern.BestDoc != "doc1" {
		t.Errorf("BestDoc = %s, want doc1", pattern.BestDoc)
	}

	// Two of six shared terms is far below the threshold.
	far := tokenizer.Signature("negative balance in savings account reconciliation")
	if _, sim, ok := s.MatchPattern(ctx, far); ok {
		t.Errorf("dissimilar signature matched at sim %f", sim)
	}
}

// Confirmations of a different document erode the cached answer and
// eventually replace it.
func TestConfirmPatternReplacement(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	query := "negative quantity"

	for i := 0; i < 2; i++ {
		if _, err := s.RecordFeedback(ctx, query, "doc1", "doc1", "hybrid"); err != nil {
			t.Fatalf("doc1 confirmation %d: %v", i, err)
		}
	}

	// One contradiction decrements the count below the fast-path minimum.
	if _, err := s.RecordFeedback(ctx, query, "doc2", "doc2", "hybrid"); err != nil {
		t.Fatalf("doc2 confirmation: %v", err)
	}
	sig := tokenizer.Signature(query)
	if _, _, ok := s.MatchPattern(ctx, sig); ok {
		t.Fatal("fast path still open after contradiction dropped the count")
	}

	// A second contradiction replaces the cached best document.
	if _, err := s.RecordFeedback(ctx, query, "doc2", "doc2", "hybrid"); err != nil {
		t.Fatalf("second doc2 confirmation: %v", err)
	}
	pattern, _, err := s.LookupPattern(ctx, sig)
	if err != nil {
		t.Fatalf("LookupPattern: %v", err)
	}
	if pattern == nil || pattern.BestDoc != "doc2" {
		t.Fatalf("pattern = %+v, want BestDoc doc2", pattern)
	}
	if pattern.Count != 1 {
		t.Errorf("Count after replacement = %d, want 1", pattern.Count)
	}
}

func TestLookupPatternPicksMostSimilar(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	if err := s.confirmPattern(ctx, tokenizer.Signature("negative quantity value"), "docA"); err != nil {
		t.Fatalf("confirmPattern: %v", err)
	}
	if err := s.confirmPattern(ctx, tokenizer.Signature("missing required field"), "docB"); err != nil {
		t.Fatalf("confirmPattern: %v", err)
	}

	pattern, sim, err := s.LookupPattern(ctx, tokenizer.Signature("negative quantity"))
	if err != nil {
		t.Fatalf("LookupPattern: %v", err)
	}
	if pattern == nil || pattern.BestDoc != "docA" {
		t.Fatalf("pattern = %+v, want docA", pattern)
	}
	if sim <= 0 {
		t.Errorf("similarity = %f, want > 0", sim)
	}
}

func TestLookupPatternEmptySignature(t *testing.T) {
	s := newTestStore()
	pattern, sim, err := s.LookupPattern(context.Background(), nil)
	if err != nil || pattern != nil || sim != 0 {
		t.Errorf("empty signature: got (%v, %f, %v), want (nil, 0, nil)", pattern, sim, err)
	}
	if _, _, ok := s.MatchPattern(context.Background(), nil); ok {
		t.Error("empty signature opened the fast path")
	}
}
