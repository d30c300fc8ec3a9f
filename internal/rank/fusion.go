package rank

import (
	"fmt"
	"sort"
)

// Default fusion weights; BM25 carries slightly more weight than cosine.
const (
	DefaultTFIDFWeight = 0.4
	DefaultBM25Weight  = 0.6
)

// Weights holds the fusion weights for the two ranking signals. Construct
// via NewWeights so the sum-to-one invariant holds.
type Weights struct {
	TFIDF float64
	BM25  float64
}

// NewWeights validates that the weights are non-negative and sum to 1.0,
// which keeps combined scores inside [0,1].
func NewWeights(tfidf, bm25 float64) (Weights, error) {
	if tfidf < 0 || bm25 < 0 {
		return Weights{}, fmt.Errorf("fusion weights must be non-negative, got (%.3f, %.3f)", tfidf, bm25)
	}
	if sum := tfidf + bm25; sum < 0.999 || sum > 1.001 {
		return Weights{}, fmt.Errorf("fusion weights must sum to 1.0, got %.4f", sum)
	}
	return Weights{TFIDF: tfidf, BM25: bm25}, nil
}

// DefaultWeights returns the (0.4, 0.6) default.
func DefaultWeights() Weights {
	return Weights{TFIDF: DefaultTFIDFWeight, BM25: DefaultBM25Weight}
}

// FusedDoc is one candidate after score fusion. Combined is in [0,1].
type FusedDoc struct {
	DocID      string  `json:"doc_id"`
	Combined   float64 `json:"combined"`
	TFIDFScore float64 `json:"tfidf_score"`
	TFIDFNorm  float64 `json:"tfidf_norm"`
	BM25Score  float64 `json:"bm25_score"`
	BM25Norm   float64 `json:"bm25_norm"`
}

// Fuse unions the two candidate lists, min-max normalises each signal over
// its own list, and combines them with the given weights. The result is
// sorted by combined score descending, ties ascending by doc id, so the
// first element is the winner.
//
// A candidate absent from one list contributes 0 for that signal. A list
// whose scores are all equal normalises to 1.0 when the shared score is
// positive (the single-candidate degenerate case) and to 0 when it is zero,
// so a no-overlap query reports zero confidence rather than full.
func Fuse(tfidf, bm25 []ScoredDoc, w Weights) []FusedDoc {
	if len(tfidf) == 0 && len(bm25) == 0 {
		return nil
	}

	tfidfNorm := normalize(tfidf)
	bm25Norm := normalize(bm25)

	fused := make(map[string]*FusedDoc, len(tfidf)+len(bm25))
	for _, d := range tfidf {
		fused[d.DocID] = &FusedDoc{
			DocID:      d.DocID,
			TFIDFScore: d.Score,
			TFIDFNorm:  tfidfNorm[d.DocID],
		}
	}
	for _, d := range bm25 {
		f, ok := fused[d.DocID]
		if !ok {
			f = &FusedDoc{DocID: d.DocID}
			fused[d.DocID] = f
		}
		f.BM25Score = d.Score
		f.BM25Norm = bm25Norm[d.DocID]
	}

	result := make([]FusedDoc, 0, len(fused))
	for _, f := range fused {
		f.Combined = w.TFIDF*f.TFIDFNorm + w.BM25*f.BM25Norm
		result = append(result, *f)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Combined != result[j].Combined {
			return result[i].Combined > result[j].Combined
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

func normalize(docs []ScoredDoc) map[string]float64 {
	if len(docs) == 0 {
		return nil
	}
	min, max := docs[0].Score, docs[0].Score
	for _, d := range docs[1:] {
		if d.Score < min {
			min = d.Score
		}
		if d.Score > max {
			max = d.Score
		}
	}
	norm := make(map[string]float64, len(docs))
	for _, d := range docs {
		switch {
		case max > min:
			norm[d.DocID] = (d.Score - min) / (max - min)
		case max > 0:
			norm[d.DocID] = 1.0
		default:
			norm[d.DocID] = 0
		}
	}
	return norm
}
