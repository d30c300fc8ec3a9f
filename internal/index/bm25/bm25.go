// Package bm25 implements Okapi BM25 scoring over a per-generation posting
// index. The index is immutable once built.
package bm25

import "math"

// Default Okapi parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// Index holds the per-term postings, document lengths, and corpus statistics
// BM25 needs.
type Index struct {
	k1        float64
	b         float64
	docCount  int
	avgDocLen float64
	docLen    map[string]int
	postings  map[string]map[string]int
	df        map[string]int
}

// Build constructs an Index from per-document token sequences. Zero-valued
// k1/b fall back to the defaults.
func Build(docTokens map[string][]string, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	ix := &Index{
		k1:       k1,
		b:        b,
		docCount: len(docTokens),
		docLen:   make(map[string]int, len(docTokens)),
		postings: make(map[string]map[string]int),
		df:       make(map[string]int),
	}

	var totalLen int
	for docID, tokens := range docTokens {
		ix.docLen[docID] = len(tokens)
		totalLen += len(tokens)
		for _, t := range tokens {
			docs, ok := ix.postings[t]
			if !ok {
				docs = make(map[string]int)
				ix.postings[t] = docs
			}
			if docs[docID] == 0 {
				ix.df[t]++
			}
			docs[docID]++
		}
	}
	if ix.docCount > 0 {
		ix.avgDocLen = float64(totalLen) / float64(ix.docCount)
	}
	return ix
}

// IDF returns the BM25 inverse document frequency
// ln((N-df+0.5)/(df+0.5)+1) for a term; 0 for unseen terms.
func (ix *Index) IDF(term string) float64 {
	df, ok := ix.df[term]
	if !ok {
		return 0
	}
	n := float64(ix.docCount)
	return math.Log((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
}

// ScoreAll scores every document matching at least one query token and
// returns the per-document BM25 scores. Scores are non-negative and
// unbounded.
func (ix *Index) ScoreAll(tokens []string) map[string]float64 {
	if ix.avgDocLen == 0 {
		return nil
	}
	scores := make(map[string]float64)
	for _, t := range tokens {
		docs, ok := ix.postings[t]
		if !ok {
			continue
		}
		idf := ix.IDF(t)
		for docID, tf := range docs {
			f := float64(tf)
			lenNorm := 1 - ix.b + ix.b*float64(ix.docLen[docID])/ix.avgDocLen
			scores[docID] += idf * (f * (ix.k1 + 1)) / (f + ix.k1*lenNorm)
		}
	}
	return scores
}

// DocCount returns the number of indexed documents.
func (ix *Index) DocCount() int { return ix.docCount }

// AvgDocLen returns the average document length in tokens.
func (ix *Index) AvgDocLen() float64 { return ix.avgDocLen }

// DocLength returns the token count of a document.
func (ix *Index) DocLength(docID string) int { return ix.docLen[docID] }
