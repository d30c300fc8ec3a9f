// Package vectorizer builds the per-generation vocabulary and produces
// sparse, L2-normalised TF-IDF vectors for documents and queries.
package vectorizer

import (
	"math"
	"sort"
)

// Vocabulary maps each term to a dense index and its document frequency.
// It is built once per generation and immutable afterwards.
type Vocabulary struct {
	indexOf  map[string]int
	terms    []string
	df       []int
	docCount int
}

// BuildVocabulary constructs a Vocabulary from the token lists of every
// document in a corpus snapshot. Term indices are assigned in sorted term
// order, so identical corpora always produce identical vocabularies.
func BuildVocabulary(docTokens [][]string) *Vocabulary {
	dfByTerm := make(map[string]int)
	for _, tokens := range docTokens {
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			dfByTerm[t]++
		}
	}

	terms := make([]string, 0, len(dfByTerm))
	for t := range dfByTerm {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	v := &Vocabulary{
		indexOf:  make(map[string]int, len(terms)),
		terms:    terms,
		df:       make([]int, len(terms)),
		docCount: len(docTokens),
	}
	for i, t := range terms {
		v.indexOf[t] = i
		v.df[i] = dfByTerm[t]
	}
	return v
}

// Size returns the number of distinct terms.
func (v *Vocabulary) Size() int { return len(v.terms) }

// DocCount returns the number of documents the vocabulary was built from.
func (v *Vocabulary) DocCount() int { return v.docCount }

// Lookup returns the dense index of term.
func (v *Vocabulary) Lookup(term string) (int, bool) {
	i, ok := v.indexOf[term]
	return i, ok
}

// Term returns the term at index i.
func (v *Vocabulary) Term(i int) string { return v.terms[i] }

// DocFreq returns the document frequency of the term at index i.
func (v *Vocabulary) DocFreq(i int) int { return v.df[i] }

// IDF returns the smoothed inverse document frequency ln(N/df)+1 for the
// term at index i. The +1 keeps ubiquitous terms from vanishing entirely.
func (v *Vocabulary) IDF(i int) float64 {
	return math.Log(float64(v.docCount)/float64(v.df[i])) + 1
}

// Vector is a sparse mapping of term index to TF-IDF weight. Non-empty
// vectors are L2-normalised.
type Vector map[int]float64

// Vectorizer turns token sequences into TF-IDF vectors against a fixed
// vocabulary. Tokens outside the vocabulary are dropped, not added.
type Vectorizer struct {
	vocab *Vocabulary
}

// New creates a Vectorizer over the given vocabulary.
func New(vocab *Vocabulary) *Vectorizer {
	return &Vectorizer{vocab: vocab}
}

// Vectorize computes the L2-normalised TF-IDF vector of a token sequence.
// An empty or fully out-of-vocabulary sequence yields an empty vector.
func (vz *Vectorizer) Vectorize(tokens []string) Vector {
	if len(tokens) == 0 {
		return Vector{}
	}
	counts := make(map[int]int)
	for _, t := range tokens {
		if i, ok := vz.vocab.Lookup(t); ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return Vector{}
	}

	total := float64(len(tokens))
	vec := make(Vector, len(counts))
	var sumSquares float64
	for i, c := range counts {
		w := (float64(c) / total) * vz.vocab.IDF(i)
		vec[i] = w
		sumSquares += w * w
	}

	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return Vector{}
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine returns the dot product of two normalised vectors, in [0,1] for
// non-negative weights.
func Cosine(a, b Vector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for i, w := range a {
		if bw, ok := b[i]; ok {
			dot += w * bw
		}
	}
	return dot
}
