// Package tokenizer provides the text normalisation shared by the index,
// the feedback store, and the query-pattern cache. It lower-cases input,
// splits on non-alphanumeric boundaries, and removes stop-words; indexing
// additionally emits word bigrams.
//
// All normalisation paths derive from the same Terms function, so a query
// normalises identically whether it is being ranked, keyed into the feedback
// store, or matched against cached patterns.
package tokenizer

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Terms returns the normalised unigram terms of text: lower-cased, split on
// non-alphanumeric runes, single-character words and stop-words removed.
// It is deterministic and returns an empty slice for empty or all-stop-word
// input.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Tokenize returns the token sequence used for indexing and ranking:
// the normalised unigrams followed by their adjacent bigrams.
func Tokenize(text string) []string {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	tokens := make([]string, 0, 2*len(terms)-1)
	tokens = append(tokens, terms...)
	for i := 0; i+1 < len(terms); i++ {
		tokens = append(tokens, terms[i]+" "+terms[i+1])
	}
	return tokens
}

// NormalizeQuery returns the canonical text form of a query, used as the
// feedback-store key component.
func NormalizeQuery(text string) string {
	return strings.Join(Terms(text), " ")
}

// Signature returns the sorted, de-duplicated term set of text. The pattern
// cache stores signatures and compares them by Jaccard similarity.
func Signature(text string) []string {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	set := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		set = append(set, t)
	}
	sort.Strings(set)
	return set
}
