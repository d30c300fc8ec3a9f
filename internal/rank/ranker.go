// Package rank scores a query against a generation with the two independent
// ranking signals (TF-IDF cosine and BM25) and fuses them into a single
// winner. All orderings are deterministic: ties break ascending by doc id.
package rank

import (
	"sort"

	"github.com/errdocs/retrieval-engine/internal/index"
	"github.com/errdocs/retrieval-engine/internal/index/vectorizer"
)

// ScoredDoc is one candidate in a ranked list.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// CosineRank scores every rankable document by cosine similarity against the
// query vector, scaled to [0,100], and returns the top limit candidates.
// A query with no vocabulary overlap yields an all-zero list, not an error.
func CosineRank(gen *index.Generation, query vectorizer.Vector, limit int) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(gen.Docs))
	for _, docID := range gen.Docs {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: vectorizer.Cosine(gen.Vectors[docID], query) * 100,
		})
	}
	sortScored(result)
	return truncate(result, limit)
}

// BM25Rank scores the documents matching at least one query token and
// returns the top limit candidates. Queries with no matching terms yield an
// empty list.
func BM25Rank(gen *index.Generation, tokens []string, limit int) []ScoredDoc {
	scores := gen.BM25.ScoreAll(tokens)
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sortScored(result)
	return truncate(result, limit)
}

func sortScored(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].DocID < docs[j].DocID
	})
}

func truncate(docs []ScoredDoc, limit int) []ScoredDoc {
	if limit > 0 && len(docs) > limit {
		return docs[:limit]
	}
	return docs
}
