// Package index builds immutable search-index generations from corpus
// snapshots and atomically swaps the generation that serves queries.
package index

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/errdocs/retrieval-engine/internal/corpus"
	"github.com/errdocs/retrieval-engine/internal/index/bm25"
	"github.com/errdocs/retrieval-engine/internal/index/tokenizer"
	"github.com/errdocs/retrieval-engine/internal/index/vectorizer"
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
)

// Generation is one immutable snapshot of the full search index: vocabulary,
// TF-IDF document vectors, and BM25 statistics. Exactly one generation
// serves queries at a time; readers share it freely because nothing in it is
// ever mutated after Build returns.
type Generation struct {
	ID      uint64
	Vocab   *vectorizer.Vocabulary
	Vectors map[string]vectorizer.Vector
	BM25    *bm25.Index
	// Docs lists the rankable document ids in ascending order. Documents
	// whose text tokenises to nothing are excluded here, not errors.
	Docs    []string
	BuiltAt time.Time
}

// Vectorize builds the TF-IDF vector of a token sequence against this
// generation's vocabulary.
func (g *Generation) Vectorize(tokens []string) vectorizer.Vector {
	return vectorizer.New(g.Vocab).Vectorize(tokens)
}

// BuildParams carries the ranking parameters fixed at build time.
type BuildParams struct {
	BM25K1 float64
	BM25B  float64
}

// BuildGeneration tokenises and indexes a corpus snapshot into a fresh
// Generation. Documents with no usable tokens are dropped from ranking; if
// nothing remains, ErrEmptyCorpus is returned.
func BuildGeneration(ctx context.Context, id uint64, docs []corpus.Document, params BuildParams) (*Generation, error) {
	type tokenized struct {
		id     string
		tokens []string
	}

	results := make([]tokenized, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = tokenized{id: doc.ID, tokens: tokenizer.Tokenize(doc.Text)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var usable []tokenized
	for _, r := range results {
		if len(r.tokens) > 0 {
			usable = append(usable, r)
		}
	}
	if len(usable) == 0 {
		return nil, apperrors.ErrEmptyCorpus
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].id < usable[j].id })

	tokenLists := make([][]string, len(usable))
	bm25Docs := make(map[string][]string, len(usable))
	ids := make([]string, len(usable))
	for i, r := range usable {
		tokenLists[i] = r.tokens
		bm25Docs[r.id] = r.tokens
		ids[i] = r.id
	}

	vocab := vectorizer.BuildVocabulary(tokenLists)
	vz := vectorizer.New(vocab)

	vectors := make(map[string]vectorizer.Vector, len(usable))
	var mu sync.Mutex
	vg, vctx := errgroup.WithContext(ctx)
	vg.SetLimit(runtime.GOMAXPROCS(0))
	for _, r := range usable {
		r := r
		vg.Go(func() error {
			if err := vctx.Err(); err != nil {
				return err
			}
			vec := vz.Vectorize(r.tokens)
			mu.Lock()
			vectors[r.id] = vec
			mu.Unlock()
			return nil
		})
	}
	if err := vg.Wait(); err != nil {
		return nil, err
	}

	return &Generation{
		ID:      id,
		Vocab:   vocab,
		Vectors: vectors,
		BM25:    bm25.Build(bm25Docs, params.BM25K1, params.BM25B),
		Docs:    ids,
		BuiltAt: time.Now(),
	}, nil
}
