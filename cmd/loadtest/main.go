// Command loadtest drives the retrieval engine in-process with concurrent
// searches and feedback, and reports latency percentiles for the full
// ranking path and the pattern-cache fast path.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/errdocs/retrieval-engine/internal/corpus"
	"github.com/errdocs/retrieval-engine/internal/engine"
	"github.com/errdocs/retrieval-engine/internal/feedback"
	"github.com/errdocs/retrieval-engine/internal/index"
	"github.com/errdocs/retrieval-engine/pkg/config"
	"github.com/errdocs/retrieval-engine/pkg/logger"
)

type stats struct {
	total     atomic.Int64
	errors    atomic.Int64
	fastPath  atomic.Int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (s *stats) record(d time.Duration, fast bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if fast {
		s.fastPath.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

func (s *stats) percentile(p float64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func main() {
	docsDir := flag.String("docs", "docs", "directory of documentation files")
	concurrency := flag.Int("concurrency", 8, "number of concurrent workers")
	duration := flag.Duration("duration", 10*time.Second, "test duration")
	feedbackRate := flag.Float64("feedback", 0.2, "fraction of searches followed by confirming feedback")
	flag.Parse()

	logger.Setup("warn", "text")

	source := corpus.NewFSSource(*docsDir)
	controller := index.NewController(source, index.BuildParams{}, 30*time.Second)
	store := feedback.NewStore(feedback.NewMemStore(), feedback.DefaultConfig())
	engineCfg := config.EngineConfig{
		TopK:             5,
		TFIDFWeight:      0.4,
		BM25Weight:       0.6,
		EMAAlpha:         0.1,
		PatternThreshold: 0.8,
		PatternMinCount:  2,
		PatternMinConf:   90,
	}
	eng, err := engine.New(controller, store, engineCfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating engine: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := eng.Rebuild(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "building index: %v\n", err)
		os.Exit(1)
	}

	docs, err := source.Documents(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading corpus: %v\n", err)
		os.Exit(1)
	}
	queries := sampleQueries(docs)
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "corpus yielded no usable queries")
		os.Exit(1)
	}

	fmt.Printf("loadtest: %d documents, %d query templates, %d workers, %v\n",
		len(docs), len(queries), *concurrency, *duration)

	s := &stats{latencies: make([]time.Duration, 0, 1<<16)}
	deadline := time.Now().Add(*duration)
	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				q := queries[rng.Intn(len(queries))]
				start := time.Now()
				result, err := eng.Search(ctx, q, engine.StrategyHybrid)
				s.record(time.Since(start), err == nil && result.FastPath, err)
				if err == nil && rng.Float64() < *feedbackRate {
					_, _ = eng.SubmitFeedback(ctx, q, result.DocID, result.DocID, engine.StrategyHybrid)
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()

	total := s.total.Load()
	elapsed := *duration
	fmt.Printf("\nrequests:   %d (%.0f/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("errors:     %d\n", s.errors.Load())
	fmt.Printf("fast path:  %d (%.1f%%)\n", s.fastPath.Load(), 100*float64(s.fastPath.Load())/float64(max(total, 1)))
	fmt.Printf("latency:    p50=%v p95=%v p99=%v\n",
		s.percentile(0.50), s.percentile(0.95), s.percentile(0.99))
}

// sampleQueries builds short queries from document text so searches hit real
// vocabulary.
func sampleQueries(docs []corpus.Document) []string {
	var queries []string
	for _, doc := range docs {
		words := strings.Fields(doc.Text)
		for i := 0; i+3 < len(words); i += 24 {
			queries = append(queries, strings.Join(words[i:i+4], " "))
		}
	}
	return queries
}
