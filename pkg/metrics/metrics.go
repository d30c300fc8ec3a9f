// Package metrics defines the Prometheus metric collectors for the retrieval
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	SearchesTotal        *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchConfidence     *prometheus.HistogramVec
	PatternCacheHits     prometheus.Counter
	PatternCacheMisses   prometheus.Counter
	FeedbackTotal        *prometheus.CounterVec
	FeedbackConflicts    prometheus.Counter
	RebuildsTotal        *prometheus.CounterVec
	RebuildDuration      prometheus.Histogram
	CurrentGeneration    prometheus.Gauge
	IndexedDocuments     prometheus.Gauge
	VocabularySize       prometheus.Gauge
	StorePredictionsLost prometheus.Counter
}

// New creates and registers all Prometheus collectors.
func New() *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_searches_total",
				Help: "Total number of searches by strategy and path (fast/full).",
			},
			[]string{"strategy", "path"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_search_duration_seconds",
				Help:    "Search latency in seconds by path.",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"path"},
		),
		SearchConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_search_confidence",
				Help:    "Final confidence of returned results, 0-100.",
				Buckets: []float64{0, 10, 25, 50, 70, 80, 90, 95, 99, 100},
			},
			[]string{"strategy"},
		),
		PatternCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_pattern_cache_hits_total",
				Help: "Queries answered from the query-pattern cache.",
			},
		),
		PatternCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_pattern_cache_misses_total",
				Help: "Queries that fell through to full ranking.",
			},
		),
		FeedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_feedback_total",
				Help: "Feedback submissions by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		FeedbackConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_feedback_cas_conflicts_total",
				Help: "Compare-and-swap conflicts observed while writing feedback records.",
			},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_index_rebuilds_total",
				Help: "Index rebuilds by result (success/failure).",
			},
			[]string{"result"},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_index_rebuild_duration_seconds",
				Help:    "Wall-clock duration of index rebuilds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		CurrentGeneration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "retrieval_index_generation",
				Help: "Id of the generation currently serving queries.",
			},
		),
		IndexedDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "retrieval_indexed_documents",
				Help: "Number of rankable documents in the current generation.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "retrieval_vocabulary_size",
				Help: "Number of distinct terms in the current generation's vocabulary.",
			},
		),
		StorePredictionsLost: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "retrieval_predictions_dropped_total",
				Help: "Prediction records that could not be persisted.",
			},
		),
	}

	prometheus.MustRegister(
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchConfidence,
		m.PatternCacheHits,
		m.PatternCacheMisses,
		m.FeedbackTotal,
		m.FeedbackConflicts,
		m.RebuildsTotal,
		m.RebuildDuration,
		m.CurrentGeneration,
		m.IndexedDocuments,
		m.VocabularySize,
		m.StorePredictionsLost,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
