// Package feedback maintains the persistent learning state of the engine:
// per query-document success rates, per-document and per-engine accuracy,
// and the query-pattern cache. Every record lives under its own key and is
// updated with an optimistic compare-and-swap, so unrelated keys never
// contend and a single key's read-modify-write never interleaves with
// another write.
package feedback

import (
	"math"
	"time"
)

// QueryDocStat tracks how often a document was the right answer for one
// normalised query. SuccessRate is an exponential moving average seeded from
// the first observation; AdjustConfidence treats a missing record as the
// neutral 0.5.
type QueryDocStat struct {
	Query        string  `json:"query"`
	DocID        string  `json:"doc_id"`
	SuccessCount int64   `json:"success_count"`
	TotalCount   int64   `json:"total_count"`
	SuccessRate  float64 `json:"success_rate"`
}

// DocumentStat tracks how often a document was shown and confirmed correct,
// across all queries.
type DocumentStat struct {
	DocID        string `json:"doc_id"`
	TimesShown   int64  `json:"times_shown"`
	TimesCorrect int64  `json:"times_correct"`
}

// Accuracy returns times_correct/times_shown, or the neutral 0.5 for a
// document that was never shown.
func (d DocumentStat) Accuracy() float64 {
	if d.TimesShown == 0 {
		return 0.5
	}
	return float64(d.TimesCorrect) / float64(d.TimesShown)
}

// EngineStat tracks feedback outcomes per ranking strategy. Weight is
// derived, never stored.
type EngineStat struct {
	Engine    string `json:"engine"`
	Correct   int64  `json:"correct"`
	Incorrect int64  `json:"incorrect"`
}

// Total returns the number of feedback outcomes recorded for the engine.
func (e EngineStat) Total() int64 {
	return e.Correct + e.Incorrect
}

// Accuracy returns correct/(correct+incorrect), or 0.5 with no data.
func (e EngineStat) Accuracy() float64 {
	total := e.Total()
	if total == 0 {
		return 0.5
	}
	return float64(e.Correct) / float64(total)
}

// Weight returns the UCB1-style engine weight: observed accuracy plus an
// exploration bonus that shrinks as the engine accumulates outcomes, so
// rarely-used engines are not permanently starved in an ensemble.
func (e EngineStat) Weight() float64 {
	total := float64(e.Total())
	if total < 1 {
		total = 1
	}
	return e.Accuracy() + math.Sqrt(2*math.Log(total)/total)
}

// QueryPattern caches the document most often confirmed correct for one
// query token-set signature. Near-duplicate future queries (by Jaccard
// similarity) can skip full ranking once Count and Confidence clear the
// fast-path thresholds.
type QueryPattern struct {
	Signature  []string `json:"signature"`
	BestDoc    string   `json:"best_doc"`
	Count      int64    `json:"count"`
	Confidence float64  `json:"confidence"`
}

// Prediction is the bookkeeping record written on every search, before
// ground truth is known.
type Prediction struct {
	Query      string    `json:"query"`
	DocID      string    `json:"doc_id"`
	Confidence float64   `json:"confidence"`
	Engine     string    `json:"engine"`
	Count      int64     `json:"count"`
	LastAt     time.Time `json:"last_at"`
}

// Outcome summarises the state of the affected records after one feedback
// event, so the caller can explain the adjustment.
type Outcome struct {
	Correct        bool    `json:"correct"`
	SuccessRate    float64 `json:"success_rate"`
	DocAccuracy    float64 `json:"doc_accuracy"`
	EngineAccuracy float64 `json:"engine_accuracy"`
	EngineWeight   float64 `json:"engine_weight"`
}
