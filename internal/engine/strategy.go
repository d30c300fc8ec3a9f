package engine

import (
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
)

// Strategy is the closed set of ranking strategies. Using a real enum keeps
// invalid strategy names a compile-time concern inside the engine; only the
// external API boundary parses strings.
type Strategy int

const (
	// StrategyTFIDF ranks by TF-IDF cosine similarity alone.
	StrategyTFIDF Strategy = iota
	// StrategyBM25 ranks by Okapi BM25 alone.
	StrategyBM25
	// StrategyHybrid fuses both signals with the configured weights.
	StrategyHybrid
	// StrategyEnsemble runs every ranking strategy and weighs each by its
	// learned engine weight.
	StrategyEnsemble
)

func (s Strategy) String() string {
	switch s {
	case StrategyTFIDF:
		return "tfidf"
	case StrategyBM25:
		return "bm25"
	case StrategyHybrid:
		return "hybrid"
	case StrategyEnsemble:
		return "ensemble"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name from the API boundary onto the enum.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "tfidf":
		return StrategyTFIDF, nil
	case "bm25":
		return StrategyBM25, nil
	case "hybrid", "":
		return StrategyHybrid, nil
	case "ensemble":
		return StrategyEnsemble, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidStrategy, 400, "%q", name)
	}
}

// RankingStrategies lists the strategies that produce their own ranking
// (everything except the ensemble, which combines them).
func RankingStrategies() []Strategy {
	return []Strategy{StrategyTFIDF, StrategyBM25, StrategyHybrid}
}
