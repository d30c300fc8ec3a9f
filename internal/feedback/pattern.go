package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// patternKey derives a stable key from a signature's content.
func patternKey(signature []string) string {
	sum := sha256.Sum256([]byte(strings.Join(signature, " ")))
	return fmt.Sprintf("%s%x", keyPattern, sum[:16])
}

// Jaccard returns |A∩B|/|A∪B| for two term sets.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	var intersection int
	for _, t := range b {
		if _, ok := set[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// patternConfidence derives the cached confidence from the confirmation
// count. Two confirmations clear the fast-path floor of 90; the cap keeps
// cached answers below a claimed certainty of 100.
func patternConfidence(count int64) float64 {
	conf := 80 + 5*float64(count)
	if conf > 99 {
		conf = 99
	}
	return conf
}

// confirmPattern folds a confirmed-correct answer into the pattern for the
// query's exact signature. Repeated confirmations of the same document grow
// the count; confirmations of a different document erode it and eventually
// replace the cached best document.
func (s *Store) confirmPattern(ctx context.Context, signature []string, docID string) error {
	if len(signature) == 0 {
		return nil
	}
	_, err := mutateRecord[QueryPattern](ctx, s, patternKey(signature), func(rec *QueryPattern, found bool) {
		if !found || rec.BestDoc == docID {
			rec.BestDoc = docID
			rec.Count++
		} else {
			rec.Count--
			if rec.Count <= 0 {
				rec.BestDoc = docID
				rec.Count = 1
			}
		}
		rec.Signature = signature
		rec.Confidence = patternConfidence(rec.Count)
	})
	return err
}

// LookupPattern returns the stored pattern most similar to the given
// signature, with its Jaccard similarity. A nil pattern means nothing is
// stored yet.
func (s *Store) LookupPattern(ctx context.Context, signature []string) (*QueryPattern, float64, error) {
	if len(signature) == 0 {
		return nil, 0, nil
	}
	stored, err := s.records.Scan(ctx, keyPattern)
	if err != nil {
		return nil, 0, err
	}
	var best *QueryPattern
	var bestSim float64
	for key, data := range stored {
		var pattern QueryPattern
		if err := json.Unmarshal(data, &pattern); err != nil {
			s.logger.Warn("skipping undecodable pattern record", "key", key, "error", err)
			continue
		}
		sim := Jaccard(signature, pattern.Signature)
		if sim > bestSim || (sim == bestSim && best != nil && pattern.BestDoc < best.BestDoc) {
			p := pattern
			best = &p
			bestSim = sim
		}
	}
	return best, bestSim, nil
}

// MatchPattern is the fast-path gate: it returns the cached pattern when the
// query's signature is close enough (Jaccard at or above the threshold) to a
// pattern with enough confirmations and confidence. Queries that do not
// match fall through to full ranking.
func (s *Store) MatchPattern(ctx context.Context, signature []string) (*QueryPattern, float64, bool) {
	pattern, sim, err := s.LookupPattern(ctx, signature)
	if err != nil {
		s.logger.Warn("pattern cache unavailable, falling through to ranking", "error", err)
		return nil, 0, false
	}
	if pattern == nil || sim < s.cfg.PatternThreshold {
		return nil, 0, false
	}
	if pattern.Count < s.cfg.PatternMinCount || pattern.Confidence < s.cfg.PatternMinConf {
		return nil, 0, false
	}
	return pattern, sim, true
}
