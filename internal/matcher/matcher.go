// Package matcher finds the best active, tool-linked pattern whose
// trigger vocabulary overlaps a piece of routing input.
package matcher

import (
	"strings"

	"go.uber.org/zap"

	"patrol/internal/store"
)

// DefaultMinConfidence gates both candidate selection and the final
// combined score.
const DefaultMinConfidence = 70.0

// Match is a routing decision input: the winning pattern/tool pair and
// its scores.
type Match struct {
	PatternID  int64
	Signature  string
	Tool       store.RegisteredTool
	Confidence float64
	Similarity float64
	Combined   float64
}

// Matcher scores routing candidates against free-text input.
type Matcher struct {
	store *store.Store
	log   *zap.Logger
}

// NewMatcher creates a matcher over the given store.
func NewMatcher(st *store.Store, log *zap.Logger) *Matcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Matcher{store: st, log: log}
}

// CalculateSimilarity scores how much of the trigger vocabulary appears
// in the input, as a value in [0, 100]. The base score is the fraction
// of triggers present as substrings of the lower-cased input; multiple
// hits earn a boost (x1.1 for >=2, x1.2 for >=3), capped at 100. An
// empty trigger list scores 0.
func CalculateSimilarity(text string, triggers []string) float64 {
	if len(triggers) == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, trigger := range triggers {
		trigger = strings.ToLower(strings.TrimSpace(trigger))
		if trigger != "" && strings.Contains(lower, trigger) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}

	score := float64(hits) / float64(len(triggers)) * 100
	switch {
	case hits >= 3:
		score *= 1.2
	case hits >= 2:
		score *= 1.1
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Match returns the best candidate for the input, or nil when no
// candidate's combined score clears minConfidence. A negative
// minConfidence selects DefaultMinConfidence; zero is an honored
// threshold that accepts any candidate. Candidates are pre-filtered in
// the store (pattern active, confidence >= threshold, tool active);
// ties on the combined score resolve to the lowest pattern id, the
// store's stable ordering.
func (m *Matcher) Match(input string, minConfidence float64) (*Match, error) {
	if minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}

	candidates, err := m.store.ListToolCandidates(minConfidence)
	if err != nil {
		return nil, err
	}

	var best *Match
	for _, c := range candidates {
		similarity := CalculateSimilarity(input, c.Tool.TriggerVocabulary)
		combined := (c.Confidence + similarity) / 2

		m.log.Debug("candidate scored",
			zap.String("signature", c.Signature),
			zap.Float64("confidence", c.Confidence),
			zap.Float64("similarity", similarity),
			zap.Float64("combined", combined))

		// Strict greater-than keeps the first (lowest pattern id)
		// candidate on ties.
		if best == nil || combined > best.Combined {
			best = &Match{
				PatternID:  c.PatternID,
				Signature:  c.Signature,
				Tool:       c.Tool,
				Confidence: c.Confidence,
				Similarity: similarity,
				Combined:   combined,
			}
		}
	}

	if best == nil || best.Combined < minConfidence {
		return nil, nil
	}

	m.log.Info("input matched to pattern",
		zap.String("signature", best.Signature),
		zap.String("tool", best.Tool.ToolName),
		zap.Float64("combined", best.Combined))
	return best, nil
}
