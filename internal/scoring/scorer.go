// Package scoring computes the 0-100 confidence score that gates whether
// a detected pattern is eligible for automatic tool routing.
package scoring

import "go.uber.org/zap"

// Component caps. The three components are additive and independently
// capped; the total is clamped to [0, 100].
const (
	maxFrequency   = 40.0
	maxConsistency = 30.0
	maxReliability = 30.0

	// baselineScore is returned for a pattern with no linked
	// occurrences: "just detected, unproven", not "known bad".
	baselineScore = 10.0

	// minHistory is the occurrence count below which the consistency
	// and reliability components fall back to their worst-tier values.
	// A single observation proves nothing about either.
	minHistory = 2
)

// OccurrenceMetrics summarizes a pattern's occurrence history for
// scoring. DurationSamples counts occurrences with a positive duration;
// DurationVariance is meaningful only when DurationSamples >= 2.
type OccurrenceMetrics struct {
	Occurrences      int64
	DurationSamples  int64
	DurationVariance float64
	AvgErrors        float64
	AvgRetries       float64
}

// Scorer derives confidence scores from occurrence metrics.
type Scorer struct {
	log *zap.Logger
}

// NewScorer creates a scorer.
func NewScorer(log *zap.Logger) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{log: log}
}

// Score computes the confidence score for the given occurrence history.
func (s *Scorer) Score(m OccurrenceMetrics) float64 {
	if m.Occurrences <= 0 {
		return baselineScore
	}

	freq := frequencyComponent(m.Occurrences)

	// With a single occurrence neither consistency nor reliability has
	// enough history to say anything; assume the worst tier rather than
	// rewarding an unproven pattern.
	cons := 10.0
	rel := 5.0
	if m.Occurrences >= minHistory {
		cons = consistencyComponent(m)
		rel = reliabilityComponent(m)
	}

	total := freq + cons + rel
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	s.log.Debug("confidence scored",
		zap.Int64("occurrences", m.Occurrences),
		zap.Float64("frequency", freq),
		zap.Float64("consistency", cons),
		zap.Float64("reliability", rel),
		zap.Float64("total", total))
	return total
}

// frequencyComponent rewards recurrence: 0-40.
func frequencyComponent(occurrences int64) float64 {
	switch {
	case occurrences >= 10:
		return 40
	case occurrences >= 5:
		return 30
	case occurrences >= 3:
		return 20
	default:
		return 10
	}
}

// consistencyComponent rewards stable durations: 0-30.
func consistencyComponent(m OccurrenceMetrics) float64 {
	if m.DurationSamples < 2 {
		// No usable duration data.
		return 15
	}
	switch {
	case m.DurationVariance < 100:
		return 30
	case m.DurationVariance < 1000:
		return 20
	default:
		return 10
	}
}

// reliabilityComponent rewards clean runs: 0-30.
func reliabilityComponent(m OccurrenceMetrics) float64 {
	switch {
	case m.AvgErrors == 0 && m.AvgRetries == 0:
		return 30
	case m.AvgErrors < 1 && m.AvgRetries < 2:
		return 20
	case m.AvgErrors < 3:
		return 10
	default:
		return 5
	}
}
