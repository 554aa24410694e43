// Package stats provides the incremental statistics primitives shared by
// the pattern store.
package stats

// RunningAverage maintains an incremental mean without retaining the
// observed values. The update rule is the standard
// new = (old*(n-1) + v) / n, written in the numerically stabler delta
// form.
type RunningAverage struct {
	Count int64
	Value float64
}

// Resume reconstructs a running average from a persisted (count, value)
// pair so the next Update continues the same series.
func Resume(count int64, value float64) RunningAverage {
	if count < 0 {
		count = 0
	}
	return RunningAverage{Count: count, Value: value}
}

// Update folds one observation into the mean.
func (a *RunningAverage) Update(v float64) {
	a.Count++
	a.Value += (v - a.Value) / float64(a.Count)
}

// Variance computes the population variance of a sample.
// Returns (0, false) when fewer than two values are present.
func Variance(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values)), true
}
