package domain

import "time"

// Estimate is an external probability judgment for one contract, produced
// once per contract per cycle by the forecaster. It is never mutated.
type Estimate struct {
	Ticker     string
	ProbYes    float64 // probability of YES resolution, in [0,1]
	Confidence float64 // forecaster self-reported confidence, in [0,1]
	Rationale  string
	Sources    []string
	CreatedAt  time.Time
}

// ClampProbs returns a copy with probability and confidence forced into
// their legal ranges. Probability is clamped into [0.01, 0.99] rather than
// [0,1] so the Kelly and EV divisions downstream never degenerate.
func (e Estimate) ClampProbs() Estimate {
	e.ProbYes = clamp(e.ProbYes, 0.01, 0.99)
	e.Confidence = clamp(e.Confidence, 0, 1)
	return e
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
