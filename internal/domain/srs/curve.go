package srs

import "math"

// maxStep returns the highest valid ladder index.
func (p *Params) maxStep() int {
	return len(p.IntervalLadder) - 1
}

// clampStep limits a step index to the ladder bounds.
func (p *Params) clampStep(step int) int {
	return max(0, min(step, p.maxStep()))
}

// Stability returns the memory stability in days for an interval step.
//
// Stability grows geometrically with the step: BaseStability *
// StabilityMultiplier^step, with the step capped at the top of the ladder.
// Negative steps fall back to BaseStability.
func (p *Params) Stability(step int) float64 {
	if step < 0 {
		return p.BaseStability
	}
	return p.BaseStability * math.Pow(p.StabilityMultiplier, float64(min(step, p.maxStep())))
}

// Retention returns the estimated probability of recall after daysSince days,
// following the exponential forgetting curve exp(-t/S).
func (p *Params) Retention(daysSince int, step int) float64 {
	if daysSince <= 0 {
		return 1
	}
	return clamp(math.Exp(-float64(daysSince)/p.Stability(step)), 0, 1)
}

// ExpectedInterval returns the ladder gap in days for a step, clamping the
// index into the ladder.
func (p *Params) ExpectedInterval(step int) int {
	return p.IntervalLadder[p.clampStep(step)]
}

// Health returns the displayed vitality of a lesson.
//
// A lesson stays at full health until its expected interval elapses. After
// that health decays along the forgetting curve towards WiltedThreshold, and
// drops to zero once more than GoneThresholdDays have passed.
func (p *Params) Health(daysSince int, step int) float64 {
	if daysSince <= 0 {
		return 1
	}
	if daysSince > p.GoneThresholdDays {
		return 0
	}

	expected := p.ExpectedInterval(step)
	if daysSince <= expected {
		return 1
	}

	overdue := float64(daysSince - expected)
	decay := math.Exp(-overdue / p.Stability(step))
	health := p.WiltedThreshold + (1-p.WiltedThreshold)*decay

	return clamp(health, p.WiltedThreshold, 1)
}

// WasOnTime reports whether a repeat after daysSince days falls within the
// tolerance window of the step's expected interval: from half the interval
// (at least one day) up to double the interval.
func (p *Params) WasOnTime(daysSince int, step int) bool {
	expected := p.ExpectedInterval(step)
	earliest := max(1, int(math.Floor(float64(expected)*0.5)))
	latest := expected * 2

	return daysSince >= earliest && daysSince <= latest
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
