package srs

// NextStep moves a lesson along the interval ladder: one step up after an
// on-time repeat, one step down otherwise, never leaving the ladder.
func (p *Params) NextStep(current int, onTime bool) int {
	if onTime {
		return min(current+1, p.maxStep())
	}
	return max(current-1, 0)
}
