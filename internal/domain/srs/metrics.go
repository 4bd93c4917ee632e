package srs

import (
	"fmt"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
)

// LadderMetrics summarises where a lesson stands on the interval ladder.
// All fields are nil for lessons that were never shown.
type LadderMetrics struct {
	UniqueCardShows   *int    `json:"unique_card_shows"`
	DaysSinceLastShow *int    `json:"days_since_last_show"`
	IntervalLabel     *string `json:"interval_label"`
}

// describeLadder computes the ladder metrics of a record.
//
// DaysSinceLastShow is one-based: a lesson shown earlier today reports 1.
// The label is "overdue+N" when that count exceeds the expected gap of the
// stored step, otherwise the "lower-upper" ladder bracket containing it.
func describeLadder(state *domain.MasteryState, now time.Time, ladder []int) LadderMetrics {
	if state == nil || state.UniqueCardShowCount <= 0 || !state.HasBeenShown() {
		return LadderMetrics{}
	}

	unique := state.UniqueCardShowCount
	daysSince := max(0, elapsedDays(state.LastShowAt, now)) + 1

	var label string
	if len(ladder) == 0 {
		label = intervalLabel(daysSince, ladder)
	} else {
		expected := ladder[len(ladder)-1]
		if state.IntervalStepIndex >= 0 && state.IntervalStepIndex < len(ladder) {
			expected = ladder[state.IntervalStepIndex]
		}

		if daysSince > expected {
			label = fmt.Sprintf("overdue+%d", daysSince-expected)
		} else {
			label = intervalLabel(daysSince, ladder)
		}
	}

	return LadderMetrics{
		UniqueCardShows:   &unique,
		DaysSinceLastShow: &daysSince,
		IntervalLabel:     &label,
	}
}

// intervalLabel returns the ladder bracket containing days.
func intervalLabel(days int, ladder []int) string {
	switch len(ladder) {
	case 0:
		return "-"
	case 1:
		return fmt.Sprintf("%d-%d", ladder[0], ladder[0])
	}

	if days <= ladder[0] {
		return fmt.Sprintf("%d-%d", ladder[0], ladder[1])
	}
	for i := 1; i < len(ladder); i++ {
		if days <= ladder[i] {
			return fmt.Sprintf("%d-%d", ladder[i-1], ladder[i])
		}
	}

	last := len(ladder) - 1
	return fmt.Sprintf("%d-%d", ladder[last-1], ladder[last])
}
