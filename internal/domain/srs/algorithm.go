package srs

import (
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
)

const day = 24 * time.Hour

// elapsedDays returns the whole days between from and to, rounded down.
func elapsedDays(from, to time.Time) int {
	d := to.Sub(from)
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}

// calculateNextStep determines the interval step after a new exposure.
//
// Parameters:
//   - state: The mastery record before the exposure
//   - now: The time of the exposure
//   - params: Configuration parameters of the decay model
//
// Returns:
//   - The new interval step index
//
// Algorithm behavior:
//   - Lessons never shown before keep their step
//   - Repeats on the same calendar day (less than 24 hours apart) keep their step
//   - Otherwise the step moves up when the gap was on time and down when it was not
func calculateNextStep(state *domain.MasteryState, now time.Time, params *Params) int {
	if !state.HasBeenShown() {
		return state.IntervalStepIndex
	}

	daysSinceLast := elapsedDays(state.LastShowAt, now)
	if daysSinceLast <= 0 {
		return state.IntervalStepIndex
	}

	onTime := params.WasOnTime(daysSinceLast, state.IntervalStepIndex)
	return params.NextStep(state.IntervalStepIndex, onTime)
}

// calculateNextMastery creates a new MasteryState after a card was shown.
//
// This function follows the immutable update pattern: the input record is
// copied and the copy is returned with:
//   - the interval step advanced by calculateNextStep
//   - the unique count incremented if the card had never been shown
//   - the total count incremented
//   - the last show time set to now
//   - the card added to the shown set
func calculateNextMastery(
	state *domain.MasteryState,
	cardID string,
	now time.Time,
	params *Params,
) *domain.MasteryState {
	next := state.Clone()

	isNewCard := !state.HasShownCard(cardID)
	next.IntervalStepIndex = calculateNextStep(state, now, params)

	if isNewCard {
		next.UniqueCardShowCount++
		next.ShownCardIDs[cardID] = struct{}{}
	}
	next.TotalShowCount++
	next.LastShowAt = now

	return next
}

// calculateCompletion returns a copy of the state with CompletedAt set, unless
// it was already set, in which case the original timestamp is kept.
func calculateCompletion(state *domain.MasteryState, now time.Time) *domain.MasteryState {
	next := state.Clone()
	if next.CompletedAt == nil {
		completedAt := now
		next.CompletedAt = &completedAt
	}
	return next
}

// calculateFlower derives the flower visual of a mastery record.
//
// Algorithm behavior:
//   - Records that were never shown are seeds at minimum scale
//   - Mastery is the share of MasteryThreshold unique cards seen, capped at 1
//   - Lessons unseen for more than GoneThresholdDays are gone, regardless of mastery
//   - Otherwise health follows Health(); low health wins over mastery stage
//   - The scale is mastery times health, never below half size
func calculateFlower(state *domain.MasteryState, now time.Time, params *Params) domain.FlowerVisual {
	if state == nil || state.UniqueCardShowCount == 0 {
		return domain.FlowerVisual{
			State:           domain.FlowerSeed,
			MasteryPercent:  0,
			HealthPercent:   1,
			ScaleMultiplier: minScale,
		}
	}

	mastery := clamp(float64(state.UniqueCardShowCount)/float64(params.MasteryThreshold), 0, 1)
	daysSince := max(0, elapsedDays(state.LastShowAt, now))

	if daysSince > params.GoneThresholdDays {
		return domain.FlowerVisual{
			State:           domain.FlowerGone,
			MasteryPercent:  0,
			HealthPercent:   0,
			ScaleMultiplier: minScale,
		}
	}

	health := params.Health(daysSince, state.IntervalStepIndex)

	return domain.FlowerVisual{
		State:           classifyFlower(mastery, health, params),
		MasteryPercent:  mastery,
		HealthPercent:   health,
		ScaleMultiplier: clamp(mastery*health, minScale, 1),
	}
}

const (
	minScale = 0.5

	// wiltedEpsilon absorbs float rounding around the health floor.
	wiltedEpsilon = 0.01

	sproutMastery = 0.33
	bloomMastery  = 0.66
)

func classifyFlower(mastery, health float64, params *Params) domain.FlowerState {
	switch {
	case health <= params.WiltedThreshold+wiltedEpsilon:
		return domain.FlowerWilted
	case health < 1:
		return domain.FlowerWilting
	case mastery < sproutMastery:
		return domain.FlowerSeed
	case mastery < bloomMastery:
		return domain.FlowerSprout
	default:
		return domain.FlowerBloom
	}
}
