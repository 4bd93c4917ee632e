package srs

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func daysAfter(n int) time.Time {
	return baseTime.Add(time.Duration(n) * day)
}

// shownState builds a consistent record with unique cards shown at last.
func shownState(unique int, step int, last time.Time) *domain.MasteryState {
	state := domain.NewMasteryState(domain.LessonKey{LessonID: "L1", LanguageID: "es"})
	for i := 0; i < unique; i++ {
		state.ShownCardIDs[fmt.Sprintf("card-%d", i)] = struct{}{}
	}
	state.UniqueCardShowCount = unique
	state.TotalShowCount = unique
	state.IntervalStepIndex = step
	state.LastShowAt = last
	return state
}

func TestElapsedDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, elapsedDays(baseTime, baseTime))
	assert.Equal(t, 0, elapsedDays(baseTime, baseTime.Add(23*time.Hour)))
	assert.Equal(t, 1, elapsedDays(baseTime, baseTime.Add(24*time.Hour)))
	assert.Equal(t, 10, elapsedDays(baseTime, daysAfter(10).Add(time.Hour)))
	assert.Equal(t, -1, elapsedDays(baseTime, baseTime.Add(-time.Hour)))
}

func TestCalculateNextMastery(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	t.Run("first exposure", func(t *testing.T) {
		state := domain.NewMasteryState(domain.LessonKey{LessonID: "L1", LanguageID: "es"})

		next := calculateNextMastery(state, "c1", baseTime, params)

		assert.Equal(t, 1, next.UniqueCardShowCount)
		assert.Equal(t, 1, next.TotalShowCount)
		assert.Equal(t, baseTime, next.LastShowAt)
		assert.Equal(t, 0, next.IntervalStepIndex)
		assert.True(t, next.HasShownCard("c1"))
		assert.NoError(t, next.Validate())

		// Input untouched.
		assert.Zero(t, state.TotalShowCount)
		assert.False(t, state.HasShownCard("c1"))
	})

	t.Run("same card same day", func(t *testing.T) {
		state := calculateNextMastery(shownState(0, 0, time.Time{}), "c1", baseTime, params)

		next := calculateNextMastery(state, "c1", baseTime.Add(2*time.Hour), params)

		assert.Equal(t, 1, next.UniqueCardShowCount)
		assert.Equal(t, 2, next.TotalShowCount)
		assert.Equal(t, 0, next.IntervalStepIndex)
	})

	testCases := []struct {
		name         string
		step         int
		daysLater    int
		expectedStep int
	}{
		{name: "on time at step zero", step: 0, daysLater: 2, expectedStep: 1},
		{name: "late at step zero stays at zero", step: 0, daysLater: 10, expectedStep: 0},
		{name: "on time at step three", step: 3, daysLater: 7, expectedStep: 4},
		{name: "late at step three", step: 3, daysLater: 20, expectedStep: 2},
		{name: "too early at step three", step: 3, daysLater: 2, expectedStep: 2},
		{name: "on time at top step", step: 9, daysLater: 56, expectedStep: 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			state := shownState(5, tc.step, baseTime)

			next := calculateNextMastery(state, "card-0", daysAfter(tc.daysLater), params)

			assert.Equal(t, tc.expectedStep, next.IntervalStepIndex)
			assert.Equal(t, 5, next.UniqueCardShowCount)
			assert.Equal(t, 6, next.TotalShowCount)
			assert.Equal(t, daysAfter(tc.daysLater), next.LastShowAt)
		})
	}
}

func TestCalculateCompletion(t *testing.T) {
	t.Parallel()

	state := shownState(3, 0, baseTime)

	completed := calculateCompletion(state, daysAfter(1))
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, daysAfter(1), *completed.CompletedAt)
	assert.Nil(t, state.CompletedAt)

	again := calculateCompletion(completed, daysAfter(5))
	assert.Equal(t, daysAfter(1), *again.CompletedAt)
}

func TestCalculateFlower(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	testCases := []struct {
		name     string
		state    *domain.MasteryState
		now      time.Time
		expected domain.FlowerVisual
	}{
		{
			name:     "absent state",
			state:    nil,
			now:      baseTime,
			expected: domain.FlowerVisual{State: domain.FlowerSeed, MasteryPercent: 0, HealthPercent: 1, ScaleMultiplier: 0.5},
		},
		{
			name:     "never shown",
			state:    shownState(0, 0, time.Time{}),
			now:      baseTime,
			expected: domain.FlowerVisual{State: domain.FlowerSeed, MasteryPercent: 0, HealthPercent: 1, ScaleMultiplier: 0.5},
		},
		{
			name:     "early seed",
			state:    shownState(30, 0, baseTime),
			now:      baseTime,
			expected: domain.FlowerVisual{State: domain.FlowerSeed, MasteryPercent: 0.2, HealthPercent: 1, ScaleMultiplier: 0.5},
		},
		{
			name:     "sprout",
			state:    shownState(75, 0, baseTime),
			now:      baseTime,
			expected: domain.FlowerVisual{State: domain.FlowerSprout, MasteryPercent: 0.5, HealthPercent: 1, ScaleMultiplier: 0.5},
		},
		{
			name:     "bloom",
			state:    shownState(150, 0, baseTime),
			now:      baseTime,
			expected: domain.FlowerVisual{State: domain.FlowerBloom, MasteryPercent: 1, HealthPercent: 1, ScaleMultiplier: 1},
		},
		{
			name:     "mastery is capped",
			state:    shownState(220, 2, baseTime),
			now:      daysAfter(3),
			expected: domain.FlowerVisual{State: domain.FlowerBloom, MasteryPercent: 1, HealthPercent: 1, ScaleMultiplier: 1},
		},
		{
			name:     "gone after ninety days",
			state:    shownState(150, 9, baseTime),
			now:      daysAfter(91),
			expected: domain.FlowerVisual{State: domain.FlowerGone, MasteryPercent: 0, HealthPercent: 0, ScaleMultiplier: 0.5},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := calculateFlower(tc.state, tc.now, params)
			assert.Equal(t, tc.expected.State, got.State)
			assert.InDelta(t, tc.expected.MasteryPercent, got.MasteryPercent, 1e-9)
			assert.InDelta(t, tc.expected.HealthPercent, got.HealthPercent, 1e-9)
			assert.InDelta(t, tc.expected.ScaleMultiplier, got.ScaleMultiplier, 1e-9)
		})
	}

	t.Run("wilting when overdue", func(t *testing.T) {
		got := calculateFlower(shownState(150, 0, baseTime), daysAfter(3), params)
		expectedHealth := 0.5 + 0.5*math.Exp(-2/0.9)

		assert.Equal(t, domain.FlowerWilting, got.State)
		assert.InDelta(t, expectedHealth, got.HealthPercent, 1e-9)
		assert.InDelta(t, expectedHealth, got.ScaleMultiplier, 1e-9)
	})

	t.Run("wilted at the health floor", func(t *testing.T) {
		got := calculateFlower(shownState(150, 0, baseTime), daysAfter(10), params)

		assert.Equal(t, domain.FlowerWilted, got.State)
		assert.GreaterOrEqual(t, got.HealthPercent, 0.5)
		assert.InDelta(t, 0.5, got.ScaleMultiplier, 1e-3)
	})

	t.Run("day ninety is wilted not gone", func(t *testing.T) {
		got := calculateFlower(shownState(150, 0, baseTime), daysAfter(90), params)

		assert.Equal(t, domain.FlowerWilted, got.State)
		assert.Greater(t, got.HealthPercent, 0.0)
	})

	t.Run("never produces locked or NaN", func(t *testing.T) {
		for unique := 0; unique <= 300; unique += 7 {
			for days := 0; days <= 120; days++ {
				for _, step := range []int{0, 4, 9} {
					got := calculateFlower(shownState(unique, step, baseTime), daysAfter(days), params)

					assert.NotEqual(t, domain.FlowerLocked, got.State)
					assert.False(t, math.IsNaN(got.HealthPercent))
					assert.False(t, math.IsNaN(got.ScaleMultiplier))
					assert.GreaterOrEqual(t, got.ScaleMultiplier, 0.5)
					assert.LessOrEqual(t, got.ScaleMultiplier, 1.0)
					if got.ScaleMultiplier == 1.0 {
						assert.Equal(t, 1.0, got.MasteryPercent)
						assert.Equal(t, 1.0, got.HealthPercent)
					}
				}
			}
		}
	})
}
