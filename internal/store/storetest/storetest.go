// Package storetest holds behaviour tests shared by every implementation of
// the store interfaces. Backends call RunMasteryStoreTests and
// RunLessonStoreTests from their own test files.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Stores is one isolated pair of stores. Writes made through it must not be
// visible to other tests.
type Stores struct {
	Mastery store.MasteryStore
	Lessons store.LessonStore
}

// Harness runs fn against fresh, isolated stores, typically bound to a
// transaction that is rolled back afterwards.
type Harness func(t *testing.T, fn func(t *testing.T, s Stores))

// baseTime is truncated to microseconds, the coarsest precision of the backends.
var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 123456000, time.UTC)

func shownState(key domain.LessonKey, cardIDs ...string) *domain.MasteryState {
	state := domain.NewMasteryState(key)
	for _, id := range cardIDs {
		state.ShownCardIDs[id] = struct{}{}
	}
	state.UniqueCardShowCount = len(cardIDs)
	state.TotalShowCount = len(cardIDs) + 2
	state.LastShowAt = baseTime
	state.IntervalStepIndex = 3
	return state
}

func assertSameState(t *testing.T, want, got *domain.MasteryState) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Key(), got.Key())
	assert.Equal(t, want.UniqueCardShowCount, got.UniqueCardShowCount)
	assert.Equal(t, want.TotalShowCount, got.TotalShowCount)
	assert.Equal(t, want.IntervalStepIndex, got.IntervalStepIndex)
	assert.True(t, want.LastShowAt.Equal(got.LastShowAt),
		"last show: want %v, got %v", want.LastShowAt, got.LastShowAt)
	if want.CompletedAt == nil {
		assert.Nil(t, got.CompletedAt)
	} else if assert.NotNil(t, got.CompletedAt) {
		assert.True(t, want.CompletedAt.Equal(*got.CompletedAt))
	}
	assert.Equal(t, want.SortedCardIDs(), got.SortedCardIDs())
}

// RunMasteryStoreTests exercises a store.MasteryStore implementation.
func RunMasteryStoreTests(t *testing.T, run Harness) {
	ctx := context.Background()
	key := domain.LessonKey{LessonID: "l1", LanguageID: "es"}

	t.Run("get missing record", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			state, err := s.Mastery.Get(ctx, key)
			assert.Nil(t, state)
			assert.ErrorIs(t, err, store.ErrMasteryNotFound)
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	})

	t.Run("save and get round trip", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			want := shownState(key, "c2", "c1", "c3")
			completed := baseTime.Add(time.Hour)
			want.CompletedAt = &completed

			require.NoError(t, s.Mastery.Save(ctx, want))

			got, err := s.Mastery.Get(ctx, key)
			require.NoError(t, err)
			assertSameState(t, want, got)
			assert.Equal(t, time.UTC, got.LastShowAt.Location())
		})
	})

	t.Run("save never shown record", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			want := domain.NewMasteryState(key)
			require.NoError(t, s.Mastery.Save(ctx, want))

			got, err := s.Mastery.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, got.HasBeenShown())
			assert.Empty(t, got.ShownCardIDs)
			assert.NotNil(t, got.ShownCardIDs)
		})
	})

	t.Run("save replaces record and card set", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			require.NoError(t, s.Mastery.Save(ctx, shownState(key, "c1", "c2")))

			updated := shownState(key, "c2", "c4", "c5")
			updated.IntervalStepIndex = 5
			updated.LastShowAt = baseTime.Add(48 * time.Hour)
			require.NoError(t, s.Mastery.Save(ctx, updated))

			got, err := s.Mastery.Get(ctx, key)
			require.NoError(t, err)
			assertSameState(t, updated, got)
		})
	})

	t.Run("save rejects inconsistent record", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			bad := shownState(key, "c1")
			bad.UniqueCardShowCount = 4

			err := s.Mastery.Save(ctx, bad)
			assert.ErrorIs(t, err, store.ErrInvalidEntity)
			assert.ErrorIs(t, err, domain.ErrShowCountMismatch)

			assert.ErrorIs(t, s.Mastery.Save(ctx, nil), store.ErrInvalidEntity)
		})
	})

	t.Run("get for update", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			missing, err := s.Mastery.GetForUpdate(ctx, domain.LessonKey{LessonID: "new", LanguageID: "es"})
			if err != nil {
				assert.ErrorIs(t, err, store.ErrMasteryNotFound)
			} else {
				assert.False(t, missing.HasBeenShown(), "an implicitly created record is empty")
				assert.Zero(t, missing.UniqueCardShowCount)
			}

			want := shownState(key, "c1")
			require.NoError(t, s.Mastery.Save(ctx, want))

			got, err := s.Mastery.GetForUpdate(ctx, key)
			require.NoError(t, err)
			assertSameState(t, want, got)
		})
	})

	t.Run("delete", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			assert.ErrorIs(t, s.Mastery.Delete(ctx, key), store.ErrMasteryNotFound)

			require.NoError(t, s.Mastery.Save(ctx, shownState(key, "c1")))
			require.NoError(t, s.Mastery.Delete(ctx, key))

			_, err := s.Mastery.Get(ctx, key)
			assert.ErrorIs(t, err, store.ErrMasteryNotFound)

			// Shown cards went with the record.
			require.NoError(t, s.Mastery.Save(ctx, domain.NewMasteryState(key)))
			got, err := s.Mastery.Get(ctx, key)
			require.NoError(t, err)
			assert.Empty(t, got.ShownCardIDs)
		})
	})

	t.Run("list and delete by language", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			l2 := shownState(domain.LessonKey{LessonID: "l2", LanguageID: "es"}, "x")
			l1 := shownState(domain.LessonKey{LessonID: "l1", LanguageID: "es"}, "a", "b")
			other := shownState(domain.LessonKey{LessonID: "l1", LanguageID: "fr"}, "z")
			for _, state := range []*domain.MasteryState{l2, l1, other} {
				require.NoError(t, s.Mastery.Save(ctx, state))
			}

			states, err := s.Mastery.ListByLanguage(ctx, "es")
			require.NoError(t, err)
			require.Len(t, states, 2)
			assertSameState(t, l1, states[0])
			assertSameState(t, l2, states[1])

			empty, err := s.Mastery.ListByLanguage(ctx, "de")
			require.NoError(t, err)
			assert.Empty(t, empty)

			n, err := s.Mastery.DeleteLanguage(ctx, "es")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			states, err = s.Mastery.ListByLanguage(ctx, "es")
			require.NoError(t, err)
			assert.Empty(t, states)

			_, err = s.Mastery.Get(ctx, other.Key())
			assert.NoError(t, err, "other languages are untouched")

			n, err = s.Mastery.DeleteLanguage(ctx, "es")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	})
}

func lesson(id string, cardIDs ...string) domain.Lesson {
	cards := make([]domain.SentenceCard, len(cardIDs))
	for i, cardID := range cardIDs {
		cards[i] = domain.SentenceCard{
			ID:              cardID,
			Prompt:          "prompt " + cardID,
			AcceptedAnswers: []string{"answer " + cardID, "alt " + cardID},
		}
	}
	return domain.Lesson{ID: id, Title: "Lesson " + id, Cards: cards}
}

// RunLessonStoreTests exercises a store.LessonStore implementation.
func RunLessonStoreTests(t *testing.T, run Harness) {
	ctx := context.Background()

	t.Run("unknown language is empty", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			lessons, err := s.Lessons.ListByLanguage(ctx, "xx")
			require.NoError(t, err)
			assert.NotNil(t, lessons)
			assert.Empty(t, lessons)

			_, err = s.Lessons.Get(ctx, "xx", "l1")
			assert.ErrorIs(t, err, store.ErrLessonNotFound)
		})
	})

	t.Run("replace and list keep curriculum order", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			curriculum := []domain.Lesson{
				lesson("zeta", "z3", "z1", "z2"),
				lesson("alpha", "a1"),
				lesson("mid"),
			}
			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "es", curriculum))

			lessons, err := s.Lessons.ListByLanguage(ctx, "es")
			require.NoError(t, err)
			require.Len(t, lessons, 3)

			for i, want := range curriculum {
				want.LanguageID = "es"
				if len(want.Cards) == 0 {
					want.Cards = []domain.SentenceCard{}
				}
				assert.Equal(t, want, lessons[i])
			}
		})
	})

	t.Run("replace drops previous curriculum", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "es",
				[]domain.Lesson{lesson("l1", "c1"), lesson("l2", "c2")}))
			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "fr",
				[]domain.Lesson{lesson("l1", "f1")}))
			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "es",
				[]domain.Lesson{lesson("l3", "c1", "c3")}))

			lessons, err := s.Lessons.ListByLanguage(ctx, "es")
			require.NoError(t, err)
			require.Len(t, lessons, 1)
			assert.Equal(t, "l3", lessons[0].ID)

			_, err = s.Lessons.Get(ctx, "es", "l1")
			assert.ErrorIs(t, err, store.ErrLessonNotFound)

			french, err := s.Lessons.Get(ctx, "fr", "l1")
			require.NoError(t, err)
			assert.Equal(t, "f1", french.Cards[0].ID)

			languages, err := s.Lessons.ListLanguages(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"es", "fr"}, languages)

			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "fr", nil))
			languages, err = s.Lessons.ListLanguages(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"es"}, languages)
		})
	})

	t.Run("get returns cards in order", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			require.NoError(t, s.Lessons.ReplaceCurriculum(ctx, "es",
				[]domain.Lesson{lesson("l1", "c9", "c1", "c5")}))

			got, err := s.Lessons.Get(ctx, "es", "l1")
			require.NoError(t, err)
			assert.Equal(t, "Lesson l1", got.Title)
			assert.Equal(t, "es", got.LanguageID)
			ids := make([]string, len(got.Cards))
			for i, c := range got.Cards {
				ids[i] = c.ID
			}
			assert.Equal(t, []string{"c9", "c1", "c5"}, ids)
			assert.Equal(t, []string{"answer c9", "alt c9"}, got.Cards[0].AcceptedAnswers)
		})
	})

	t.Run("replace rejects invalid curriculum", func(t *testing.T) {
		run(t, func(t *testing.T, s Stores) {
			err := s.Lessons.ReplaceCurriculum(ctx, "es",
				[]domain.Lesson{lesson("l1", "c1"), lesson("l1", "c2")})
			assert.ErrorIs(t, err, store.ErrInvalidEntity)

			err = s.Lessons.ReplaceCurriculum(ctx, "es",
				[]domain.Lesson{lesson("l1", "c1", "c1")})
			assert.ErrorIs(t, err, store.ErrInvalidEntity)
			assert.ErrorIs(t, err, domain.ErrDuplicateCardID)
		})
	})
}
