package mastery

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/srs"
	"github.com/phrazzld/drill-api/internal/platform/sqlite"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/phrazzld/drill-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     Service
	clock   *clock
	lessons store.LessonStore
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func makeLesson(id string, cards int) domain.Lesson {
	lesson := domain.Lesson{ID: id, Title: "Lesson " + id}
	for i := 0; i < cards; i++ {
		lesson.Cards = append(lesson.Cards, domain.SentenceCard{
			ID:              fmt.Sprintf("%s-c%d", id, i),
			Prompt:          fmt.Sprintf("prompt %d", i),
			AcceptedAnswers: []string{fmt.Sprintf("answer %d", i)},
		})
	}
	return lesson
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testdb.SQLite(t)
	xdb := sqlx.NewDb(db, "sqlite3")
	masteries := sqlite.NewSQLiteMasteryStore(xdb, nil)
	lessons := sqlite.NewSQLiteLessonStore(xdb, nil)

	err := store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return lessons.WithTx(tx).ReplaceCurriculum(ctx, "es", []domain.Lesson{
			makeLesson("L1", 4),
			makeLesson("L2", 3),
			makeLesson("L3", 2),
		})
	})
	require.NoError(t, err)

	c := &clock{now: fixedNow}
	svc, err := NewService(db, masteries, lessons, srs.NewDefaultService(), nil, WithClock(c.Now))
	require.NoError(t, err)

	return &fixture{svc: svc, clock: c, lessons: lessons}
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	db := testdb.SQLite(t)
	xdb := sqlx.NewDb(db, "sqlite3")
	masteries := sqlite.NewSQLiteMasteryStore(xdb, nil)
	lessons := sqlite.NewSQLiteLessonStore(xdb, nil)
	srsService := srs.NewDefaultService()

	testCases := []struct {
		name      string
		db        *sql.DB
		masteries store.MasteryStore
		lessons   store.LessonStore
		srs       srs.Service
		field     string
	}{
		{name: "nil db", masteries: masteries, lessons: lessons, srs: srsService, field: "db"},
		{name: "nil mastery store", db: db, lessons: lessons, srs: srsService, field: "masteries"},
		{name: "nil lesson store", db: db, masteries: masteries, srs: srsService, field: "lessons"},
		{name: "nil srs service", db: db, masteries: masteries, lessons: lessons, field: "srsService"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(tc.db, tc.masteries, tc.lessons, tc.srs, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
		})
	}
}

func TestRecordExposure(t *testing.T) {
	t.Parallel()

	t.Run("first exposure creates the record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		key := domain.LessonKey{LessonID: "L1", LanguageID: "es"}

		state, err := f.svc.RecordExposure(context.Background(), key, "L1-c0")
		require.NoError(t, err)
		assert.Equal(t, 1, state.UniqueCardShowCount)
		assert.Equal(t, 1, state.TotalShowCount)
		assert.Equal(t, fixedNow, state.LastShowAt)
		assert.Equal(t, 0, state.IntervalStepIndex)

		progress, err := f.svc.GetProgress(context.Background(), key)
		require.NoError(t, err)
		require.NotNil(t, progress.State)
		assert.Equal(t, state.UniqueCardShowCount, progress.State.UniqueCardShowCount)
		assert.True(t, progress.State.HasShownCard("L1-c0"))
	})

	t.Run("repeat card only raises the total", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		key := domain.LessonKey{LessonID: "L1", LanguageID: "es"}
		ctx := context.Background()

		for _, card := range []string{"L1-c0", "L1-c1", "L1-c0"} {
			_, err := f.svc.RecordExposure(ctx, key, card)
			require.NoError(t, err)
		}

		progress, err := f.svc.GetProgress(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, progress.State.UniqueCardShowCount)
		assert.Equal(t, 3, progress.State.TotalShowCount)
	})

	t.Run("on-time return climbs the ladder", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		key := domain.LessonKey{LessonID: "L2", LanguageID: "es"}
		ctx := context.Background()

		_, err := f.svc.RecordExposure(ctx, key, "L2-c0")
		require.NoError(t, err)

		f.clock.Advance(24 * time.Hour)
		state, err := f.svc.RecordExposure(ctx, key, "L2-c1")
		require.NoError(t, err)
		assert.Equal(t, 1, state.IntervalStepIndex)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		testCases := []struct {
			name    string
			key     domain.LessonKey
			cardID  string
			wantErr error
		}{
			{
				name:    "empty lesson id",
				key:     domain.LessonKey{LanguageID: "es"},
				cardID:  "L1-c0",
				wantErr: domain.ErrValidation,
			},
			{
				name:    "empty card id",
				key:     domain.LessonKey{LessonID: "L1", LanguageID: "es"},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "unknown lesson",
				key:     domain.LessonKey{LessonID: "L9", LanguageID: "es"},
				cardID:  "L9-c0",
				wantErr: ErrLessonNotFound,
			},
			{
				name:    "unknown language",
				key:     domain.LessonKey{LessonID: "L1", LanguageID: "fr"},
				cardID:  "L1-c0",
				wantErr: ErrLessonNotFound,
			},
			{
				name:    "card from another lesson",
				key:     domain.LessonKey{LessonID: "L1", LanguageID: "es"},
				cardID:  "L2-c0",
				wantErr: ErrCardNotInLesson,
			},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.svc.RecordExposure(ctx, tc.key, tc.cardID)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}

		progress, err := f.svc.GetProgress(ctx, domain.LessonKey{LessonID: "L1", LanguageID: "es"})
		require.NoError(t, err)
		assert.Nil(t, progress.State, "rejected exposures must not create a record")
	})

	t.Run("concurrent exposures are all counted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		key := domain.LessonKey{LessonID: "L1", LanguageID: "es"}
		ctx := context.Background()

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := f.svc.RecordExposure(ctx, key, fmt.Sprintf("L1-c%d", i%4))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		progress, err := f.svc.GetProgress(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 4, progress.State.UniqueCardShowCount)
		assert.Equal(t, workers, progress.State.TotalShowCount)
	})
}

func TestMarkCompleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	key := domain.LessonKey{LessonID: "L1", LanguageID: "es"}

	_, err := f.svc.MarkCompleted(ctx, key)
	assert.ErrorIs(t, err, ErrLessonNotStarted)

	progress, err := f.svc.GetProgress(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, progress.State, "failed completion must not leave a record behind")

	_, err = f.svc.RecordExposure(ctx, key, "L1-c0")
	require.NoError(t, err)

	state, err := f.svc.MarkCompleted(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, state.CompletedAt)
	assert.Equal(t, fixedNow, *state.CompletedAt)

	f.clock.Advance(48 * time.Hour)
	state, err = f.svc.MarkCompleted(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, *state.CompletedAt, "first completion time is kept")

	_, err = f.svc.MarkCompleted(ctx, domain.LessonKey{LessonID: "L1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetProgress(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	key := domain.LessonKey{LessonID: "L2", LanguageID: "es"}

	progress, err := f.svc.GetProgress(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "L2", progress.LessonID)
	assert.Equal(t, "Lesson L2", progress.Title)
	assert.Equal(t, 3, progress.CardCount)
	assert.Nil(t, progress.State)
	assert.Equal(t, domain.FlowerSeed, progress.Flower.State)
	assert.Nil(t, progress.Ladder.UniqueCardShows)

	_, err = f.svc.RecordExposure(ctx, key, "L2-c0")
	require.NoError(t, err)

	progress, err = f.svc.GetProgress(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, progress.Ladder.UniqueCardShows)
	assert.Equal(t, 1, *progress.Ladder.UniqueCardShows)
	require.NotNil(t, progress.Ladder.DaysSinceLastShow)
	assert.Equal(t, 1, *progress.Ladder.DaysSinceLastShow)

	_, err = f.svc.GetProgress(ctx, domain.LessonKey{LessonID: "missing", LanguageID: "es"})
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestOverview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordExposure(ctx, domain.LessonKey{LessonID: "L3", LanguageID: "es"}, "L3-c1")
	require.NoError(t, err)

	overview, err := f.svc.Overview(ctx, "es")
	require.NoError(t, err)
	require.Len(t, overview, 3)

	ids := make([]string, len(overview))
	for i, p := range overview {
		ids[i] = p.LessonID
	}
	assert.Equal(t, []string{"L1", "L2", "L3"}, ids, "overview follows curriculum order")
	assert.Nil(t, overview[0].State)
	require.NotNil(t, overview[2].State)
	assert.Equal(t, 1, overview[2].State.UniqueCardShowCount)

	empty, err := f.svc.Overview(ctx, "fr")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = f.svc.Overview(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	l1 := domain.LessonKey{LessonID: "L1", LanguageID: "es"}
	l2 := domain.LessonKey{LessonID: "L2", LanguageID: "es"}

	_, err := f.svc.RecordExposure(ctx, l1, "L1-c0")
	require.NoError(t, err)
	_, err = f.svc.RecordExposure(ctx, l2, "L2-c0")
	require.NoError(t, err)

	require.NoError(t, f.svc.Reset(ctx, l1))
	require.NoError(t, f.svc.Reset(ctx, l1), "resetting twice is not an error")

	progress, err := f.svc.GetProgress(ctx, l1)
	require.NoError(t, err)
	assert.Nil(t, progress.State)

	n, err := f.svc.ResetLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.ResetLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, f.svc.Reset(ctx, domain.LessonKey{}), domain.ErrValidation)
	_, err = f.svc.ResetLanguage(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProgressSurvivesCurriculumReplacement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	key := domain.LessonKey{LessonID: "L1", LanguageID: "es"}

	_, err := f.svc.RecordExposure(ctx, key, "L1-c0")
	require.NoError(t, err)

	impl := f.svc.(*serviceImpl)
	err = store.RunInTransaction(ctx, impl.db, func(ctx context.Context, tx *sql.Tx) error {
		return f.lessons.WithTx(tx).ReplaceCurriculum(ctx, "es", []domain.Lesson{
			makeLesson("L1", 5),
		})
	})
	require.NoError(t, err)

	progress, err := f.svc.GetProgress(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, progress.State)
	assert.Equal(t, 1, progress.State.UniqueCardShowCount)
	assert.Equal(t, 5, progress.CardCount)
}
