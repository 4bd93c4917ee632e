package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/phrazzld/drill-api/internal/platform/sqlite"
	"github.com/phrazzld/drill-api/internal/service"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/phrazzld/drill-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLessonStore counts curriculum loads and can be told to fail them.
type countingLessonStore struct {
	store.LessonStore
	loads atomic.Int32
	fail  atomic.Bool
}

func (s *countingLessonStore) ListByLanguage(ctx context.Context, languageID string) ([]domain.Lesson, error) {
	s.loads.Add(1)
	if s.fail.Load() {
		return nil, errors.New("store unavailable")
	}
	return s.LessonStore.ListByLanguage(ctx, languageID)
}

// gatedLessonStore reads the curriculum, reports the read on loaded and then
// holds the result until the gate is closed.
type gatedLessonStore struct {
	countingLessonStore
	loaded chan struct{}
	gate   chan struct{}
}

func (s *gatedLessonStore) ListByLanguage(ctx context.Context, languageID string) ([]domain.Lesson, error) {
	lessons, err := s.countingLessonStore.ListByLanguage(ctx, languageID)
	s.loaded <- struct{}{}
	<-s.gate
	return lessons, err
}

// waitLoaded blocks until the gated store has read the curriculum once more.
func (s *gatedLessonStore) waitLoaded(t *testing.T) {
	t.Helper()
	select {
	case <-s.loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("curriculum was never loaded")
	}
}

func newGatedService(t *testing.T, seed []domain.Lesson) (Service, *gatedLessonStore) {
	t.Helper()

	db := testdb.SQLite(t)
	base := sqlite.NewSQLiteLessonStore(sqlx.NewDb(db, "sqlite3"), nil)
	require.NoError(t, store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		return base.WithTx(tx).ReplaceCurriculum(ctx, "es", seed)
	}))

	lessons := &gatedLessonStore{
		countingLessonStore: countingLessonStore{LessonStore: base},
		loaded:              make(chan struct{}, 16),
		gate:                make(chan struct{}),
	}
	builder, err := review.NewBuilder(review.Config{WarmupSize: 2, SubLessonSize: 3})
	require.NoError(t, err)
	svc, err := NewService(db, lessons, builder, nil)
	require.NoError(t, err)
	return svc, lessons
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

func newTestService(t *testing.T) (Service, *countingLessonStore) {
	t.Helper()

	db := testdb.SQLite(t)
	lessons := &countingLessonStore{
		LessonStore: sqlite.NewSQLiteLessonStore(sqlx.NewDb(db, "sqlite3"), nil),
	}
	builder, err := review.NewBuilder(review.Config{WarmupSize: 2, SubLessonSize: 3})
	require.NoError(t, err)

	svc, err := NewService(db, lessons, builder, nil)
	require.NoError(t, err)
	return svc, lessons
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	db := testdb.SQLite(t)
	lessons := sqlite.NewSQLiteLessonStore(sqlx.NewDb(db, "sqlite3"), nil)
	builder, err := review.NewBuilder(review.Config{SubLessonSize: 3})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		db      *sql.DB
		lessons store.LessonStore
		builder *review.Builder
	}{
		{name: "nil db", lessons: lessons, builder: builder},
		{name: "nil lesson store", db: db, builder: builder},
		{name: "nil builder", db: db, lessons: lessons},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewService(tc.db, tc.lessons, tc.builder, nil)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestReplaceCurriculumAndForLanguage(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	empty, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{
		makeLesson("L1", 8),
		makeLesson("L2", 8),
	}))

	schedule, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "L2"}, schedule.LessonIDs(), "replacement invalidates the cached schedule")

	blocks, err := svc.ForLesson(ctx, "es", "L2")
	require.NoError(t, err)
	expected, ok := schedule.Blocks("L2")
	require.True(t, ok)
	assert.Equal(t, expected, blocks)
	require.NotEmpty(t, blocks)
	assert.Equal(t, review.BlockWarmup, blocks[0].Type)
	assert.Equal(t, []string{"L2-c0", "L2-c1"}, blocks[0].CardIDs())
}

func TestForLanguage_Caches(t *testing.T) {
	t.Parallel()
	svc, lessons := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{makeLesson("L1", 4)}))

	first, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	second, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), lessons.loads.Load())

	svc.Invalidate("es")
	third, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, int32(2), lessons.loads.Load())
}

func TestForLesson_Errors(t *testing.T) {
	t.Parallel()
	svc, lessons := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{makeLesson("L1", 4)}))

	_, err := svc.ForLesson(ctx, "es", "L9")
	assert.ErrorIs(t, err, ErrLessonNotScheduled)

	_, err = svc.ForLesson(ctx, "es", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ForLesson(ctx, "", "L1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	lessons.fail.Store(true)
	_, err = svc.ForLesson(ctx, "fr", "L1")
	var serviceErr *service.ServiceError
	assert.ErrorAs(t, err, &serviceErr)
}

func TestReplaceCurriculum_Rejects(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{makeLesson("L1", 4)}))

	testCases := []struct {
		name       string
		languageID string
		lessons    []domain.Lesson
	}{
		{name: "empty language", lessons: []domain.Lesson{makeLesson("L1", 2)}},
		{name: "duplicate lessons", languageID: "es", lessons: []domain.Lesson{makeLesson("L1", 2), makeLesson("L1", 2)}},
		{name: "invalid card", languageID: "es", lessons: []domain.Lesson{{
			ID:    "L1",
			Cards: []domain.SentenceCard{{ID: "c1", Prompt: "hola"}},
		}}},
		{name: "foreign lesson", languageID: "es", lessons: []domain.Lesson{{
			ID:         "L1",
			LanguageID: "fr",
			Cards:      makeLesson("L1", 1).Cards,
		}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.ReplaceCurriculum(ctx, tc.languageID, tc.lessons)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	schedule, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, schedule.LessonIDs(), "rejected curricula leave the stored one untouched")
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	svc, lessons := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx), "refresh with an empty cache is a no-op")
	assert.Zero(t, lessons.loads.Load())

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{makeLesson("L1", 4)}))
	before, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)

	require.NoError(t, svc.Refresh(ctx))
	after, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, before.LessonIDs(), after.LessonIDs())

	lessons.fail.Store(true)
	err = svc.Refresh(ctx)
	require.Error(t, err)

	kept, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Same(t, after, kept, "failed refresh keeps the previous schedule")
}

func TestForLanguage_ConcurrentMisses(t *testing.T) {
	t.Parallel()
	svc, lessons := newGatedService(t, []domain.Lesson{makeLesson("L1", 6)})

	const workers = 6
	results := make([]*review.Schedule, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			schedule, err := svc.ForLanguage(context.Background(), "es")
			assert.NoError(t, err)
			results[i] = schedule
		}(i)
	}

	lessons.waitLoaded(t)
	time.Sleep(20 * time.Millisecond)
	close(lessons.gate)
	wg.Wait()

	for _, schedule := range results {
		require.NotNil(t, schedule)
		assert.Same(t, results[0], schedule, "every caller sees the cached schedule")
	}
	loads := lessons.loads.Load()
	assert.GreaterOrEqual(t, loads, int32(1))
	assert.LessOrEqual(t, loads, int32(workers))
}

func TestForLanguage_ReplaceDuringBuild(t *testing.T) {
	t.Parallel()
	svc, lessons := newGatedService(t, []domain.Lesson{makeLesson("old", 4)})
	ctx := context.Background()

	forLanguage := func() <-chan *review.Schedule {
		out := make(chan *review.Schedule, 1)
		go func() {
			schedule, err := svc.ForLanguage(ctx, "es")
			assert.NoError(t, err)
			out <- schedule
		}()
		return out
	}

	before := forLanguage()
	lessons.waitLoaded(t)

	require.NoError(t, svc.ReplaceCurriculum(ctx, "es", []domain.Lesson{makeLesson("new", 4)}))

	after := forLanguage()
	lessons.waitLoaded(t)
	close(lessons.gate)

	assert.NotNil(t, <-before)
	assert.Equal(t, []string{"new"}, (<-after).LessonIDs(), "a read after the replacement never joins the old build")

	cached, err := svc.ForLanguage(ctx, "es")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, cached.LessonIDs(), "the old build is never cached")
	assert.Equal(t, int32(2), lessons.loads.Load())
}

func TestForLanguage_CanceledCallerLeavesBuildRunning(t *testing.T) {
	t.Parallel()
	svc, lessons := newGatedService(t, []domain.Lesson{makeLesson("L1", 4)})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ForLanguage(canceled, "es")
	require.ErrorIs(t, err, context.Canceled)
	lessons.waitLoaded(t)

	done := make(chan *review.Schedule, 1)
	go func() {
		schedule, err := svc.ForLanguage(context.Background(), "es")
		assert.NoError(t, err)
		done <- schedule
	}()
	close(lessons.gate)

	schedule := <-done
	require.NotNil(t, schedule)
	assert.Equal(t, []string{"L1"}, schedule.LessonIDs())

	cached, err := svc.ForLanguage(context.Background(), "es")
	require.NoError(t, err)
	assert.Same(t, schedule, cached)
}
