// Package schedule serves review schedules built from stored curricula.
//
// Schedules are pure functions of a language's curriculum, so they are built
// once per language and cached until the curriculum changes.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/review"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service"
	"github.com/phrazzld/drill-api/internal/store"
	"golang.org/x/sync/singleflight"
)

// buildTimeout bounds a shared schedule build, which outlives the request
// that started it.
const buildTimeout = 30 * time.Second

// ErrLessonNotScheduled indicates that the lesson is not part of the language's schedule.
var ErrLessonNotScheduled = errors.New("lesson not scheduled")

// Service builds and caches review schedules.
type Service interface {
	// ForLanguage returns the schedule of a language, building it on a cache
	// miss. A language without lessons has an empty schedule.
	ForLanguage(ctx context.Context, languageID string) (*review.Schedule, error)

	// ForLesson returns the blocks of one lesson. Returns ErrLessonNotScheduled
	// when the language has no such lesson.
	ForLesson(ctx context.Context, languageID, lessonID string) ([]review.DrillBlock, error)

	// Invalidate drops the cached schedule of a language.
	Invalidate(languageID string)

	// Refresh rebuilds the schedule of every cached language.
	Refresh(ctx context.Context) error

	// ReplaceCurriculum stores a new curriculum for the language and drops its
	// cached schedule. The lessons are validated and must build into a
	// schedule before anything is written.
	ReplaceCurriculum(ctx context.Context, languageID string, lessons []domain.Lesson) error
}

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	db      *sql.DB
	lessons store.LessonStore
	builder *review.Builder
	logger  *slog.Logger

	// builds collapses concurrent cache misses of one language into one build.
	builds singleflight.Group

	mu    sync.RWMutex
	cache map[string]*review.Schedule
	// generation is bumped by Invalidate so builds that raced with it are dropped.
	generation uint64
}

// NewService creates a schedule Service.
func NewService(
	db *sql.DB,
	lessons store.LessonStore,
	builder *review.Builder,
	logger *slog.Logger,
) (Service, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if lessons == nil {
		return nil, domain.NewValidationError("lessons", "cannot be nil", domain.ErrValidation)
	}
	if builder == nil {
		return nil, domain.NewValidationError("builder", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		db:      db,
		lessons: lessons,
		builder: builder,
		logger:  logger.With(slog.String("component", "schedule_service")),
		cache:   make(map[string]*review.Schedule),
	}, nil
}

func validateLanguage(languageID string) error {
	if languageID == "" {
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrLanguageIDEmpty)
	}
	return nil
}

// build loads the curriculum and builds its schedule without touching the cache.
func (s *serviceImpl) build(ctx context.Context, languageID string) (*review.Schedule, error) {
	lessons, err := s.lessons.ListByLanguage(ctx, languageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load curriculum: %w", err)
	}
	schedule, err := s.builder.Build(lessons)
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule: %w", err)
	}
	return schedule, nil
}

// ForLanguage implements Service.ForLanguage.
func (s *serviceImpl) ForLanguage(ctx context.Context, languageID string) (*review.Schedule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateLanguage(languageID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.cache[languageID]
	generation := s.generation
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	// Keyed by generation: a read after Invalidate never joins a build that
	// loaded the previous curriculum.
	key := languageID + "#" + strconv.FormatUint(generation, 10)
	results := s.builds.DoChan(key, func() (interface{}, error) {
		// Joined callers share this build; it outlives any one of them.
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()

		schedule, err := s.build(buildCtx, languageID)
		if err != nil {
			return nil, err
		}
		return s.remember(languageID, generation, schedule), nil
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		log.Debug("schedule build abandoned by caller",
			slog.String("language_id", languageID),
			slog.String("error", ctx.Err().Error()))
		return nil, service.NewServiceError("for_language", "schedule build abandoned", ctx.Err())
	}
	if res.Err != nil {
		log.Error("failed to build schedule",
			slog.String("error", res.Err.Error()),
			slog.String("language_id", languageID),
			slog.Bool("shared", res.Shared))
		return nil, service.NewServiceError("for_language", "failed to build schedule", res.Err)
	}
	schedule := res.Val.(*review.Schedule)

	log.Debug("schedule built",
		slog.String("language_id", languageID),
		slog.Int("lessons", schedule.Len()))
	return schedule, nil
}

// remember caches a schedule built at generation and returns the schedule callers
// should use. A schedule stored first by another build wins; a build that
// raced with Invalidate is returned but not cached.
func (s *serviceImpl) remember(languageID string, generation uint64, schedule *review.Schedule) *review.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cache[languageID]; ok {
		return existing
	}
	if s.generation == generation {
		s.cache[languageID] = schedule
	}
	return schedule
}

// ForLesson implements Service.ForLesson.
func (s *serviceImpl) ForLesson(ctx context.Context, languageID, lessonID string) ([]review.DrillBlock, error) {
	if lessonID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrLessonIDEmpty)
	}

	schedule, err := s.ForLanguage(ctx, languageID)
	if err != nil {
		return nil, err
	}

	blocks, ok := schedule.Blocks(lessonID)
	if !ok {
		return nil, ErrLessonNotScheduled
	}
	return blocks, nil
}

// Invalidate implements Service.Invalidate.
func (s *serviceImpl) Invalidate(languageID string) {
	s.mu.Lock()
	delete(s.cache, languageID)
	s.generation++
	s.mu.Unlock()

	s.logger.Debug("schedule invalidated", slog.String("language_id", languageID))
}

// Refresh implements Service.Refresh. A language whose rebuild fails keeps
// its previous schedule; the failures are joined into the returned error.
func (s *serviceImpl) Refresh(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.mu.RLock()
	languages := make([]string, 0, len(s.cache))
	for languageID := range s.cache {
		languages = append(languages, languageID)
	}
	s.mu.RUnlock()

	var errs []error
	rebuilt := 0
	for _, languageID := range languages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s.mu.RLock()
		generation := s.generation
		s.mu.RUnlock()

		schedule, err := s.build(ctx, languageID)
		if err != nil {
			log.Error("failed to refresh schedule",
				slog.String("error", err.Error()),
				slog.String("language_id", languageID))
			errs = append(errs, fmt.Errorf("language %s: %w", languageID, err))
			continue
		}

		s.mu.Lock()
		// Skip languages invalidated while rebuilding; the next read rebuilds them.
		if _, ok := s.cache[languageID]; ok && s.generation == generation {
			s.cache[languageID] = schedule
			rebuilt++
		}
		s.mu.Unlock()
	}

	log.Info("schedules refreshed",
		slog.Int("languages", len(languages)),
		slog.Int("rebuilt", rebuilt),
		slog.Int("failed", len(errs)))

	if len(errs) > 0 {
		return service.NewServiceError("refresh", "failed to refresh schedules", errors.Join(errs...))
	}
	return nil
}

// ReplaceCurriculum implements Service.ReplaceCurriculum.
func (s *serviceImpl) ReplaceCurriculum(ctx context.Context, languageID string, lessons []domain.Lesson) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateLanguage(languageID); err != nil {
		return err
	}

	prepared, err := store.PrepareCurriculum(languageID, lessons)
	if err != nil {
		log.Warn("rejected curriculum",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if _, err := s.builder.Build(prepared); err != nil {
		log.Warn("curriculum does not build into a schedule",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.lessons.WithTx(tx).ReplaceCurriculum(ctx, languageID, prepared)
	})
	if err != nil {
		log.Error("failed to store curriculum",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return service.NewServiceError("replace_curriculum", "failed to store curriculum", err)
	}

	s.Invalidate(languageID)

	log.Info("curriculum replaced",
		slog.String("language_id", languageID),
		slog.Int("lessons", len(prepared)))
	return nil
}
