// Package mastery records card exposures against per-lesson mastery records
// and reports each lesson's flower and ladder state.
package mastery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/domain/srs"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/service"
	"github.com/phrazzld/drill-api/internal/store"
)

// Common error types for the mastery service
var (
	// ErrLessonNotFound indicates that the lesson is not part of the curriculum.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrCardNotInLesson indicates that an exposure named a card the lesson does not contain.
	ErrCardNotInLesson = errors.New("card does not belong to lesson")

	// ErrLessonNotStarted indicates that a lesson with no exposures cannot be completed.
	ErrLessonNotStarted = errors.New("lesson has not been started")
)

// LessonProgress is the learner-facing state of one lesson.
type LessonProgress struct {
	LessonID   string `json:"lesson_id"`
	LanguageID string `json:"language_id"`
	Title      string `json:"title"`
	CardCount  int    `json:"card_count"`
	// State is nil when the lesson was never drilled.
	State  *domain.MasteryState `json:"state"`
	Flower domain.FlowerVisual  `json:"flower"`
	Ladder srs.LadderMetrics    `json:"ladder"`
}

// Service tracks lesson mastery.
type Service interface {
	// RecordExposure applies one card exposure to the lesson's record,
	// creating the record on the first exposure.
	//
	// Returns:
	//   - ErrLessonNotFound when the lesson is not in the curriculum
	//   - ErrCardNotInLesson when the card is not one of the lesson's cards
	//   - an error wrapping domain.ErrValidation for an empty key or card ID
	RecordExposure(ctx context.Context, key domain.LessonKey, cardID string) (*domain.MasteryState, error)

	// MarkCompleted stamps the lesson's completion time. Completing twice
	// keeps the first time. Returns ErrLessonNotStarted when the lesson was
	// never drilled.
	MarkCompleted(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error)

	// GetProgress reports a single lesson. Returns ErrLessonNotFound when the
	// lesson is not in the curriculum.
	GetProgress(ctx context.Context, key domain.LessonKey) (*LessonProgress, error)

	// Overview reports every lesson of a language in curriculum order.
	Overview(ctx context.Context, languageID string) ([]LessonProgress, error)

	// Reset forgets the lesson's record. Resetting a lesson that was never
	// drilled is not an error.
	Reset(ctx context.Context, key domain.LessonKey) error

	// ResetLanguage forgets every record of a language and returns how many
	// were removed.
	ResetLanguage(ctx context.Context, languageID string) (int, error)
}

// Option configures the service.
type Option func(*serviceImpl)

// WithClock replaces time.Now as the source of exposure and report times.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) {
		s.now = now
	}
}

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	db         *sql.DB
	masteries  store.MasteryStore
	lessons    store.LessonStore
	srsService srs.Service
	locks      *keyedMutex
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a mastery Service. Writes run in transactions on db,
// through stores bound with WithTx.
func NewService(
	db *sql.DB,
	masteries store.MasteryStore,
	lessons store.LessonStore,
	srsService srs.Service,
	logger *slog.Logger,
	opts ...Option,
) (Service, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if masteries == nil {
		return nil, domain.NewValidationError("masteries", "cannot be nil", domain.ErrValidation)
	}
	if lessons == nil {
		return nil, domain.NewValidationError("lessons", "cannot be nil", domain.ErrValidation)
	}
	if srsService == nil {
		return nil, domain.NewValidationError("srsService", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &serviceImpl{
		db:         db,
		masteries:  masteries,
		lessons:    lessons,
		srsService: srsService,
		locks:      newKeyedMutex(),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "mastery_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func validateKey(key domain.LessonKey) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return nil
}

// lookupLesson loads the lesson outside any transaction.
func (s *serviceImpl) lookupLesson(ctx context.Context, key domain.LessonKey) (*domain.Lesson, error) {
	lesson, err := s.lessons.Get(ctx, key.LanguageID, key.LessonID)
	if err != nil {
		if errors.Is(err, store.ErrLessonNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	return lesson, nil
}

// update runs fn on the locked record of key and saves the result. A record
// that was never shown is passed as a fresh state.
func (s *serviceImpl) update(
	ctx context.Context,
	key domain.LessonKey,
	fn func(current *domain.MasteryState) (*domain.MasteryState, error),
) (*domain.MasteryState, error) {
	unlock := s.locks.Lock(key.String())
	defer unlock()

	var saved *domain.MasteryState
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		masteries := s.masteries.WithTx(tx)

		current, err := masteries.GetForUpdate(ctx, key)
		switch {
		case errors.Is(err, store.ErrMasteryNotFound):
			current = domain.NewMasteryState(key)
		case err != nil:
			return fmt.Errorf("failed to load mastery: %w", err)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		if err := masteries.Save(ctx, next); err != nil {
			return fmt.Errorf("failed to save mastery: %w", err)
		}
		saved = next
		return nil
	})
	return saved, err
}

// RecordExposure implements Service.RecordExposure.
func (s *serviceImpl) RecordExposure(
	ctx context.Context,
	key domain.LessonKey,
	cardID string,
) (*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateKey(key); err != nil {
		return nil, err
	}
	if cardID == "" {
		return nil, domain.NewValidationError("card_id", "cannot be empty", domain.ErrValidation)
	}

	lesson, err := s.lookupLesson(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLessonNotFound) {
			log.Warn("exposure for unknown lesson", slog.String("lesson", key.String()))
			return nil, err
		}
		return nil, service.NewServiceError("record_exposure", "failed to load lesson", err)
	}
	if !lessonHasCard(lesson, cardID) {
		log.Warn("exposure for card outside lesson",
			slog.String("lesson", key.String()),
			slog.String("card_id", cardID))
		return nil, ErrCardNotInLesson
	}

	now := s.now().UTC()
	state, err := s.update(ctx, key, func(current *domain.MasteryState) (*domain.MasteryState, error) {
		return s.srsService.RecordExposure(current, cardID, now)
	})
	if err != nil {
		log.Error("failed to record exposure",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()),
			slog.String("card_id", cardID))
		return nil, service.NewServiceError("record_exposure", "failed to record exposure", err)
	}

	log.Debug("exposure recorded",
		slog.String("lesson", key.String()),
		slog.String("card_id", cardID),
		slog.Int("unique_card_shows", state.UniqueCardShowCount),
		slog.Int("interval_step_index", state.IntervalStepIndex))
	return state, nil
}

func lessonHasCard(lesson *domain.Lesson, cardID string) bool {
	for _, card := range lesson.Cards {
		if card.ID == cardID {
			return true
		}
	}
	return false
}

// MarkCompleted implements Service.MarkCompleted.
func (s *serviceImpl) MarkCompleted(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateKey(key); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	state, err := s.update(ctx, key, func(current *domain.MasteryState) (*domain.MasteryState, error) {
		if !current.HasBeenShown() {
			return nil, ErrLessonNotStarted
		}
		return s.srsService.MarkCompleted(current, now)
	})
	if err != nil {
		if errors.Is(err, ErrLessonNotStarted) {
			log.Debug("completion for lesson never drilled", slog.String("lesson", key.String()))
			return nil, ErrLessonNotStarted
		}
		log.Error("failed to mark lesson completed",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return nil, service.NewServiceError("mark_completed", "failed to mark lesson completed", err)
	}

	log.Info("lesson completed",
		slog.String("lesson", key.String()),
		slog.Time("completed_at", *state.CompletedAt))
	return state, nil
}

// GetProgress implements Service.GetProgress.
func (s *serviceImpl) GetProgress(ctx context.Context, key domain.LessonKey) (*LessonProgress, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	lesson, err := s.lookupLesson(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLessonNotFound) {
			return nil, err
		}
		return nil, service.NewServiceError("get_progress", "failed to load lesson", err)
	}

	state, err := s.masteries.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrMasteryNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to load mastery",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return nil, service.NewServiceError("get_progress", "failed to load mastery", err)
	}

	progress := s.progress(*lesson, state, s.now().UTC())
	return &progress, nil
}

// Overview implements Service.Overview.
func (s *serviceImpl) Overview(ctx context.Context, languageID string) ([]LessonProgress, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if languageID == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrLanguageIDEmpty)
	}

	lessons, err := s.lessons.ListByLanguage(ctx, languageID)
	if err != nil {
		log.Error("failed to list lessons",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, service.NewServiceError("overview", "failed to list lessons", err)
	}

	states, err := s.masteries.ListByLanguage(ctx, languageID)
	if err != nil {
		log.Error("failed to list mastery records",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, service.NewServiceError("overview", "failed to list mastery records", err)
	}

	byLesson := make(map[string]*domain.MasteryState, len(states))
	for _, state := range states {
		byLesson[state.LessonID] = state
	}

	now := s.now().UTC()
	overview := make([]LessonProgress, 0, len(lessons))
	for _, lesson := range lessons {
		overview = append(overview, s.progress(lesson, byLesson[lesson.ID], now))
	}
	return overview, nil
}

// progress assembles the report of one lesson. A record that was never shown
// is reported like a missing one.
func (s *serviceImpl) progress(lesson domain.Lesson, state *domain.MasteryState, now time.Time) LessonProgress {
	if state != nil && !state.HasBeenShown() && state.CompletedAt == nil {
		state = nil
	}
	return LessonProgress{
		LessonID:   lesson.ID,
		LanguageID: lesson.LanguageID,
		Title:      lesson.Title,
		CardCount:  len(lesson.Cards),
		State:      state,
		Flower:     s.srsService.ResolveFlower(state, now),
		Ladder:     s.srsService.DescribeLadder(state, now),
	}
}

// Reset implements Service.Reset.
func (s *serviceImpl) Reset(ctx context.Context, key domain.LessonKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := validateKey(key); err != nil {
		return err
	}

	unlock := s.locks.Lock(key.String())
	defer unlock()

	err := s.masteries.Delete(ctx, key)
	if err != nil && !errors.Is(err, store.ErrMasteryNotFound) {
		log.Error("failed to reset lesson",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return service.NewServiceError("reset", "failed to delete mastery", err)
	}

	log.Info("lesson reset", slog.String("lesson", key.String()))
	return nil
}

// ResetLanguage implements Service.ResetLanguage.
func (s *serviceImpl) ResetLanguage(ctx context.Context, languageID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if languageID == "" {
		return 0, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrLanguageIDEmpty)
	}

	n, err := s.masteries.DeleteLanguage(ctx, languageID)
	if err != nil {
		log.Error("failed to reset language",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return 0, service.NewServiceError("reset_language", "failed to delete mastery records", err)
	}

	log.Info("language reset",
		slog.String("language_id", languageID),
		slog.Int("records", n))
	return n, nil
}
