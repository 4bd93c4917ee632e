package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/store"
)

const selectMasteryColumns = `
	SELECT language_id, lesson_id, unique_card_shows, total_card_shows,
	       last_show_at, interval_step_index, completed_at
	FROM lesson_mastery
`

// PostgresMasteryStore implements the store.MasteryStore interface
// using a PostgreSQL database as the storage backend.
type PostgresMasteryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMasteryStore creates a new PostgreSQL implementation of the MasteryStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresMasteryStore(db store.DBTX, logger *slog.Logger) *PostgresMasteryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMasteryStore{
		db:     db,
		logger: logger.With(slog.String("component", "mastery_store")),
	}
}

// Ensure PostgresMasteryStore implements store.MasteryStore interface
var _ store.MasteryStore = (*PostgresMasteryStore)(nil)

// masteryRow mirrors a lesson_mastery row.
type masteryRow struct {
	languageID  string
	lessonID    string
	unique      int
	total       int
	lastShowAt  sql.NullTime
	stepIndex   int
	completedAt sql.NullTime
}

func (r *masteryRow) scanTargets() []any {
	return []any{
		&r.languageID, &r.lessonID, &r.unique, &r.total,
		&r.lastShowAt, &r.stepIndex, &r.completedAt,
	}
}

func (r *masteryRow) toDomain(cardIDs []string) *domain.MasteryState {
	state := domain.NewMasteryState(domain.LessonKey{LessonID: r.lessonID, LanguageID: r.languageID})
	state.UniqueCardShowCount = r.unique
	state.TotalShowCount = r.total
	state.IntervalStepIndex = r.stepIndex
	if r.lastShowAt.Valid {
		state.LastShowAt = r.lastShowAt.Time.UTC()
	}
	if r.completedAt.Valid {
		completed := r.completedAt.Time.UTC()
		state.CompletedAt = &completed
	}
	for _, id := range cardIDs {
		state.ShownCardIDs[id] = struct{}{}
	}
	return state
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// Get implements store.MasteryStore.Get.
func (s *PostgresMasteryStore) Get(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error) {
	return s.get(ctx, key, false)
}

// GetForUpdate implements store.MasteryStore.GetForUpdate.
// A missing record is inserted empty first so that the row lock also
// serialises the first write to a lesson.
func (s *PostgresMasteryStore) GetForUpdate(
	ctx context.Context,
	key domain.LessonKey,
) (*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_mastery (language_id, lesson_id)
		VALUES ($1, $2)
		ON CONFLICT (language_id, lesson_id) DO NOTHING
	`, key.LanguageID, key.LessonID)
	if err != nil {
		log.Error("failed to ensure mastery row",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return nil, MapError(err)
	}

	return s.get(ctx, key, true)
}

func (s *PostgresMasteryStore) get(
	ctx context.Context,
	key domain.LessonKey,
	forUpdate bool,
) (*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := selectMasteryColumns + ` WHERE language_id = $1 AND lesson_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row masteryRow
	err := s.db.QueryRowContext(ctx, query, key.LanguageID, key.LessonID).Scan(row.scanTargets()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("mastery record not found", slog.String("lesson", key.String()))
			return nil, store.ErrMasteryNotFound
		}
		log.Error("failed to get mastery record",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return nil, MapError(err)
	}

	cardIDs, err := s.shownCardIDs(ctx, key)
	if err != nil {
		return nil, err
	}

	return row.toDomain(cardIDs), nil
}

func (s *PostgresMasteryStore) shownCardIDs(ctx context.Context, key domain.LessonKey) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT card_id FROM lesson_mastery_shown_cards
		WHERE language_id = $1 AND lesson_id = $2
		ORDER BY card_id
	`, key.LanguageID, key.LessonID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return ids, nil
}

// Save implements store.MasteryStore.Save.
func (s *PostgresMasteryStore) Save(ctx context.Context, state *domain.MasteryState) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if state == nil {
		return fmt.Errorf("%w: nil mastery state", store.ErrInvalidEntity)
	}
	if err := state.Validate(); err != nil {
		log.Warn("mastery validation failed during save",
			slog.String("error", err.Error()),
			slog.String("lesson", state.Key().String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var completedAt sql.NullTime
	if state.CompletedAt != nil {
		completedAt = nullTime(*state.CompletedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_mastery (
			language_id, lesson_id, unique_card_shows, total_card_shows,
			last_show_at, interval_step_index, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (language_id, lesson_id) DO UPDATE SET
			unique_card_shows = EXCLUDED.unique_card_shows,
			total_card_shows = EXCLUDED.total_card_shows,
			last_show_at = EXCLUDED.last_show_at,
			interval_step_index = EXCLUDED.interval_step_index,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`,
		state.LanguageID,
		state.LessonID,
		state.UniqueCardShowCount,
		state.TotalShowCount,
		nullTime(state.LastShowAt),
		state.IntervalStepIndex,
		completedAt,
	)
	if err != nil {
		log.Error("failed to save mastery record",
			slog.String("error", err.Error()),
			slog.String("lesson", state.Key().String()))
		return MapError(err)
	}

	cardIDs := state.SortedCardIDs()

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM lesson_mastery_shown_cards
		WHERE language_id = $1 AND lesson_id = $2 AND NOT (card_id = ANY($3))
	`, state.LanguageID, state.LessonID, cardIDs)
	if err != nil {
		log.Error("failed to prune shown cards",
			slog.String("error", err.Error()),
			slog.String("lesson", state.Key().String()))
		return MapError(err)
	}

	if len(cardIDs) > 0 {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO lesson_mastery_shown_cards (language_id, lesson_id, card_id)
			SELECT $1, $2, unnest($3::text[])
			ON CONFLICT DO NOTHING
		`, state.LanguageID, state.LessonID, cardIDs)
		if err != nil {
			log.Error("failed to save shown cards",
				slog.String("error", err.Error()),
				slog.String("lesson", state.Key().String()))
			return MapError(err)
		}
	}

	log.Debug("mastery record saved",
		slog.String("lesson", state.Key().String()),
		slog.Int("unique_card_shows", state.UniqueCardShowCount),
		slog.Int("interval_step_index", state.IntervalStepIndex))
	return nil
}

// Delete implements store.MasteryStore.Delete.
func (s *PostgresMasteryStore) Delete(ctx context.Context, key domain.LessonKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM lesson_mastery WHERE language_id = $1 AND lesson_id = $2
	`, key.LanguageID, key.LessonID)
	if err != nil {
		log.Error("failed to delete mastery record",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, store.ErrMasteryNotFound); err != nil {
		return err
	}

	log.Info("mastery record deleted", slog.String("lesson", key.String()))
	return nil
}

// DeleteLanguage implements store.MasteryStore.DeleteLanguage.
func (s *PostgresMasteryStore) DeleteLanguage(ctx context.Context, languageID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM lesson_mastery WHERE language_id = $1`, languageID)
	if err != nil {
		log.Error("failed to delete mastery records",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return 0, MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, store.NewStoreError("mastery", "delete_language", "failed to get rows affected", err)
	}

	log.Info("mastery records deleted",
		slog.String("language_id", languageID),
		slog.Int64("count", n))
	return int(n), nil
}

// ListByLanguage implements store.MasteryStore.ListByLanguage.
func (s *PostgresMasteryStore) ListByLanguage(
	ctx context.Context,
	languageID string,
) ([]*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		selectMasteryColumns+` WHERE language_id = $1 ORDER BY lesson_id`, languageID)
	if err != nil {
		log.Error("failed to list mastery records",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}

	var records []masteryRow
	for rows.Next() {
		var row masteryRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			_ = rows.Close()
			return nil, MapError(err)
		}
		records = append(records, row)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, MapError(err)
	}
	_ = rows.Close()

	cardIDs, err := s.shownCardIDsByLesson(ctx, languageID)
	if err != nil {
		return nil, err
	}

	states := make([]*domain.MasteryState, 0, len(records))
	for i := range records {
		states = append(states, records[i].toDomain(cardIDs[records[i].lessonID]))
	}
	return states, nil
}

func (s *PostgresMasteryStore) shownCardIDsByLesson(
	ctx context.Context,
	languageID string,
) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, card_id FROM lesson_mastery_shown_cards
		WHERE language_id = $1
		ORDER BY lesson_id, card_id
	`, languageID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	byLesson := make(map[string][]string)
	for rows.Next() {
		var lessonID, cardID string
		if err := rows.Scan(&lessonID, &cardID); err != nil {
			return nil, MapError(err)
		}
		byLesson[lessonID] = append(byLesson[lessonID], cardID)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return byLesson, nil
}

// WithTx implements store.MasteryStore.WithTx.
func (s *PostgresMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore {
	return &PostgresMasteryStore{
		db:     tx,
		logger: s.logger,
	}
}
