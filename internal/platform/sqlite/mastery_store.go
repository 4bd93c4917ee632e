package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/store"
	"github.com/samber/lo"
)

// shownCardsBatchSize keeps a batched insert under SQLite's historical limit
// of 999 bound parameters.
const shownCardsBatchSize = 300

const selectMasteryColumns = `
	SELECT language_id, lesson_id, unique_card_shows, total_card_shows,
	       last_show_at, interval_step_index, completed_at
	FROM lesson_mastery
`

// masteryRow mirrors a lesson_mastery row.
type masteryRow struct {
	LanguageID        string       `db:"language_id"`
	LessonID          string       `db:"lesson_id"`
	UniqueCardShows   int          `db:"unique_card_shows"`
	TotalCardShows    int          `db:"total_card_shows"`
	LastShowAt        sql.NullTime `db:"last_show_at"`
	IntervalStepIndex int          `db:"interval_step_index"`
	CompletedAt       sql.NullTime `db:"completed_at"`
}

func (r masteryRow) toDomain(cardIDs []string) *domain.MasteryState {
	state := domain.NewMasteryState(domain.LessonKey{LessonID: r.LessonID, LanguageID: r.LanguageID})
	state.UniqueCardShowCount = r.UniqueCardShows
	state.TotalShowCount = r.TotalCardShows
	state.IntervalStepIndex = r.IntervalStepIndex
	if r.LastShowAt.Valid {
		state.LastShowAt = r.LastShowAt.Time.UTC()
	}
	if r.CompletedAt.Valid {
		completed := r.CompletedAt.Time.UTC()
		state.CompletedAt = &completed
	}
	for _, id := range cardIDs {
		state.ShownCardIDs[id] = struct{}{}
	}
	return state
}

// shownCardRow mirrors a lesson_mastery_shown_cards row.
type shownCardRow struct {
	LessonID string `db:"lesson_id"`
	CardID   string `db:"card_id"`
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// SQLiteMasteryStore implements the store.MasteryStore interface on SQLite.
type SQLiteMasteryStore struct {
	db     sqlx.ExtContext
	mapper *reflectx.Mapper
	logger *slog.Logger
}

// NewSQLiteMasteryStore creates a new SQLite implementation of the MasteryStore interface.
// If logger is nil, a default logger will be used.
func NewSQLiteMasteryStore(db *sqlx.DB, logger *slog.Logger) *SQLiteMasteryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteMasteryStore{
		db:     db,
		mapper: db.Mapper,
		logger: logger.With(slog.String("component", "mastery_store")),
	}
}

// Ensure SQLiteMasteryStore implements store.MasteryStore interface
var _ store.MasteryStore = (*SQLiteMasteryStore)(nil)

// Get implements store.MasteryStore.Get.
func (s *SQLiteMasteryStore) Get(ctx context.Context, key domain.LessonKey) (*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var row masteryRow
	err := sqlx.GetContext(ctx, s.db, &row,
		selectMasteryColumns+` WHERE language_id = ? AND lesson_id = ?`,
		key.LanguageID, key.LessonID)
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

	var cardIDs []string
	err = sqlx.SelectContext(ctx, s.db, &cardIDs, `
		SELECT card_id FROM lesson_mastery_shown_cards
		WHERE language_id = ? AND lesson_id = ?
		ORDER BY card_id
	`, key.LanguageID, key.LessonID)
	if err != nil {
		return nil, MapError(err)
	}

	return row.toDomain(cardIDs), nil
}

// GetForUpdate implements store.MasteryStore.GetForUpdate. SQLite has no row
// locks; the immediate transaction the store is bound to already holds the
// database write lock, so this is a plain read.
func (s *SQLiteMasteryStore) GetForUpdate(
	ctx context.Context,
	key domain.LessonKey,
) (*domain.MasteryState, error) {
	return s.Get(ctx, key)
}

// Save implements store.MasteryStore.Save.
func (s *SQLiteMasteryStore) Save(ctx context.Context, state *domain.MasteryState) error {
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

	row := masteryRow{
		LanguageID:        state.LanguageID,
		LessonID:          state.LessonID,
		UniqueCardShows:   state.UniqueCardShowCount,
		TotalCardShows:    state.TotalShowCount,
		LastShowAt:        nullTime(state.LastShowAt),
		IntervalStepIndex: state.IntervalStepIndex,
	}
	if state.CompletedAt != nil {
		row.CompletedAt = nullTime(*state.CompletedAt)
	}

	_, err := sqlx.NamedExecContext(ctx, s.db, `
		INSERT INTO lesson_mastery (
			language_id, lesson_id, unique_card_shows, total_card_shows,
			last_show_at, interval_step_index, completed_at, updated_at
		) VALUES (
			:language_id, :lesson_id, :unique_card_shows, :total_card_shows,
			:last_show_at, :interval_step_index, :completed_at, CURRENT_TIMESTAMP
		)
		ON CONFLICT (language_id, lesson_id) DO UPDATE SET
			unique_card_shows = excluded.unique_card_shows,
			total_card_shows = excluded.total_card_shows,
			last_show_at = excluded.last_show_at,
			interval_step_index = excluded.interval_step_index,
			completed_at = excluded.completed_at,
			updated_at = CURRENT_TIMESTAMP
	`, row)
	if err != nil {
		log.Error("failed to save mastery record",
			slog.String("error", err.Error()),
			slog.String("lesson", state.Key().String()))
		return MapError(err)
	}

	if err := s.replaceShownCards(ctx, state); err != nil {
		log.Error("failed to save shown cards",
			slog.String("error", err.Error()),
			slog.String("lesson", state.Key().String()))
		return err
	}

	log.Debug("mastery record saved",
		slog.String("lesson", state.Key().String()),
		slog.Int("unique_card_shows", state.UniqueCardShowCount),
		slog.Int("interval_step_index", state.IntervalStepIndex))
	return nil
}

func (s *SQLiteMasteryStore) replaceShownCards(ctx context.Context, state *domain.MasteryState) error {
	cardIDs := state.SortedCardIDs()

	if len(cardIDs) == 0 {
		_, err := s.db.ExecContext(ctx, `
			DELETE FROM lesson_mastery_shown_cards WHERE language_id = ? AND lesson_id = ?
		`, state.LanguageID, state.LessonID)
		return MapError(err)
	}

	keep, err := json.Marshal(cardIDs)
	if err != nil {
		return store.NewStoreError("mastery", "save", "failed to encode shown cards", err)
	}
	_, err = s.db.ExecContext(ctx, `
		DELETE FROM lesson_mastery_shown_cards
		WHERE language_id = ? AND lesson_id = ?
		  AND card_id NOT IN (SELECT value FROM json_each(?))
	`, state.LanguageID, state.LessonID, string(keep))
	if err != nil {
		return MapError(err)
	}

	for _, batch := range lo.Chunk(cardIDs, shownCardsBatchSize) {
		query := `INSERT OR IGNORE INTO lesson_mastery_shown_cards (language_id, lesson_id, card_id) VALUES ` +
			strings.TrimSuffix(strings.Repeat("(?, ?, ?), ", len(batch)), ", ")
		args := make([]interface{}, 0, len(batch)*3)
		for _, id := range batch {
			args = append(args, state.LanguageID, state.LessonID, id)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return MapError(err)
		}
	}
	return nil
}

// Delete implements store.MasteryStore.Delete.
func (s *SQLiteMasteryStore) Delete(ctx context.Context, key domain.LessonKey) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM lesson_mastery WHERE language_id = ? AND lesson_id = ?`,
		key.LanguageID, key.LessonID)
	if err != nil {
		log.Error("failed to delete mastery record",
			slog.String("error", err.Error()),
			slog.String("lesson", key.String()))
		return MapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return store.NewStoreError("mastery", "delete", "failed to get rows affected", err)
	}
	if n == 0 {
		return store.ErrMasteryNotFound
	}

	log.Info("mastery record deleted", slog.String("lesson", key.String()))
	return nil
}

// DeleteLanguage implements store.MasteryStore.DeleteLanguage.
func (s *SQLiteMasteryStore) DeleteLanguage(ctx context.Context, languageID string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM lesson_mastery WHERE language_id = ?`, languageID)
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
func (s *SQLiteMasteryStore) ListByLanguage(
	ctx context.Context,
	languageID string,
) ([]*domain.MasteryState, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var rows []masteryRow
	err := sqlx.SelectContext(ctx, s.db, &rows,
		selectMasteryColumns+` WHERE language_id = ? ORDER BY lesson_id`, languageID)
	if err != nil {
		log.Error("failed to list mastery records",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}

	var cards []shownCardRow
	err = sqlx.SelectContext(ctx, s.db, &cards, `
		SELECT lesson_id, card_id FROM lesson_mastery_shown_cards
		WHERE language_id = ?
		ORDER BY lesson_id, card_id
	`, languageID)
	if err != nil {
		return nil, MapError(err)
	}

	byLesson := make(map[string][]string)
	for _, c := range cards {
		byLesson[c.LessonID] = append(byLesson[c.LessonID], c.CardID)
	}

	states := make([]*domain.MasteryState, 0, len(rows))
	for _, row := range rows {
		states = append(states, row.toDomain(byLesson[row.LessonID]))
	}
	return states, nil
}

// WithTx implements store.MasteryStore.WithTx.
func (s *SQLiteMasteryStore) WithTx(tx *sql.Tx) store.MasteryStore {
	return &SQLiteMasteryStore{
		db:     &sqlx.Tx{Tx: tx, Mapper: s.mapper},
		mapper: s.mapper,
		logger: s.logger,
	}
}
