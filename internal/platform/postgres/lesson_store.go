package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/store"
)

// PostgresLessonStore implements the store.LessonStore interface
// using a PostgreSQL database as the storage backend.
type PostgresLessonStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLessonStore creates a new PostgreSQL implementation of the LessonStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresLessonStore(db store.DBTX, logger *slog.Logger) *PostgresLessonStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLessonStore{
		db:     db,
		logger: logger.With(slog.String("component", "lesson_store")),
	}
}

// Ensure PostgresLessonStore implements store.LessonStore interface
var _ store.LessonStore = (*PostgresLessonStore)(nil)

// ListByLanguage implements store.LessonStore.ListByLanguage.
func (s *PostgresLessonStore) ListByLanguage(ctx context.Context, languageID string) ([]domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, title FROM lessons
		WHERE language_id = $1
		ORDER BY position
	`, languageID)
	if err != nil {
		log.Error("failed to list lessons",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}

	lessons := []domain.Lesson{}
	index := make(map[string]int)
	for rows.Next() {
		lesson := domain.Lesson{LanguageID: languageID, Cards: []domain.SentenceCard{}}
		if err := rows.Scan(&lesson.ID, &lesson.Title); err != nil {
			_ = rows.Close()
			return nil, MapError(err)
		}
		index[lesson.ID] = len(lessons)
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, MapError(err)
	}
	_ = rows.Close()

	if len(lessons) == 0 {
		return lessons, nil
	}

	cardRows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, card_id, prompt, accepted_answers FROM lesson_cards
		WHERE language_id = $1
		ORDER BY lesson_id, position
	`, languageID)
	if err != nil {
		log.Error("failed to list lesson cards",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}
	defer func() { _ = cardRows.Close() }()

	for cardRows.Next() {
		var lessonID string
		card, err := scanCard(cardRows, &lessonID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[lessonID]; ok {
			lessons[i].Cards = append(lessons[i].Cards, card)
		}
	}
	if err := cardRows.Err(); err != nil {
		return nil, MapError(err)
	}

	log.Debug("lessons listed",
		slog.String("language_id", languageID),
		slog.Int("count", len(lessons)))
	return lessons, nil
}

// Get implements store.LessonStore.Get.
func (s *PostgresLessonStore) Get(ctx context.Context, languageID, lessonID string) (*domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lesson := domain.Lesson{ID: lessonID, LanguageID: languageID, Cards: []domain.SentenceCard{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT title FROM lessons WHERE language_id = $1 AND lesson_id = $2
	`, languageID, lessonID).Scan(&lesson.Title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("lesson not found",
				slog.String("language_id", languageID),
				slog.String("lesson_id", lessonID))
			return nil, store.ErrLessonNotFound
		}
		log.Error("failed to get lesson",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID),
			slog.String("lesson_id", lessonID))
		return nil, MapError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, card_id, prompt, accepted_answers FROM lesson_cards
		WHERE language_id = $1 AND lesson_id = $2
		ORDER BY position
	`, languageID, lessonID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ignored string
		card, err := scanCard(rows, &ignored)
		if err != nil {
			return nil, err
		}
		lesson.Cards = append(lesson.Cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return &lesson, nil
}

func scanCard(rows *sql.Rows, lessonID *string) (domain.SentenceCard, error) {
	var (
		card    domain.SentenceCard
		answers []byte
	)
	if err := rows.Scan(lessonID, &card.ID, &card.Prompt, &answers); err != nil {
		return card, MapError(err)
	}
	if err := json.Unmarshal(answers, &card.AcceptedAnswers); err != nil {
		return card, fmt.Errorf("failed to decode accepted answers of card %s: %w", card.ID, err)
	}
	return card, nil
}

// ListLanguages implements store.LessonStore.ListLanguages.
func (s *PostgresLessonStore) ListLanguages(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT language_id FROM lessons ORDER BY language_id`)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list languages",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	languages := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		languages = append(languages, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return languages, nil
}

// ReplaceCurriculum implements store.LessonStore.ReplaceCurriculum.
// Lessons with an empty LanguageID are stored under languageID; a lesson
// naming a different language is rejected.
func (s *PostgresLessonStore) ReplaceCurriculum(
	ctx context.Context,
	languageID string,
	lessons []domain.Lesson,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lessons, err := store.PrepareCurriculum(languageID, lessons)
	if err != nil {
		log.Warn("curriculum validation failed",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE language_id = $1`, languageID); err != nil {
		log.Error("failed to clear curriculum",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return MapError(err)
	}

	cardCount := 0
	for position, lesson := range lessons {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO lessons (language_id, lesson_id, position, title)
			VALUES ($1, $2, $3, $4)
		`, languageID, lesson.ID, position, lesson.Title)
		if err != nil {
			log.Error("failed to insert lesson",
				slog.String("error", err.Error()),
				slog.String("lesson_id", lesson.ID))
			return MapError(err)
		}

		for cardPos, card := range lesson.Cards {
			answers, err := json.Marshal(card.AcceptedAnswers)
			if err != nil {
				return fmt.Errorf("failed to encode accepted answers of card %s: %w", card.ID, err)
			}
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO lesson_cards (language_id, lesson_id, card_id, position, prompt, accepted_answers)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, languageID, lesson.ID, card.ID, cardPos, card.Prompt, answers)
			if err != nil {
				log.Error("failed to insert lesson card",
					slog.String("error", err.Error()),
					slog.String("lesson_id", lesson.ID),
					slog.String("card_id", card.ID))
				return MapError(err)
			}
			cardCount++
		}
	}

	log.Info("curriculum replaced",
		slog.String("language_id", languageID),
		slog.Int("lessons", len(lessons)),
		slog.Int("cards", cardCount))
	return nil
}

// WithTx implements store.LessonStore.WithTx.
func (s *PostgresLessonStore) WithTx(tx *sql.Tx) store.LessonStore {
	return &PostgresLessonStore{
		db:     tx,
		logger: s.logger,
	}
}
