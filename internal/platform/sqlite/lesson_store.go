package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/store"
)

type lessonRow struct {
	LanguageID string `db:"language_id"`
	LessonID   string `db:"lesson_id"`
	Position   int    `db:"position"`
	Title      string `db:"title"`
}

type cardRow struct {
	LanguageID      string `db:"language_id"`
	LessonID        string `db:"lesson_id"`
	CardID          string `db:"card_id"`
	Position        int    `db:"position"`
	Prompt          string `db:"prompt"`
	AcceptedAnswers string `db:"accepted_answers"`
}

func (r cardRow) toDomain() (domain.SentenceCard, error) {
	card := domain.SentenceCard{ID: r.CardID, Prompt: r.Prompt}
	if err := json.Unmarshal([]byte(r.AcceptedAnswers), &card.AcceptedAnswers); err != nil {
		return card, fmt.Errorf("failed to decode accepted answers of card %s: %w", r.CardID, err)
	}
	return card, nil
}

// SQLiteLessonStore implements the store.LessonStore interface on SQLite.
type SQLiteLessonStore struct {
	db     sqlx.ExtContext
	mapper *reflectx.Mapper
	logger *slog.Logger
}

// NewSQLiteLessonStore creates a new SQLite implementation of the LessonStore interface.
// If logger is nil, a default logger will be used.
func NewSQLiteLessonStore(db *sqlx.DB, logger *slog.Logger) *SQLiteLessonStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteLessonStore{
		db:     db,
		mapper: db.Mapper,
		logger: logger.With(slog.String("component", "lesson_store")),
	}
}

// Ensure SQLiteLessonStore implements store.LessonStore interface
var _ store.LessonStore = (*SQLiteLessonStore)(nil)

// ListByLanguage implements store.LessonStore.ListByLanguage.
func (s *SQLiteLessonStore) ListByLanguage(ctx context.Context, languageID string) ([]domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var rows []lessonRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT language_id, lesson_id, position, title FROM lessons
		WHERE language_id = ?
		ORDER BY position
	`, languageID)
	if err != nil {
		log.Error("failed to list lessons",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}

	lessons := make([]domain.Lesson, len(rows))
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		lessons[i] = domain.Lesson{
			ID:         row.LessonID,
			LanguageID: row.LanguageID,
			Title:      row.Title,
			Cards:      []domain.SentenceCard{},
		}
		index[row.LessonID] = i
	}
	if len(lessons) == 0 {
		return lessons, nil
	}

	var cards []cardRow
	err = sqlx.SelectContext(ctx, s.db, &cards, `
		SELECT language_id, lesson_id, card_id, position, prompt, accepted_answers FROM lesson_cards
		WHERE language_id = ?
		ORDER BY lesson_id, position
	`, languageID)
	if err != nil {
		log.Error("failed to list lesson cards",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return nil, MapError(err)
	}

	for _, row := range cards {
		i, ok := index[row.LessonID]
		if !ok {
			continue
		}
		card, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		lessons[i].Cards = append(lessons[i].Cards, card)
	}

	log.Debug("lessons listed",
		slog.String("language_id", languageID),
		slog.Int("count", len(lessons)))
	return lessons, nil
}

// Get implements store.LessonStore.Get.
func (s *SQLiteLessonStore) Get(ctx context.Context, languageID, lessonID string) (*domain.Lesson, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var row lessonRow
	err := sqlx.GetContext(ctx, s.db, &row, `
		SELECT language_id, lesson_id, position, title FROM lessons
		WHERE language_id = ? AND lesson_id = ?
	`, languageID, lessonID)
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

	var cards []cardRow
	err = sqlx.SelectContext(ctx, s.db, &cards, `
		SELECT language_id, lesson_id, card_id, position, prompt, accepted_answers FROM lesson_cards
		WHERE language_id = ? AND lesson_id = ?
		ORDER BY position
	`, languageID, lessonID)
	if err != nil {
		return nil, MapError(err)
	}

	lesson := &domain.Lesson{
		ID:         row.LessonID,
		LanguageID: row.LanguageID,
		Title:      row.Title,
		Cards:      make([]domain.SentenceCard, 0, len(cards)),
	}
	for _, c := range cards {
		card, err := c.toDomain()
		if err != nil {
			return nil, err
		}
		lesson.Cards = append(lesson.Cards, card)
	}
	return lesson, nil
}

// ListLanguages implements store.LessonStore.ListLanguages.
func (s *SQLiteLessonStore) ListLanguages(ctx context.Context) ([]string, error) {
	languages := []string{}
	err := sqlx.SelectContext(ctx, s.db, &languages,
		`SELECT DISTINCT language_id FROM lessons ORDER BY language_id`)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list languages",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return languages, nil
}

// ReplaceCurriculum implements store.LessonStore.ReplaceCurriculum.
// Lessons with an empty LanguageID are stored under languageID; a lesson
// naming a different language is rejected.
func (s *SQLiteLessonStore) ReplaceCurriculum(
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

	if _, err := s.db.ExecContext(ctx, `DELETE FROM lessons WHERE language_id = ?`, languageID); err != nil {
		log.Error("failed to clear curriculum",
			slog.String("error", err.Error()),
			slog.String("language_id", languageID))
		return MapError(err)
	}

	cardCount := 0
	for position, lesson := range lessons {
		_, err := sqlx.NamedExecContext(ctx, s.db, `
			INSERT INTO lessons (language_id, lesson_id, position, title)
			VALUES (:language_id, :lesson_id, :position, :title)
		`, lessonRow{
			LanguageID: languageID,
			LessonID:   lesson.ID,
			Position:   position,
			Title:      lesson.Title,
		})
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
			_, err = sqlx.NamedExecContext(ctx, s.db, `
				INSERT INTO lesson_cards (language_id, lesson_id, card_id, position, prompt, accepted_answers)
				VALUES (:language_id, :lesson_id, :card_id, :position, :prompt, :accepted_answers)
			`, cardRow{
				LanguageID:      languageID,
				LessonID:        lesson.ID,
				CardID:          card.ID,
				Position:        cardPos,
				Prompt:          card.Prompt,
				AcceptedAnswers: string(answers),
			})
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
func (s *SQLiteLessonStore) WithTx(tx *sql.Tx) store.LessonStore {
	return &SQLiteLessonStore{
		db:     &sqlx.Tx{Tx: tx, Mapper: s.mapper},
		mapper: s.mapper,
		logger: s.logger,
	}
}
