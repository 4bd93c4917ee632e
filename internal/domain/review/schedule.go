package review

import (
	"encoding/json"
	"slices"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/samber/lo"
)

// LessonSchedule is the ordered block list of a single lesson.
type LessonSchedule struct {
	LessonID string       `json:"lesson_id"`
	Blocks   []DrillBlock `json:"blocks"`
}

// CardCount returns the number of scheduled cards, reviews included.
func (s LessonSchedule) CardCount() int {
	return lo.SumBy(s.Blocks, func(b DrillBlock) int { return len(b.Cards) })
}

// Schedule holds the block lists of a curriculum in curriculum order.
type Schedule struct {
	lessons []LessonSchedule
	index   map[string]int
}

// NewSchedule returns an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{index: make(map[string]int)}
}

func (s *Schedule) add(lessonID string, blocks []DrillBlock) {
	s.index[lessonID] = len(s.lessons)
	s.lessons = append(s.lessons, LessonSchedule{LessonID: lessonID, Blocks: blocks})
}

// Blocks returns a copy of the block list of a lesson and whether it is
// scheduled. Schedules are shared between callers, so they never hand out
// their own slices.
func (s *Schedule) Blocks(lessonID string) ([]DrillBlock, bool) {
	i, ok := s.index[lessonID]
	if !ok {
		return nil, false
	}
	return cloneBlocks(s.lessons[i].Blocks), true
}

// Lessons returns a copy of every lesson schedule in curriculum order.
func (s *Schedule) Lessons() []LessonSchedule {
	return lo.Map(s.lessons, func(l LessonSchedule, _ int) LessonSchedule {
		return LessonSchedule{LessonID: l.LessonID, Blocks: cloneBlocks(l.Blocks)}
	})
}

func cloneBlocks(blocks []DrillBlock) []DrillBlock {
	return lo.Map(blocks, func(b DrillBlock, _ int) DrillBlock {
		cards := lo.Map(b.Cards, func(c domain.SentenceCard, _ int) domain.SentenceCard {
			c.AcceptedAnswers = slices.Clone(c.AcceptedAnswers)
			return c
		})
		return DrillBlock{Type: b.Type, Cards: cards}
	})
}

// LessonIDs returns the scheduled lesson IDs in curriculum order.
func (s *Schedule) LessonIDs() []string {
	return lo.Map(s.lessons, func(l LessonSchedule, _ int) string { return l.LessonID })
}

// Len returns the number of scheduled lessons.
func (s *Schedule) Len() int {
	return len(s.lessons)
}

// MarshalJSON encodes the schedule as its ordered lesson list.
func (s *Schedule) MarshalJSON() ([]byte, error) {
	lessons := s.lessons
	if lessons == nil {
		lessons = []LessonSchedule{}
	}
	return json.Marshal(struct {
		Lessons []LessonSchedule `json:"lessons"`
	}{Lessons: lessons})
}
