package review

import (
	"errors"
	"fmt"

	"github.com/phrazzld/drill-api/internal/domain"
	"github.com/samber/lo"
)

var (
	// ErrInvalidConfig is returned by NewBuilder for unusable sizes or intervals.
	ErrInvalidConfig = errors.New("invalid review schedule configuration")

	// ErrDuplicateLesson is returned by Build when two lessons share an ID.
	ErrDuplicateLesson = errors.New("duplicate lesson ID in curriculum")
)

// DefaultReviewIntervals are the mixed-block distances at which an earlier
// lesson is due for review.
var DefaultReviewIntervals = []int{1, 2, 4, 7, 10, 14, 20, 28, 42, 56}

// MinSubLessonSize is the smallest block size that leaves room for reviews.
const MinSubLessonSize = 2

// Config holds the builder parameters.
type Config struct {
	// Cards at the start of each lesson drilled before anything else.
	WarmupSize int
	// Cards per block of new material.
	SubLessonSize int
	// Mixed-block distances at which a lesson becomes due. Nil uses
	// DefaultReviewIntervals.
	ReviewIntervals []int
}

// Builder produces drill schedules. It holds no state between builds and is
// safe for concurrent use.
type Builder struct {
	warmupSize    int
	subLessonSize int
	intervals     []int
}

// NewBuilder validates the configuration and returns a Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.WarmupSize < 0 {
		return nil, fmt.Errorf("%w: warm-up size cannot be negative, got %d", ErrInvalidConfig, cfg.WarmupSize)
	}
	if cfg.SubLessonSize < MinSubLessonSize {
		return nil, fmt.Errorf("%w: sub-lesson size must be at least %d, got %d",
			ErrInvalidConfig, MinSubLessonSize, cfg.SubLessonSize)
	}

	intervals := cfg.ReviewIntervals
	if intervals == nil {
		intervals = DefaultReviewIntervals
	}
	if len(intervals) == 0 {
		return nil, fmt.Errorf("%w: review intervals cannot be empty", ErrInvalidConfig)
	}
	for i, v := range intervals {
		if v <= 0 {
			return nil, fmt.Errorf("%w: review interval %d must be positive, got %d", ErrInvalidConfig, i, v)
		}
		if i > 0 && v <= intervals[i-1] {
			return nil, fmt.Errorf("%w: review intervals must be strictly increasing", ErrInvalidConfig)
		}
	}

	return &Builder{
		warmupSize:    cfg.WarmupSize,
		subLessonSize: cfg.SubLessonSize,
		intervals:     append([]int(nil), intervals...),
	}, nil
}

// Config returns a copy of the builder configuration.
func (b *Builder) Config() Config {
	return Config{
		WarmupSize:      b.warmupSize,
		SubLessonSize:   b.subLessonSize,
		ReviewIntervals: append([]int(nil), b.intervals...),
	}
}

// cardQueue is a FIFO of cards. Cards are never added back once taken.
type cardQueue struct {
	cards []domain.SentenceCard
}

func newCardQueue(cards []domain.SentenceCard) *cardQueue {
	return &cardQueue{cards: append([]domain.SentenceCard(nil), cards...)}
}

func (q *cardQueue) len() int {
	return len(q.cards)
}

// take removes and returns up to n cards from the front of the queue.
func (q *cardQueue) take(n int) []domain.SentenceCard {
	n = min(max(n, 0), len(q.cards))
	taken := q.cards[:n:n]
	q.cards = q.cards[n:]
	return taken
}

// buildState is the bookkeeping shared by all lessons of one build.
type buildState struct {
	// review queue per curriculum index
	reviewQueues []*cardQueue
	// global mixed-block counter value at which each lesson became reviewable
	anchors map[int]int
	// global mixed-block counter
	mixedCount int
}

// Build schedules every lesson in curriculum order.
//
// Earlier lessons are reviewed only from mixed blocks of later lessons. The
// first lesson therefore has no mixed blocks; cards it leaves for the mixed
// phase are not scheduled.
func (b *Builder) Build(lessons []domain.Lesson) (*Schedule, error) {
	duplicates := lo.FindDuplicatesBy(lessons, func(l domain.Lesson) string { return l.ID })
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateLesson, duplicates[0].ID)
	}

	schedule := NewSchedule()
	state := &buildState{
		reviewQueues: make([]*cardQueue, len(lessons)),
		anchors:      make(map[int]int),
	}

	for i, lesson := range lessons {
		schedule.add(lesson.ID, b.buildLesson(state, lessons, i))
	}

	return schedule, nil
}

// buildLesson emits the blocks of the lesson at curriculum index i.
func (b *Builder) buildLesson(state *buildState, lessons []domain.Lesson, i int) []DrillBlock {
	if i > 0 {
		if _, ok := state.anchors[i-1]; !ok {
			state.anchors[i-1] = state.mixedCount
		}
	}

	cards := lessons[i].Cards
	state.reviewQueues[i] = newCardQueue(cards)

	current := newCardQueue(cards)
	warmup := current.take(b.warmupSize)

	reviewSlots := b.subLessonSize / 2
	newSlots := b.subLessonSize - reviewSlots
	pairSize := b.subLessonSize + newSlots
	pairCount := ceilDiv(current.len(), pairSize)

	blocks := make([]DrillBlock, 0, 1+2*pairCount)
	if len(warmup) > 0 {
		blocks = append(blocks, DrillBlock{Type: BlockWarmup, Cards: warmup})
	}

	for p := 0; p < pairCount; p++ {
		newCards := current.take(b.subLessonSize)
		if len(newCards) == 0 {
			break
		}
		blocks = append(blocks, DrillBlock{Type: BlockNewOnly, Cards: newCards})
	}

	if i == 0 {
		return blocks
	}

	for p := 0; p < pairCount; p++ {
		state.mixedCount++

		newHalf := current.take(newSlots)
		if len(newHalf) == 0 {
			continue
		}

		reviews := b.fillReviews(state, state.dueLessons(b.intervals, i), len(newHalf))
		if len(reviews) < len(newHalf) {
			reviews = append(reviews, current.take(len(newHalf)-len(reviews))...)
		}

		mixed := make([]domain.SentenceCard, 0, len(newHalf)+len(reviews))
		mixed = append(mixed, newHalf...)
		mixed = append(mixed, reviews...)
		blocks = append(blocks, DrillBlock{Type: BlockMixed, Cards: mixed})
	}

	return blocks
}

// dueLessons returns the curriculum indexes of lessons due at the current
// counter value, most recently introduced first.
func (s *buildState) dueLessons(intervals []int, current int) []int {
	var due []int
	for idx := current - 1; idx >= 0; idx-- {
		anchor, ok := s.anchors[idx]
		if !ok {
			continue
		}
		if lo.Contains(intervals, s.mixedCount-anchor) {
			due = append(due, idx)
		}
	}
	return due
}

// fillReviews draws up to slots cards round-robin from the due lessons'
// review queues, dropping lessons from the rotation once exhausted.
func (b *Builder) fillReviews(state *buildState, due []int, slots int) []domain.SentenceCard {
	rotation := lo.Filter(due, func(idx int, _ int) bool {
		return state.reviewQueues[idx].len() > 0
	})

	reviews := make([]domain.SentenceCard, 0, slots)
	pos := 0
	for len(reviews) < slots && len(rotation) > 0 {
		queue := state.reviewQueues[rotation[pos]]
		reviews = append(reviews, queue.take(1)...)

		if queue.len() == 0 {
			rotation = append(rotation[:pos], rotation[pos+1:]...)
		} else {
			pos++
		}
		if pos >= len(rotation) {
			pos = 0
		}
	}

	return reviews
}

func ceilDiv(numerator, denominator int) int {
	if numerator <= 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}
