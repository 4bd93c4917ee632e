package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		err       error
		notFound  bool
		duplicate bool
	}{
		{name: "nil error", err: nil},
		{name: "generic error", err: errors.New("boom")},
		{name: "ErrNotFound", err: ErrNotFound, notFound: true},
		{name: "mastery not found", err: ErrMasteryNotFound, notFound: true},
		{name: "wrapped lesson not found", err: fmt.Errorf("get: %w", ErrLessonNotFound), notFound: true},
		{name: "duplicate", err: ErrDuplicate, duplicate: true},
		{
			name:      "store error wrapping duplicate",
			err:       NewStoreError("lesson", "replace", "insert failed", ErrDuplicate),
			duplicate: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.notFound, IsNotFoundError(tc.err))
			assert.Equal(t, tc.duplicate, IsDuplicateError(tc.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := NewStoreError("mastery", "save", "failed to write record", cause)

	assert.Equal(t, "save operation on mastery failed: failed to write record: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("mastery", "save", "invalid state", nil)
	assert.Equal(t, "save operation on mastery failed: invalid state", bare.Error())

	var target *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, "mastery", target.Entity)
}
