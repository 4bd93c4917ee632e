package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")

	testCases := []struct {
		name    string
		err     *ServiceError
		wantMsg string
	}{
		{
			name:    "with cause",
			err:     NewServiceError("record_exposure", "failed to save mastery", cause),
			wantMsg: "record_exposure operation failed: failed to save mastery: connection refused",
		},
		{
			name:    "without cause",
			err:     NewServiceError("overview", "curriculum missing", nil),
			wantMsg: "overview operation failed: curriculum missing",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.wantMsg, tc.err.Error())
		})
	}

	wrapped := NewServiceError("reset", "failed", cause)
	assert.ErrorIs(t, wrapped, cause)

	var target *ServiceError
	assert.ErrorAs(t, error(wrapped), &target)
	assert.Equal(t, "reset", target.Operation)
}
