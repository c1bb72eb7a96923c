package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := Validation("search", "too long")
	assert.Equal(t, ErrCodeValidation, err.Code)
	assert.Equal(t, "search", err.Subject)
	assert.Equal(t, "VALIDATION_ERROR: invalid search: too long", err.Error())

	cause := errors.New("connection refused")
	wrapped := Network("list jobs", cause)
	assert.Equal(t, "NETWORK_ERROR: list jobs failed: connection refused", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, Is(wrapped, ErrCodeNetwork))
	assert.False(t, Is(wrapped, ErrCodeValidation))
	assert.False(t, wrapped.Cancelled())

	// the code is found through fmt wrapping
	outer := fmt.Errorf("fetch: %w", wrapped)
	assert.True(t, Is(outer, ErrCodeNetwork))
	assert.Equal(t, ErrCodeNetwork, CodeOf(outer))

	assert.False(t, Is(nil, ErrCodeNetwork))
	assert.False(t, Is(cause, ""))
	assert.Equal(t, ErrorCode(""), CodeOf(cause))
}

func TestErrorConstructors(t *testing.T) {
	assert.True(t, Network("list jobs", context.Canceled).Cancelled())
	assert.True(t, Network("list jobs", fmt.Errorf("query: %w", context.DeadlineExceeded)).Cancelled())

	err := StaleWrite("jobs", 3, 5)
	assert.Equal(t, ErrCodeStaleWrite, err.Code)
	assert.Equal(t, "jobs", err.Subject)
	assert.Contains(t, err.Message, "generation 3 superseded by 5")

	assert.Equal(t, "save jobs", AuthRequired("save jobs").Subject)
	assert.Equal(t, "job '9' not found", NotFound("job", "9").Message)

	rc := RealtimeChannel("TIMED_OUT", context.DeadlineExceeded)
	assert.ErrorIs(t, rc, context.DeadlineExceeded)
	assert.Equal(t, "TIMED_OUT", rc.Subject)

	assert.Equal(t, ErrCodeInternal, Internal("encode payload", errors.New("cycle")).Code)
}
