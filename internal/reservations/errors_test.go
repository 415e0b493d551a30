package reservations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	err := newError(KindConflict, "held 10:00-11:00")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(fmt.Errorf("create: %w", err), ErrConflict))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, "room is already reserved for that time: held 10:00-11:00", err.Message())
}

func TestDistinctMessages(t *testing.T) {
	seen := make(map[string]Kind)
	for kind, msg := range messages {
		if prev, ok := seen[msg]; ok {
			t.Fatalf("%s and %s share message %q", prev, kind, msg)
		}
		seen[msg] = kind
	}
	assert.Len(t, messages, 10)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.Equal(t, KindNotFound, KindOf(classify(fmt.Errorf("get: %w", ErrNoRows))))
	assert.Equal(t, KindConflict, KindOf(classify(ErrOverlap)))
	assert.Equal(t, KindTransient, KindOf(classify(ErrStaleVersion)))
	assert.Equal(t, KindTransient, KindOf(classify(context.DeadlineExceeded)))
	assert.Equal(t, KindTransient, KindOf(classify(errors.New("connection reset"))))
	assert.True(t, IsRetryable(classify(errors.New("connection reset"))))

	typed := newError(KindDuplicate, "s1")
	assert.Same(t, typed, classify(typed))
}
