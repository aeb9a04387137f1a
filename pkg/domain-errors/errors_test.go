package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	t.Run("coded error reports its code", func(t *testing.T) {
		err := New(CodeNotFound, "alert not found")
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("wrapped cause keeps outer code", func(t *testing.T) {
		cause := New(CodeInternal, "db failed")
		err := Wrap(cause, CodeUnavailable, "audit write timed out")
		assert.Equal(t, CodeUnavailable, CodeOf(err))
	})

	t.Run("plain error defaults to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil cause returns nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause stays reachable through errors.Is", func(t *testing.T) {
		sentinel := errors.New("connection reset")
		err := Wrap(fmt.Errorf("query events: %w", sentinel), CodeInternal, "store read failed")
		assert.ErrorIs(t, err, sentinel)
	})

	t.Run("message includes cause", func(t *testing.T) {
		err := Wrap(errors.New("timeout"), CodeUnavailable, "append event")
		assert.Contains(t, err.Error(), "append event")
		assert.Contains(t, err.Error(), "timeout")
	})
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(New(CodeValidation, "bad action"), CodeValidation))
	assert.False(t, IsCode(New(CodeValidation, "bad action"), CodeNotFound))
	assert.False(t, IsCode(nil, CodeInternal))
}
