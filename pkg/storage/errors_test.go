package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindNotFound, "NotFound"},
		{KindForbidden, "Forbidden"},
		{KindInUse, "InUse"},
		{KindConflict, "Conflict"},
		{KindBackendUnavailable, "BackendUnavailable"},
		{KindTimeout, "Timeout"},
		{KindInvalidInput, "InvalidInput"},
		{KindCanceled, "Canceled"},
		{ErrorKind(99), "Unknown(99)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestErrorKindJSON(t *testing.T) {
	b, err := json.Marshal(BulkError{Path: "public/a", Kind: KindConflict, Message: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"kind":"Conflict"`)

	var be BulkError
	require.NoError(t, json.Unmarshal(b, &be))
	assert.Equal(t, KindConflict, be.Kind)

	var k ErrorKind
	assert.Error(t, k.UnmarshalText([]byte("Nope")))
}

func TestAsError(t *testing.T) {
	t.Run("PassesThroughStorageErrors", func(t *testing.T) {
		orig := NewConflictError("public/b.png")
		wrapped := fmt.Errorf("copy: %w", orig)
		assert.Same(t, orig, AsError("other", wrapped))
	})

	t.Run("ClassifiesContextErrors", func(t *testing.T) {
		assert.Equal(t, KindTimeout, AsError("p", context.DeadlineExceeded).Kind)
		assert.Equal(t, KindCanceled, AsError("p", context.Canceled).Kind)
	})

	t.Run("DefaultsToBackendUnavailable", func(t *testing.T) {
		cause := errors.New("connection reset")
		se := AsError("private/x", cause)
		assert.Equal(t, KindBackendUnavailable, se.Kind)
		assert.Equal(t, "private/x", se.Path)
		assert.ErrorIs(t, se, cause)
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, AsError("p", nil))
		assert.Zero(t, KindOf(nil))
	})
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewInUseError("private/bg.png", "in use"))
	assert.ErrorIs(t, err, &Error{Kind: KindInUse})
	assert.ErrorIs(t, err, &Error{Kind: KindInUse, Path: "private/bg.png"})
	assert.NotErrorIs(t, err, &Error{Kind: KindInUse, Path: "other"})
	assert.NotErrorIs(t, err, &Error{Kind: KindNotFound})
	assert.True(t, IsInUse(err))
	assert.False(t, IsNotFound(err))
}

func TestErrorMessage(t *testing.T) {
	err := NewTimeoutError("private/a", context.DeadlineExceeded)
	assert.Equal(t, "Timeout: storage operation timed out (path: private/a): context deadline exceeded", err.Error())
	assert.Equal(t, "storage operation timed out", MessageOf(err))
}
