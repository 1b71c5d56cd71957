package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesTypeAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"fresh not found", NotFound("operation", "x"), ErrNotFound, true},
		{"wrapped", fmt.Errorf("load: %w", DivisionByZero()), ErrDivisionByZero, true},
		{"same type other code", InvalidOperationKind("MOD"), ErrValidation, false},
		{"depth", MaxDepthExceeded(11, 10), ErrMaxDepthExceeded, true},
		{"already ended", DiscussionAlreadyEnded("d"), ErrAlreadyEnded, true},
		{"ended is not already ended", DiscussionEnded("d"), ErrAlreadyEnded, false},
		{"aggregate validation", func() error {
			v := NewValidationErrors()
			v.Add("title", "title is required")
			return v
		}(), ErrValidation, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestMaxDepthExceeded_Message(t *testing.T) {
	err := MaxDepthExceeded(11, 10)

	assert.Equal(t, "Maximum tree depth of 10 exceeded. Cannot add operation at depth 11.", err.Message)
	assert.Equal(t, 11, err.Details["attempted_depth"])
	assert.Equal(t, 10, err.Details["max_depth"])
}

func TestClassification(t *testing.T) {
	cause := errors.New("socket closed")

	assert.True(t, IsNotFound(NotFound("discussion", "d")))
	assert.True(t, IsNotFound(NewNotFoundError("discussion")))
	assert.True(t, IsValidation(Validation("bad")))
	assert.True(t, IsValidation(NewValidationError("bad")))
	assert.True(t, IsConflict(DiscussionAlreadyEnded("d")))
	assert.True(t, IsConflict(NewConflictError("version mismatch")))
	assert.False(t, IsConflict(DiscussionEnded("d")))

	assert.True(t, IsRetryable(NewDatabaseError("put", cause)))
	assert.True(t, IsRetryable(NewExternalError("eventbridge", cause)))
	assert.False(t, IsRetryable(NewInternalError("boom")))
	assert.False(t, IsRetryable(cause))
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "ctx"))
	})
	t.Run("domain error keeps identity", func(t *testing.T) {
		err := Wrap(DivisionByZero(), "evaluate")
		assert.True(t, errors.Is(err, ErrDivisionByZero))
		assert.Contains(t, err.Error(), "evaluate: ")
	})
	t.Run("app error message is prefixed", func(t *testing.T) {
		err := Wrap(NewDatabaseError("get", errors.New("x")), "load op")
		appErr := GetAppError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "load op: database operation 'get' failed", appErr.Message)
		assert.Equal(t, ErrorTypeDatabase, appErr.Type)
	})
	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, "flush")
		assert.True(t, IsType(err, ErrorTypeInternal))
		assert.ErrorIs(t, err, cause)
		assert.NotEmpty(t, GetAppError(err).StackTrace)
	})
}

func TestValidationErrors_ToMap(t *testing.T) {
	v := NewValidationErrors()
	v.Add("title", "title is required")
	v.Add("title", "title too long")
	v.Add("operand", "operand is required")

	assert.True(t, v.HasErrors())
	assert.Equal(t, map[string][]string{
		"title":   {"title is required", "title too long"},
		"operand": {"operand is required"},
	}, v.ToMap())
	assert.Equal(t, "Validation failed: title is required; title too long; operand is required", v.Error())
}
