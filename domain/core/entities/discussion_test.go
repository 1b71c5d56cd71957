package entities

import (
	"errors"
	"testing"

	"calctree/domain/config"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscussion(t *testing.T) {
	cfg := config.DefaultDomainConfig()

	tests := []struct {
		name    string
		title   string
		start   string
		wantErr bool
	}{
		{"valid", "Monthly budget", "100", false},
		{"negative start", "Debt", "-250.75", false},
		{"largest safe start", "Edge", "9007199254740991", false},
		{"start too large", "Edge", "9007199254740992", true},
		{"title too short", "ab", "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDiscussion(tt.title, valueobjects.MustDecimal(tt.start), "alice", cfg)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, d.Title())
			assert.False(t, d.IsEnded())
			assert.Nil(t, d.EndedAt())
			require.Len(t, d.GetUncommittedEvents(), 1)
			assert.Equal(t, events.TypeDiscussionCreated, d.GetUncommittedEvents()[0].GetEventType())
		})
	}
}

func TestDiscussion_End(t *testing.T) {
	// Arrange
	d, err := NewDiscussion("Trip", valueobjects.Zero, "alice", nil)
	require.NoError(t, err)
	d.MarkEventsAsCommitted()

	// Act
	err = d.End()

	// Assert
	require.NoError(t, err)
	assert.True(t, d.IsEnded())
	require.NotNil(t, d.EndedAt())
	assert.True(t, errors.Is(d.EnsureOpen(), pkgerrors.ErrDiscussionEnded))
	require.Len(t, d.GetUncommittedEvents(), 1)
	assert.Equal(t, events.TypeDiscussionEnded, d.GetUncommittedEvents()[0].GetEventType())

	endedAt := *d.EndedAt()
	again := d.End()
	assert.True(t, errors.Is(again, pkgerrors.ErrAlreadyEnded))
	assert.True(t, pkgerrors.IsConflict(again))
	assert.Equal(t, endedAt, *d.EndedAt())
}

func TestDiscussion_RenameAfterEnd(t *testing.T) {
	d, err := NewDiscussion("Trip", valueobjects.Zero, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, d.End())
	d.MarkEventsAsCommitted()

	require.NoError(t, d.Rename("Trip to Lisbon", nil))
	assert.Equal(t, "Trip to Lisbon", d.Title())
	require.Len(t, d.GetUncommittedEvents(), 1)

	updated, ok := d.GetUncommittedEvents()[0].(events.DiscussionUpdated)
	require.True(t, ok)
	assert.Equal(t, "Trip", updated.OldTitle)

	// same title is a no-op
	d.MarkEventsAsCommitted()
	require.NoError(t, d.Rename(" Trip to Lisbon ", nil))
	assert.Empty(t, d.GetUncommittedEvents())

	assert.True(t, pkgerrors.IsValidation(d.Rename("x", nil)))
}

func TestDiscussion_StateRoundTrip(t *testing.T) {
	d, err := NewDiscussion("Trip", valueobjects.MustDecimal("3.5"), "alice", nil)
	require.NoError(t, err)
	require.NoError(t, d.End())

	rebuilt := ReconstructDiscussion(d.State())

	assert.Equal(t, d.State(), rebuilt.State())
	assert.Empty(t, rebuilt.GetUncommittedEvents())
}
