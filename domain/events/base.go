package events

import (
	"time"

	"calctree/domain/core/valueobjects"

	"github.com/google/uuid"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// Event type names as they appear on the bus.
const (
	TypeDiscussionCreated = "discussion.created"
	TypeDiscussionUpdated = "discussion.updated"
	TypeDiscussionEnded   = "discussion.ended"
	TypeDiscussionDeleted = "discussion.deleted"
	TypeOperationCreated  = "operation.created"
	TypeOperationUpdated  = "operation.updated"
	TypeTreeRecalculated  = "tree.recalculated"
)

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func newBase(aggregateID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.New().String(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   at,
		Version:     1,
	}
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Discussion Events

// DiscussionCreated is raised when a new discussion is opened
type DiscussionCreated struct {
	BaseEvent
	DiscussionID  valueobjects.DiscussionID `json:"discussion_id"`
	Title         string                    `json:"title"`
	StartingValue valueobjects.Decimal      `json:"starting_value"`
	CreatedBy     string                    `json:"created_by"`
}

func NewDiscussionCreated(id valueobjects.DiscussionID, title string, start valueobjects.Decimal, createdBy string, at time.Time) DiscussionCreated {
	return DiscussionCreated{
		BaseEvent:     newBase(id.String(), TypeDiscussionCreated, at),
		DiscussionID:  id,
		Title:         title,
		StartingValue: start,
		CreatedBy:     createdBy,
	}
}

// DiscussionUpdated is raised when discussion metadata changes
type DiscussionUpdated struct {
	BaseEvent
	DiscussionID valueobjects.DiscussionID `json:"discussion_id"`
	OldTitle     string                    `json:"old_title"`
	NewTitle     string                    `json:"new_title"`
}

func NewDiscussionUpdated(id valueobjects.DiscussionID, oldTitle, newTitle string, at time.Time) DiscussionUpdated {
	return DiscussionUpdated{
		BaseEvent:    newBase(id.String(), TypeDiscussionUpdated, at),
		DiscussionID: id,
		OldTitle:     oldTitle,
		NewTitle:     newTitle,
	}
}

// DiscussionEnded is raised exactly once per discussion
type DiscussionEnded struct {
	BaseEvent
	DiscussionID valueobjects.DiscussionID `json:"discussion_id"`
	EndedAt      time.Time                 `json:"ended_at"`
}

func NewDiscussionEnded(id valueobjects.DiscussionID, at time.Time) DiscussionEnded {
	return DiscussionEnded{
		BaseEvent:    newBase(id.String(), TypeDiscussionEnded, at),
		DiscussionID: id,
		EndedAt:      at,
	}
}

// DiscussionDeleted is raised after a discussion and its tree are removed
type DiscussionDeleted struct {
	BaseEvent
	DiscussionID      valueobjects.DiscussionID `json:"discussion_id"`
	OperationsRemoved int                       `json:"operations_removed"`
}

func NewDiscussionDeleted(id valueobjects.DiscussionID, removed int, at time.Time) DiscussionDeleted {
	return DiscussionDeleted{
		BaseEvent:         newBase(id.String(), TypeDiscussionDeleted, at),
		DiscussionID:      id,
		OperationsRemoved: removed,
	}
}

// Operation Events

// OperationCreated is raised when a node is admitted to a tree
type OperationCreated struct {
	BaseEvent
	OperationID  valueobjects.OperationID   `json:"operation_id"`
	DiscussionID valueobjects.DiscussionID  `json:"discussion_id"`
	ParentID     *valueobjects.OperationID  `json:"parent_id,omitempty"`
	Kind         valueobjects.OperationKind `json:"kind"`
	Operand      valueobjects.Decimal       `json:"operand"`
	AfterValue   valueobjects.Decimal       `json:"after_value"`
	Depth        int                        `json:"depth"`
}

func NewOperationCreated(
	id valueobjects.OperationID,
	discussionID valueobjects.DiscussionID,
	parentID *valueobjects.OperationID,
	kind valueobjects.OperationKind,
	operand, after valueobjects.Decimal,
	depth int,
	at time.Time,
) OperationCreated {
	return OperationCreated{
		BaseEvent:    newBase(id.String(), TypeOperationCreated, at),
		OperationID:  id,
		DiscussionID: discussionID,
		ParentID:     parentID,
		Kind:         kind,
		Operand:      operand,
		AfterValue:   after,
		Depth:        depth,
	}
}

// OperationUpdated is raised when an operation's operand, kind or title is edited
type OperationUpdated struct {
	BaseEvent
	OperationID   valueobjects.OperationID   `json:"operation_id"`
	DiscussionID  valueobjects.DiscussionID  `json:"discussion_id"`
	Kind          valueobjects.OperationKind `json:"kind"`
	Operand       valueobjects.Decimal       `json:"operand"`
	OldAfterValue valueobjects.Decimal       `json:"old_after_value"`
	NewAfterValue valueobjects.Decimal       `json:"new_after_value"`
}

func NewOperationUpdated(
	id valueobjects.OperationID,
	discussionID valueobjects.DiscussionID,
	kind valueobjects.OperationKind,
	operand, oldAfter, newAfter valueobjects.Decimal,
	at time.Time,
) OperationUpdated {
	return OperationUpdated{
		BaseEvent:     newBase(id.String(), TypeOperationUpdated, at),
		OperationID:   id,
		DiscussionID:  discussionID,
		Kind:          kind,
		Operand:       operand,
		OldAfterValue: oldAfter,
		NewAfterValue: newAfter,
	}
}

// TreeRecalculated is raised after a cascade rewrote descendants
type TreeRecalculated struct {
	BaseEvent
	RootOperationID   valueobjects.OperationID  `json:"root_operation_id"`
	DiscussionID      valueobjects.DiscussionID `json:"discussion_id"`
	RecalculatedCount int                       `json:"recalculated_count"`
}

func NewTreeRecalculated(root valueobjects.OperationID, discussionID valueobjects.DiscussionID, count int, at time.Time) TreeRecalculated {
	return TreeRecalculated{
		BaseEvent:         newBase(root.String(), TypeTreeRecalculated, at),
		RootOperationID:   root,
		DiscussionID:      discussionID,
		RecalculatedCount: count,
	}
}
