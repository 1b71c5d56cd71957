package entities

import (
	"time"

	"calctree/domain/config"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
	pkgerrors "calctree/pkg/errors"
)

// Operation is one arithmetic step in a discussion tree.
// Before, after and depth are derived values owned by the recalculation
// service; the entity only guards that they change together.
type Operation struct {
	id           valueobjects.OperationID
	discussionID valueobjects.DiscussionID
	parentID     *valueobjects.OperationID
	kind         valueobjects.OperationKind
	operand      valueobjects.Decimal
	beforeValue  valueobjects.Decimal
	afterValue   valueobjects.Decimal
	depth        int
	title        string
	createdBy    string
	createdAt    time.Time
	updatedAt    time.Time

	events []events.DomainEvent
}

// OperationState is the persisted shape of an Operation.
type OperationState struct {
	ID           valueobjects.OperationID
	DiscussionID valueobjects.DiscussionID
	ParentID     *valueobjects.OperationID
	Kind         valueobjects.OperationKind
	Operand      valueobjects.Decimal
	BeforeValue  valueobjects.Decimal
	AfterValue   valueobjects.Decimal
	Depth        int
	Title        string
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOperationParams carries everything needed to admit a node.
type NewOperationParams struct {
	DiscussionID valueobjects.DiscussionID
	ParentID     *valueobjects.OperationID
	Kind         valueobjects.OperationKind
	Operand      valueobjects.Decimal
	BeforeValue  valueobjects.Decimal
	AfterValue   valueobjects.Decimal
	Depth        int
	Title        string
	CreatedBy    string
}

// NewOperation admits a node whose values were already computed.
func NewOperation(p NewOperationParams, cfg *config.DomainConfig) (*Operation, error) {
	if p.DiscussionID.IsZero() {
		return nil, pkgerrors.Validation("operation must belong to a discussion").WithDetail("field", "discussionId")
	}
	if !p.Kind.IsValid() {
		return nil, pkgerrors.InvalidOperationKind(string(p.Kind))
	}
	if p.Depth < 1 {
		return nil, pkgerrors.Validation("operation depth must be at least 1")
	}
	title, err := valueobjects.NewOperationTitle(p.Title, cfg)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	op := &Operation{
		id:           valueobjects.NewOperationID(),
		discussionID: p.DiscussionID,
		parentID:     copyID(p.ParentID),
		kind:         p.Kind,
		operand:      p.Operand,
		beforeValue:  p.BeforeValue,
		afterValue:   p.AfterValue,
		depth:        p.Depth,
		title:        title,
		createdBy:    p.CreatedBy,
		createdAt:    now,
		updatedAt:    now,
	}
	op.addEvent(events.NewOperationCreated(op.id, op.discussionID, copyID(op.parentID), op.kind, op.operand, op.afterValue, op.depth, now))
	return op, nil
}

// ReconstructOperation rebuilds an operation from stored state without
// raising events.
func ReconstructOperation(s OperationState) *Operation {
	return &Operation{
		id:           s.ID,
		discussionID: s.DiscussionID,
		parentID:     copyID(s.ParentID),
		kind:         s.Kind,
		operand:      s.Operand,
		beforeValue:  s.BeforeValue,
		afterValue:   s.AfterValue,
		depth:        s.Depth,
		title:        s.Title,
		createdBy:    s.CreatedBy,
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
	}
}

// State returns a detached copy of the persisted fields.
func (o *Operation) State() OperationState {
	return OperationState{
		ID:           o.id,
		DiscussionID: o.discussionID,
		ParentID:     copyID(o.parentID),
		Kind:         o.kind,
		Operand:      o.operand,
		BeforeValue:  o.beforeValue,
		AfterValue:   o.afterValue,
		Depth:        o.depth,
		Title:        o.title,
		CreatedBy:    o.createdBy,
		CreatedAt:    o.createdAt,
		UpdatedAt:    o.updatedAt,
	}
}

// Clone returns an independent copy without pending events.
func (o *Operation) Clone() *Operation {
	return ReconstructOperation(o.State())
}

func (o *Operation) ID() valueobjects.OperationID {
	return o.id
}

func (o *Operation) DiscussionID() valueobjects.DiscussionID {
	return o.discussionID
}

// ParentID returns nil for a root operation.
func (o *Operation) ParentID() *valueobjects.OperationID {
	return copyID(o.parentID)
}

// IsRoot reports whether the operation hangs directly off the discussion.
func (o *Operation) IsRoot() bool {
	return o.parentID == nil
}

func (o *Operation) Kind() valueobjects.OperationKind {
	return o.kind
}

func (o *Operation) Operand() valueobjects.Decimal {
	return o.operand
}

func (o *Operation) BeforeValue() valueobjects.Decimal {
	return o.beforeValue
}

func (o *Operation) AfterValue() valueobjects.Decimal {
	return o.afterValue
}

func (o *Operation) Depth() int {
	return o.depth
}

func (o *Operation) Title() string {
	return o.title
}

func (o *Operation) CreatedBy() string {
	return o.createdBy
}

func (o *Operation) CreatedAt() time.Time {
	return o.createdAt
}

func (o *Operation) UpdatedAt() time.Time {
	return o.updatedAt
}

// ApplyEdit replaces the user-editable fields together with the values they
// produce. Title must already be validated.
func (o *Operation) ApplyEdit(kind valueobjects.OperationKind, operand valueobjects.Decimal, title string, before, after valueobjects.Decimal) {
	oldAfter := o.afterValue
	o.kind = kind
	o.operand = operand
	o.title = title
	o.beforeValue = before
	o.afterValue = after
	o.updatedAt = time.Now().UTC()
	o.addEvent(events.NewOperationUpdated(o.id, o.discussionID, kind, operand, oldAfter, after, o.updatedAt))
}

// Rebase moves the derived values after an ancestor changed. Kind, operand
// and title are untouched.
func (o *Operation) Rebase(before, after valueobjects.Decimal, depth int) {
	o.beforeValue = before
	o.afterValue = after
	o.depth = depth
	o.updatedAt = time.Now().UTC()
}

// GetUncommittedEvents returns all uncommitted domain events
func (o *Operation) GetUncommittedEvents() []events.DomainEvent {
	return o.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (o *Operation) MarkEventsAsCommitted() {
	o.events = nil
}

func (o *Operation) addEvent(event events.DomainEvent) {
	o.events = append(o.events, event)
}

func copyID(id *valueobjects.OperationID) *valueobjects.OperationID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
