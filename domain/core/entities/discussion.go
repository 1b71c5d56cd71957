package entities

import (
	"time"

	"calctree/domain/config"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
	pkgerrors "calctree/pkg/errors"
)

// Discussion is a named computation session owning a forest of operations.
type Discussion struct {
	id            valueobjects.DiscussionID
	title         string
	startingValue valueobjects.Decimal
	isEnded       bool
	endedAt       *time.Time
	createdBy     string
	createdAt     time.Time
	updatedAt     time.Time

	events []events.DomainEvent
}

// DiscussionState is the persisted shape of a Discussion.
type DiscussionState struct {
	ID            valueobjects.DiscussionID
	Title         string
	StartingValue valueobjects.Decimal
	IsEnded       bool
	EndedAt       *time.Time
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDiscussion opens a discussion after validating its title and starting value.
func NewDiscussion(title string, startingValue valueobjects.Decimal, createdBy string, cfg *config.DomainConfig) (*Discussion, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title, err := valueobjects.NewDiscussionTitle(title, cfg)
	if err != nil {
		return nil, err
	}

	limit := valueobjects.NewDecimalFromInt(cfg.MaxStartingMagnitude)
	if startingValue.Abs().Cmp(limit) > 0 {
		return nil, pkgerrors.Validation("Value exceeds safe number range").WithDetail("field", "startingValue")
	}

	now := time.Now().UTC()
	d := &Discussion{
		id:            valueobjects.NewDiscussionID(),
		title:         title,
		startingValue: startingValue,
		createdBy:     createdBy,
		createdAt:     now,
		updatedAt:     now,
	}
	d.addEvent(events.NewDiscussionCreated(d.id, d.title, d.startingValue, createdBy, now))
	return d, nil
}

// ReconstructDiscussion rebuilds a discussion from stored state without
// raising events.
func ReconstructDiscussion(s DiscussionState) *Discussion {
	var endedAt *time.Time
	if s.EndedAt != nil {
		t := *s.EndedAt
		endedAt = &t
	}
	return &Discussion{
		id:            s.ID,
		title:         s.Title,
		startingValue: s.StartingValue,
		isEnded:       s.IsEnded,
		endedAt:       endedAt,
		createdBy:     s.CreatedBy,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}
}

// State returns a detached copy of the persisted fields.
func (d *Discussion) State() DiscussionState {
	var endedAt *time.Time
	if d.endedAt != nil {
		t := *d.endedAt
		endedAt = &t
	}
	return DiscussionState{
		ID:            d.id,
		Title:         d.title,
		StartingValue: d.startingValue,
		IsEnded:       d.isEnded,
		EndedAt:       endedAt,
		CreatedBy:     d.createdBy,
		CreatedAt:     d.createdAt,
		UpdatedAt:     d.updatedAt,
	}
}

func (d *Discussion) ID() valueobjects.DiscussionID {
	return d.id
}

func (d *Discussion) Title() string {
	return d.title
}

func (d *Discussion) StartingValue() valueobjects.Decimal {
	return d.startingValue
}

func (d *Discussion) IsEnded() bool {
	return d.isEnded
}

func (d *Discussion) CreatedBy() string {
	return d.createdBy
}

func (d *Discussion) CreatedAt() time.Time {
	return d.createdAt
}

func (d *Discussion) UpdatedAt() time.Time {
	return d.updatedAt
}

// EndedAt returns when the discussion was closed, or nil while it is open.
func (d *Discussion) EndedAt() *time.Time {
	if d.endedAt == nil {
		return nil
	}
	t := *d.endedAt
	return &t
}

// EnsureOpen fails with DiscussionEnded once the discussion is closed.
func (d *Discussion) EnsureOpen() error {
	if d.isEnded {
		return pkgerrors.DiscussionEnded(d.id.String())
	}
	return nil
}

// Rename changes the title. Allowed after the discussion has ended.
func (d *Discussion) Rename(title string, cfg *config.DomainConfig) error {
	title, err := valueobjects.NewDiscussionTitle(title, cfg)
	if err != nil {
		return err
	}
	if title == d.title {
		return nil
	}

	old := d.title
	d.title = title
	d.updatedAt = time.Now().UTC()
	d.addEvent(events.NewDiscussionUpdated(d.id, old, title, d.updatedAt))
	return nil
}

// End closes the discussion. It can happen only once.
func (d *Discussion) End() error {
	if d.isEnded {
		return pkgerrors.DiscussionAlreadyEnded(d.id.String())
	}

	now := time.Now().UTC()
	d.isEnded = true
	d.endedAt = &now
	d.updatedAt = now
	d.addEvent(events.NewDiscussionEnded(d.id, now))
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (d *Discussion) GetUncommittedEvents() []events.DomainEvent {
	return d.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (d *Discussion) MarkEventsAsCommitted() {
	d.events = nil
}

func (d *Discussion) addEvent(event events.DomainEvent) {
	d.events = append(d.events, event)
}
