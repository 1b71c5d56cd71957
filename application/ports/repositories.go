package ports

import (
	"context"
	"fmt"
	"strings"

	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
)

// OperationRepository is the transaction-scoped view of operation nodes.
// This is a port in hexagonal architecture - the engine doesn't know about the implementation
type OperationRepository interface {
	// FindByID returns a NOT_FOUND domain error when the node is absent
	FindByID(ctx context.Context, id valueobjects.OperationID) (*entities.Operation, error)

	// FindChildren returns the direct children of parentID
	FindChildren(ctx context.Context, parentID valueobjects.OperationID) ([]*entities.Operation, error)

	// FindByDiscussion returns every node of a discussion
	FindByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) ([]*entities.Operation, error)

	// List returns one page of nodes matching filter plus the total match count
	List(ctx context.Context, filter OperationFilter) ([]*entities.Operation, int, error)

	// Create inserts a new node
	Create(ctx context.Context, op *entities.Operation) error

	// Update overwrites an existing node
	Update(ctx context.Context, op *entities.Operation) error

	// DeleteByDiscussion removes every node of a discussion and reports how many
	DeleteByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) (int, error)
}

// DiscussionRepository is the transaction-scoped view of discussions.
type DiscussionRepository interface {
	// FindByID returns a NOT_FOUND domain error when the discussion is absent
	FindByID(ctx context.Context, id valueobjects.DiscussionID) (*entities.Discussion, error)

	// List returns one page of discussions, newest first, plus the total match count
	List(ctx context.Context, filter DiscussionFilter) ([]*entities.Discussion, int, error)

	Create(ctx context.Context, d *entities.Discussion) error
	Update(ctx context.Context, d *entities.Discussion) error
	Delete(ctx context.Context, id valueobjects.DiscussionID) error
}

// Tx is one unit of work. Every repository it hands out reads its own
// uncommitted writes.
type Tx interface {
	Operations() OperationRepository
	Discussions() DiscussionRepository
}

// TxManager runs fn inside a transaction. A non-nil error from fn rolls
// back every write made through tx; nil commits them atomically.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// View runs fn against a read-only snapshot. Writes through tx fail.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// OperationFilter selects operations for listing
type OperationFilter struct {
	DiscussionID *valueobjects.DiscussionID
	Kinds        []valueobjects.OperationKind
	Offset       int
	Limit        int
}

// Matches applies the non-paging part of the filter.
func (f OperationFilter) Matches(op *entities.Operation) bool {
	if f.DiscussionID != nil && !op.DiscussionID().Equals(*f.DiscussionID) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if op.Kind() == k {
			return true
		}
	}
	return false
}

// DiscussionFilter selects discussions for listing
type DiscussionFilter struct {
	// TitleContains is matched case-insensitively
	TitleContains string
	CreatedBy     string
	Offset        int
	Limit         int
}

// Matches applies the non-paging part of the filter.
func (f DiscussionFilter) Matches(d *entities.Discussion) bool {
	if f.CreatedBy != "" && d.CreatedBy() != f.CreatedBy {
		return false
	}
	if f.TitleContains != "" && !strings.Contains(strings.ToLower(d.Title()), strings.ToLower(f.TitleContains)) {
		return false
	}
	return true
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// RootNodesCacheKey is the cache entry holding a discussion's root summary.
func RootNodesCacheKey(discussionID string) string {
	return fmt.Sprintf("discussion:%s:root_nodes", discussionID)
}

// RecalculationRecorder receives the size of every cascade.
type RecalculationRecorder interface {
	RecordRecalculation(ctx context.Context, discussionID string, descendants int)
}

// PageBounds clamps offset/limit to a slice of length total. A limit of 0
// or less means "everything after offset".
func PageBounds(total, offset, limit int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end = total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
