package handlers

import (
	"context"

	"calctree/application/ports"
	"calctree/domain/events"

	"go.uber.org/zap"
)

// Notifier runs the side effects that follow a committed write: the root
// summary of the discussion is dropped from cache and the events are
// published. Neither step fails the command.
type Notifier struct {
	publisher ports.EventPublisher
	cache     ports.Cache
	logger    *zap.Logger
}

// NewNotifier creates a notifier. Both publisher and cache may be nil.
func NewNotifier(publisher ports.EventPublisher, cache ports.Cache, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		publisher: publisher,
		cache:     cache,
		logger:    logger,
	}
}

// Committed must only be called after the transaction has committed.
func (n *Notifier) Committed(ctx context.Context, discussionID string, evts []events.DomainEvent) {
	if n.cache != nil {
		if err := n.cache.Delete(ctx, ports.RootNodesCacheKey(discussionID)); err != nil {
			n.logger.Warn("Failed to invalidate root summary",
				zap.String("discussion_id", discussionID),
				zap.Error(err),
			)
		}
	}

	if n.publisher == nil || len(evts) == 0 {
		return
	}
	if err := n.publisher.PublishBatch(ctx, evts); err != nil {
		n.logger.Error("Failed to publish domain events",
			zap.String("discussion_id", discussionID),
			zap.Int("events", len(evts)),
			zap.Error(err),
		)
	}
}

// eventSource is anything that buffers domain events until commit.
type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// drain collects and clears the pending events of every source in order.
func drain(sources ...eventSource) []events.DomainEvent {
	var out []events.DomainEvent
	for _, s := range sources {
		out = append(out, s.GetUncommittedEvents()...)
		s.MarkEventsAsCommitted()
	}
	return out
}
