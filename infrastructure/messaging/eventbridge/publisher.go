package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"calctree/domain/events"
	pkgerrors "calctree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every event this service emits.
const Source = "calctree.recalculation"

// EventBridge limits PutEvents to 10 entries per call.
const batchSize = 10

// API is the subset of the EventBridge client the publisher uses.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// BreakerConfig tunes the circuit breaker around PutEvents
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Publisher implements ports.EventPublisher on EventBridge
type Publisher struct {
	client       API
	eventBusName string
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, cfg BreakerConfig, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eventbridge:" + eventBusName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return p
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of ten, stopping at the first failure.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}

		batch := domainEvents[i:end]
		_, err := p.breaker.Execute(func() (interface{}, error) {
			return nil, p.publishBatch(ctx, batch)
		})
		if err != nil {
			return pkgerrors.NewExternalError("eventbridge", err)
		}
	}
	return nil
}

// publishBatch publishes at most batchSize events
func (p *Publisher) publishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event.GetEventType(), err)
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{"calctree:" + event.GetAggregateID()},
		})
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, entry := range result.Entries {
			if entry.ErrorCode != nil && i < len(domainEvents) {
				p.logger.Error("Failed to publish event",
					zap.String("event_type", domainEvents[i].GetEventType()),
					zap.String("error_code", aws.ToString(entry.ErrorCode)),
					zap.String("error_message", aws.ToString(entry.ErrorMessage)),
				)
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("event_bus", p.eventBusName),
	)
	return nil
}

// LogPublisher is the publisher used when no event bus is configured. It
// only logs.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

func (p *LogPublisher) PublishBatch(_ context.Context, domainEvents []events.DomainEvent) error {
	for _, e := range domainEvents {
		p.logger.Debug("Domain event",
			zap.String("event_type", e.GetEventType()),
			zap.String("aggregate_id", e.GetAggregateID()),
			zap.String("event_id", e.GetEventID()),
		)
	}
	return nil
}
