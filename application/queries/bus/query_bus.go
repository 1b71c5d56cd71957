package bus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// Cacheable is implemented by queries whose results may be served from cache.
type Cacheable interface {
	CacheKey() string
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers    map[reflect.Type]QueryHandler
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewQueryBus creates a new query bus
func NewQueryBus(middlewares ...Middleware) *QueryBus {
	return &QueryBus{
		handlers:    make(map[reflect.Type]QueryHandler),
		middlewares: middlewares,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for query type %s", t.Name())
	}

	for i := len(b.middlewares) - 1; i >= 0; i-- {
		handler = b.middlewares[i].Wrap(handler)
	}
	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, query)
	}

	return handler.Handle(ctx, query)
}

// ErrHandlerNotFound is returned by Ask for unregistered query types.
var ErrHandlerNotFound = errors.New("query handler not found")

// ErrUnexpectedType is returned by a handler given the wrong query.
var ErrUnexpectedType = errors.New("unexpected query type")

// Middleware wraps a query handler
type Middleware interface {
	Wrap(next QueryHandler) QueryHandler
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryName is the short type name used in logs, traces and metrics.
func QueryName(query Query) string {
	t := reflect.TypeOf(query)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// CachingMiddleware serves Cacheable queries from cache
type CachingMiddleware struct {
	cache Cache
	ttl   int // TTL in seconds
}

// NewCachingMiddleware creates a new caching middleware
func NewCachingMiddleware(cache Cache, ttl int) *CachingMiddleware {
	return &CachingMiddleware{
		cache: cache,
		ttl:   ttl,
	}
}

// Wrap wraps a query handler with caching
func (m *CachingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		c, ok := query.(Cacheable)
		if !ok {
			return next.Handle(ctx, query)
		}
		cacheKey := c.CacheKey()

		if cached, found := m.cache.Get(ctx, cacheKey); found {
			return cached, nil
		}

		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}

		// A failed cache write only costs the next caller a store read.
		_ = m.cache.Set(ctx, cacheKey, result, m.ttl)

		return result, nil
	})
}

// Cache interface for caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl int) error
}

// LoggingMiddleware logs each query with its duration
type LoggingMiddleware struct {
	logger *zap.Logger
}

func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: logger}
}

// Wrap wraps a query handler with logging
func (m *LoggingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)
		fields := []zap.Field{
			zap.String("type", QueryName(query)),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			m.logger.Debug("Query failed", append(fields, zap.Error(err))...)
			return nil, err
		}
		m.logger.Debug("Query succeeded", fields...)
		return result, nil
	})
}

// Tracer opens a trace span around fn.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}

// TracingMiddleware records one subsegment per query
type TracingMiddleware struct {
	tracer Tracer
}

func NewTracingMiddleware(tracer Tracer) *TracingMiddleware {
	return &TracingMiddleware{tracer: tracer}
}

// Wrap wraps a query handler with tracing
func (m *TracingMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		var result interface{}
		err := m.tracer.TraceFunction(ctx, "query."+QueryName(query), func(ctx context.Context) error {
			var err error
			result, err = next.Handle(ctx, query)
			return err
		})
		return result, err
	})
}

// MetricsMiddleware adds metrics to query handlers
type MetricsMiddleware struct {
	metrics Metrics
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(metrics Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

// Wrap wraps a query handler with metrics
func (m *MetricsMiddleware) Wrap(next QueryHandler) QueryHandler {
	return QueryHandlerFunc(func(ctx context.Context, query Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)
		m.metrics.RecordQuery(ctx, QueryName(query), time.Since(start), err)
		return result, err
	})
}

// Metrics receives one observation per executed query.
type Metrics interface {
	RecordQuery(ctx context.Context, name string, duration time.Duration, err error)
}
