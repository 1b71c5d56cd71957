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

// Command represents a command that changes state
type Command interface {
	Validate() error
}

// CommandHandler handles a specific command type
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (interface{}, error)
}

// CommandBus dispatches commands to their handlers
type CommandBus struct {
	handlers map[reflect.Type]CommandHandler
	pipeline *Pipeline
	mu       sync.RWMutex
}

// NewCommandBus creates a new command bus. Middlewares wrap every handler,
// the first one outermost.
func NewCommandBus(middlewares ...Middleware) *CommandBus {
	return &CommandBus{
		handlers: make(map[reflect.Type]CommandHandler),
		pipeline: NewPipeline(middlewares...),
	}
}

// Register registers a handler for a command type
func (b *CommandBus) Register(cmdType Command, handler CommandHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(cmdType)
	if _, exists := b.handlers[t]; exists {
		return fmt.Errorf("handler already registered for command type %s", t.Name())
	}

	b.handlers[t] = b.pipeline.Execute(handler)
	return nil
}

// Send validates cmd and dispatches it to its handler. Handler errors are
// returned unwrapped so callers can match domain errors directly.
func (b *CommandBus) Send(ctx context.Context, cmd Command) (interface{}, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(cmd)]
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %T", ErrHandlerNotFound, cmd)
	}

	return handler.Handle(ctx, cmd)
}

// Middleware defines command middleware
type Middleware func(next CommandHandler) CommandHandler

// CommandHandlerFunc is an adapter to allow functions to be used as handlers
type CommandHandlerFunc func(ctx context.Context, cmd Command) (interface{}, error)

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (interface{}, error) {
	return f(ctx, cmd)
}

// CommandName is the short type name used in logs, traces and metrics.
func CommandName(cmd Command) string {
	t := reflect.TypeOf(cmd)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// LoggingMiddleware logs command execution
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			cmdType := CommandName(cmd)
			start := time.Now()
			logger.Debug("Executing command", zap.String("type", cmdType))

			result, err := next.Handle(ctx, cmd)
			if err != nil {
				logger.Warn("Command failed",
					zap.String("type", cmdType),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
			} else {
				logger.Info("Command succeeded",
					zap.String("type", cmdType),
					zap.Duration("duration", time.Since(start)),
				)
			}

			return result, err
		})
	}
}

// Tracer opens a trace span around fn.
type Tracer interface {
	TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error
}

// TracingMiddleware records one subsegment per command
func TracingMiddleware(tracer Tracer) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			var result interface{}
			err := tracer.TraceFunction(ctx, "command."+CommandName(cmd), func(ctx context.Context) error {
				var err error
				result, err = next.Handle(ctx, cmd)
				return err
			})
			return result, err
		})
	}
}

// Metrics receives one observation per executed command.
type Metrics interface {
	RecordCommand(ctx context.Context, name string, duration time.Duration, err error)
}

// MetricsMiddleware reports execution count, latency and errors
func MetricsMiddleware(metrics Metrics) Middleware {
	return func(next CommandHandler) CommandHandler {
		return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)
			metrics.RecordCommand(ctx, CommandName(cmd), time.Since(start), err)
			return result, err
		})
	}
}

// Pipeline chains multiple middleware together
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a new middleware pipeline
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{
		middlewares: middlewares,
	}
}

// Execute wraps handler so the first middleware runs first
func (p *Pipeline) Execute(handler CommandHandler) CommandHandler {
	// Apply middleware in reverse order
	for i := len(p.middlewares) - 1; i >= 0; i-- {
		handler = p.middlewares[i](handler)
	}
	return handler
}

// Errors
var (
	ErrHandlerNotFound = errors.New("command handler not found")
	ErrUnexpectedType  = errors.New("unexpected command type")
)
