// Package invoke maps named actions with JSON payloads onto the command and
// query buses. The Lambda handler and the CLI share it.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"calctree/application/commands"
	"calctree/application/commands/bus"
	"calctree/application/queries"
	querybus "calctree/application/queries/bus"
	"calctree/pkg/common"
	pkgerrors "calctree/pkg/errors"
	"calctree/pkg/observability"

	"go.uber.org/zap"
)

// Action names accepted by Dispatch.
const (
	ActionCreateDiscussion = "discussion.create"
	ActionRenameDiscussion = "discussion.rename"
	ActionEndDiscussion    = "discussion.end"
	ActionDeleteDiscussion = "discussion.delete"
	ActionGetDiscussion    = "discussion.get"
	ActionListDiscussions  = "discussion.list"
	ActionGetTree          = "discussion.tree"
	ActionGetRootSummary   = "discussion.summary"
	ActionCreateOperation  = "operation.create"
	ActionUpdateOperation  = "operation.update"
	ActionGetOperation     = "operation.get"
	ActionListOperations   = "operation.list"
)

// Request is one invocation. UserID identifies the caller and becomes the
// creator of anything the action creates unless the payload names one.
type Request struct {
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
}

// CommandSender is satisfied by *bus.CommandBus
type CommandSender interface {
	Send(ctx context.Context, cmd bus.Command) (interface{}, error)
}

// QueryAsker is satisfied by *querybus.QueryBus
type QueryAsker interface {
	Ask(ctx context.Context, query querybus.Query) (interface{}, error)
}

type route func(ctx context.Context, d *Dispatcher, payload json.RawMessage) (interface{}, error)

// Dispatcher routes requests to the buses
type Dispatcher struct {
	commandBus CommandSender
	queryBus   QueryAsker
	logger     *zap.Logger
	tracer     *observability.Tracer
	routes     map[string]route
}

// NewDispatcher creates a dispatcher with every action registered
func NewDispatcher(commandBus CommandSender, queryBus QueryAsker, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		commandBus: commandBus,
		queryBus:   queryBus,
		logger:     logger,
		routes: map[string]route{
			ActionCreateDiscussion: send(func(ctx context.Context, c *commands.CreateDiscussionCommand) {
				c.CreatedBy = creator(ctx, c.CreatedBy)
			}),
			ActionRenameDiscussion: send[commands.UpdateDiscussionCommand](nil),
			ActionEndDiscussion:    send[commands.EndDiscussionCommand](nil),
			ActionDeleteDiscussion: send[commands.DeleteDiscussionCommand](nil),
			ActionCreateOperation: send(func(ctx context.Context, c *commands.CreateOperationCommand) {
				c.CreatedBy = creator(ctx, c.CreatedBy)
			}),
			ActionUpdateOperation: send[commands.UpdateOperationCommand](nil),
			ActionGetDiscussion:   ask[queries.GetDiscussionQuery](),
			ActionListDiscussions: ask[queries.ListDiscussionsQuery](),
			ActionGetTree:         ask[queries.GetDiscussionTreeQuery](),
			ActionGetRootSummary:  ask[queries.GetRootSummaryQuery](),
			ActionGetOperation:    ask[queries.GetOperationQuery](),
			ActionListOperations:  ask[queries.ListOperationsQuery](),
		},
	}
}

// WithTracer annotates the active X-Ray segment with the action and records
// failures on it.
func (d *Dispatcher) WithTracer(tracer *observability.Tracer) *Dispatcher {
	d.tracer = tracer
	return d
}

// Actions lists the registered action names in order.
func (d *Dispatcher) Actions() []string {
	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs req and wraps the outcome in the response envelope. It
// never returns a Go error; failures travel inside the envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) common.Response {
	requestID := req.RequestID
	if requestID == "" {
		requestID, _ = common.GetRequestID(ctx)
	}

	if req.UserID != "" {
		ctx = common.WithUserID(ctx, req.UserID)
	}
	d.tracer.AddAnnotation(ctx, "action", req.Action)

	r, ok := d.routes[req.Action]
	if !ok {
		d.logger.Warn("Unknown action", zap.String("action", req.Action))
		return common.Failure(
			pkgerrors.Validation(fmt.Sprintf("unknown action %q", req.Action)).WithDetail("action", req.Action),
			requestID,
		)
	}

	result, err := r(ctx, d, req.Payload)
	if errors.Is(err, context.DeadlineExceeded) {
		err = pkgerrors.NewTimeoutError(req.Action).WithCause(err)
	}
	if err != nil {
		d.tracer.RecordError(ctx, err)
		d.logger.Debug("Action failed",
			zap.String("action", req.Action),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return common.Failure(err, requestID)
	}
	return common.Success(result, requestID)
}

func send[T bus.Command](prepare func(ctx context.Context, c *T)) route {
	return func(ctx context.Context, d *Dispatcher, payload json.RawMessage) (interface{}, error) {
		var cmd T
		if err := decode(payload, &cmd); err != nil {
			return nil, err
		}
		if prepare != nil {
			prepare(ctx, &cmd)
		}
		return d.commandBus.Send(ctx, cmd)
	}
}

func ask[T querybus.Query]() route {
	return func(ctx context.Context, d *Dispatcher, payload json.RawMessage) (interface{}, error) {
		var query T
		if err := decode(payload, &query); err != nil {
			return nil, err
		}
		return d.queryBus.Ask(ctx, query)
	}
}

func decode(payload json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.Validation("Invalid request payload: " + err.Error()).WithCause(err)
	}
	return nil
}

// creator falls back to the caller identity carried by ctx.
func creator(ctx context.Context, given string) string {
	if given != "" {
		return given
	}
	if userID, ok := common.GetUserID(ctx); ok {
		return userID
	}
	return given
}
