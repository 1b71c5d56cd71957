package handlers

import (
	"context"
	"fmt"
	"time"

	"calctree/application/commands"
	"calctree/application/commands/bus"
	"calctree/application/dto"
	"calctree/application/ports"
	"calctree/application/services"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"
	pkgerrors "calctree/pkg/errors"
)

// CreateOperationHandler handles CreateOperationCommand
type CreateOperationHandler struct {
	recalc   *services.RecalculationService
	notifier *Notifier
}

func NewCreateOperationHandler(recalc *services.RecalculationService, notifier *Notifier) *CreateOperationHandler {
	return &CreateOperationHandler{recalc: recalc, notifier: notifier}
}

func (h *CreateOperationHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.CreateOperationCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}

	kind, err := valueobjects.ParseOperationKind(cmd.Kind)
	if err != nil {
		return nil, err
	}
	in := services.CreateOperationInput{
		Kind:      kind,
		Operand:   *cmd.Operand,
		Title:     cmd.Title,
		CreatedBy: cmd.CreatedBy,
	}
	if cmd.DiscussionID != "" {
		id, err := valueobjects.NewDiscussionIDFromString(cmd.DiscussionID)
		if err != nil {
			return nil, err
		}
		in.DiscussionID = &id
	}
	if cmd.ParentID != "" {
		id, err := valueobjects.NewOperationIDFromString(cmd.ParentID)
		if err != nil {
			if domErr := pkgerrors.GetDomainError(err); domErr != nil {
				domErr.WithDetail("field", "parentId")
			}
			return nil, err
		}
		in.ParentID = &id
	}

	op, err := h.recalc.CreateOperation(ctx, in)
	if err != nil {
		return nil, err
	}

	h.notifier.Committed(ctx, op.DiscussionID().String(), drain(op))
	return dto.FromOperation(op), nil
}

// UpdateOperationHandler edits a node and reports the cascade it caused.
type UpdateOperationHandler struct {
	recalc   *services.RecalculationService
	notifier *Notifier
	recorder ports.RecalculationRecorder
}

// NewUpdateOperationHandler creates the handler. recorder may be nil.
func NewUpdateOperationHandler(recalc *services.RecalculationService, notifier *Notifier, recorder ports.RecalculationRecorder) *UpdateOperationHandler {
	return &UpdateOperationHandler{recalc: recalc, notifier: notifier, recorder: recorder}
}

func (h *UpdateOperationHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.UpdateOperationCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}

	id, err := valueobjects.NewOperationIDFromString(cmd.OperationID)
	if err != nil {
		return nil, err
	}
	changes := services.OperationChanges{
		Operand: cmd.Operand,
		Title:   cmd.Title,
	}
	if cmd.Kind != nil {
		kind, err := valueobjects.ParseOperationKind(*cmd.Kind)
		if err != nil {
			return nil, err
		}
		changes.Kind = &kind
	}

	op, count, err := h.recalc.UpdateOperation(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	discussionID := op.DiscussionID()
	evts := drain(op)
	if count > 0 {
		evts = append(evts, events.NewTreeRecalculated(op.ID(), discussionID, count, time.Now().UTC()))
	}
	if h.recorder != nil {
		h.recorder.RecordRecalculation(ctx, discussionID.String(), count)
	}
	h.notifier.Committed(ctx, discussionID.String(), evts)

	return &dto.UpdateOperationResult{
		Operation:         dto.FromOperation(op),
		RecalculatedCount: count,
	}, nil
}
