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
	"calctree/domain/config"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/domain/events"

	"go.uber.org/zap"
)

// CreateDiscussionHandler handles CreateDiscussionCommand
type CreateDiscussionHandler struct {
	txm      ports.TxManager
	recalc   *services.RecalculationService
	notifier *Notifier
	cfg      *config.DomainConfig
	logger   *zap.Logger
}

// NewCreateDiscussionHandler creates a new handler instance
func NewCreateDiscussionHandler(
	txm ports.TxManager,
	recalc *services.RecalculationService,
	notifier *Notifier,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CreateDiscussionHandler {
	return &CreateDiscussionHandler{
		txm:      txm,
		recalc:   recalc,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle opens the discussion and, if asked, its first operation atomically.
func (h *CreateDiscussionHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.CreateDiscussionCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}

	var rootInput *services.CreateOperationInput
	if r := cmd.RootOperation; r != nil {
		kind, err := valueobjects.ParseOperationKind(r.Kind)
		if err != nil {
			return nil, err
		}
		rootInput = &services.CreateOperationInput{
			Kind:      kind,
			Operand:   *r.Operand,
			Title:     r.Title,
			CreatedBy: cmd.CreatedBy,
		}
	}

	var (
		discussion *entities.Discussion
		root       *entities.Operation
	)
	err := h.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		d, err := entities.NewDiscussion(cmd.Title, *cmd.StartingValue, cmd.CreatedBy, h.cfg)
		if err != nil {
			return err
		}
		if err := tx.Discussions().Create(ctx, d); err != nil {
			return err
		}
		discussion = d

		if rootInput == nil {
			return nil
		}
		id := d.ID()
		in := *rootInput
		in.DiscussionID = &id
		root, err = h.recalc.CreateOperationTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	evts := drain(discussion)
	if root != nil {
		evts = append(evts, drain(root)...)
	}
	h.notifier.Committed(ctx, discussion.ID().String(), evts)

	return &dto.CreateDiscussionResult{
		Discussion:    dto.FromDiscussion(discussion),
		RootOperation: dto.FromOperation(root),
	}, nil
}

// UpdateDiscussionHandler renames a discussion, ended or not.
type UpdateDiscussionHandler struct {
	txm      ports.TxManager
	notifier *Notifier
	cfg      *config.DomainConfig
}

func NewUpdateDiscussionHandler(txm ports.TxManager, notifier *Notifier, cfg *config.DomainConfig) *UpdateDiscussionHandler {
	return &UpdateDiscussionHandler{txm: txm, notifier: notifier, cfg: cfg}
}

func (h *UpdateDiscussionHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.UpdateDiscussionCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}
	id, err := valueobjects.NewDiscussionIDFromString(cmd.DiscussionID)
	if err != nil {
		return nil, err
	}

	var discussion *entities.Discussion
	err = h.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		d, err := tx.Discussions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := d.Rename(cmd.Title, h.cfg); err != nil {
			return err
		}
		discussion = d
		return tx.Discussions().Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	h.notifier.Committed(ctx, id.String(), drain(discussion))
	return dto.FromDiscussion(discussion), nil
}

// EndDiscussionHandler closes a discussion. Ending twice is a conflict.
type EndDiscussionHandler struct {
	txm      ports.TxManager
	notifier *Notifier
}

func NewEndDiscussionHandler(txm ports.TxManager, notifier *Notifier) *EndDiscussionHandler {
	return &EndDiscussionHandler{txm: txm, notifier: notifier}
}

func (h *EndDiscussionHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.EndDiscussionCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}
	id, err := valueobjects.NewDiscussionIDFromString(cmd.DiscussionID)
	if err != nil {
		return nil, err
	}

	var discussion *entities.Discussion
	err = h.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		d, err := tx.Discussions().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := d.End(); err != nil {
			return err
		}
		discussion = d
		return tx.Discussions().Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	h.notifier.Committed(ctx, id.String(), drain(discussion))
	return dto.FromDiscussion(discussion), nil
}

// DeleteDiscussionHandler removes a discussion and every operation in it.
type DeleteDiscussionHandler struct {
	txm      ports.TxManager
	notifier *Notifier
	logger   *zap.Logger
}

func NewDeleteDiscussionHandler(txm ports.TxManager, notifier *Notifier, logger *zap.Logger) *DeleteDiscussionHandler {
	return &DeleteDiscussionHandler{txm: txm, notifier: notifier, logger: logger}
}

func (h *DeleteDiscussionHandler) Handle(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.DeleteDiscussionCommand)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, c)
	}
	id, err := valueobjects.NewDiscussionIDFromString(cmd.DiscussionID)
	if err != nil {
		return nil, err
	}

	var removed int
	err = h.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if _, err := tx.Discussions().FindByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Operations().DeleteByDiscussion(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Discussions().Delete(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Discussion deleted",
		zap.String("discussion_id", id.String()),
		zap.Int("operations_removed", removed),
	)
	h.notifier.Committed(ctx, id.String(), []events.DomainEvent{
		events.NewDiscussionDeleted(id, removed, time.Now().UTC()),
	})
	return &dto.DeleteDiscussionResult{DiscussionID: id.String(), OperationsRemoved: removed}, nil
}
