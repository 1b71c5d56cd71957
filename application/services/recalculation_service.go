package services

import (
	"context"

	"calctree/application/ports"
	"calctree/domain/config"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	domainservices "calctree/domain/services"
	pkgerrors "calctree/pkg/errors"

	"go.uber.org/zap"
)

// RecalculationService admits new operations and cascades edits through
// their subtrees. It owns no state beyond its configuration; every read and
// write goes through the transaction it is given.
type RecalculationService struct {
	txm    ports.TxManager
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewRecalculationService creates a new recalculation service
func NewRecalculationService(txm ports.TxManager, cfg *config.DomainConfig, logger *zap.Logger) *RecalculationService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalculationService{
		txm:    txm,
		cfg:    cfg,
		logger: logger,
	}
}

// MaxTreeDepth returns the depth bound enforced on new operations
func (s *RecalculationService) MaxTreeDepth() int {
	return s.cfg.MaxTreeDepth
}

// CreateOperationInput describes a new node. Exactly one anchor is needed:
// ParentID for a child, DiscussionID for a root. When both are given they
// must agree.
type CreateOperationInput struct {
	DiscussionID *valueobjects.DiscussionID
	ParentID     *valueobjects.OperationID
	Kind         valueobjects.OperationKind
	Operand      valueobjects.Decimal
	Title        string
	CreatedBy    string
}

// OperationChanges is a partial edit; nil fields keep their current value.
type OperationChanges struct {
	Operand *valueobjects.Decimal
	Kind    *valueobjects.OperationKind
	Title   *string
}

// IsEmpty reports whether no field would change
func (c OperationChanges) IsEmpty() bool {
	return c.Operand == nil && c.Kind == nil && c.Title == nil
}

// CreateOperation admits one node in its own transaction.
func (s *RecalculationService) CreateOperation(ctx context.Context, in CreateOperationInput) (*entities.Operation, error) {
	var created *entities.Operation
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		op, err := s.CreateOperationTx(ctx, tx, in)
		if err != nil {
			return err
		}
		created = op
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateOperationTx admits one node inside the caller's transaction.
func (s *RecalculationService) CreateOperationTx(ctx context.Context, tx ports.Tx, in CreateOperationInput) (*entities.Operation, error) {
	if in.DiscussionID == nil && in.ParentID == nil {
		return nil, pkgerrors.Validation("Either parentId or discussionId must be provided")
	}

	ops := tx.Operations()
	var (
		discussionID valueobjects.DiscussionID
		before       valueobjects.Decimal
		parentDepth  int
	)

	if in.ParentID != nil {
		parent, err := ops.FindByID(ctx, *in.ParentID)
		if err != nil {
			return nil, asParentNotFound(err, *in.ParentID)
		}
		if in.DiscussionID != nil && !in.DiscussionID.Equals(parent.DiscussionID()) {
			return nil, pkgerrors.Validation("parent operation belongs to a different discussion").
				WithDetail("parent_id", in.ParentID.String()).
				WithDetail("discussion_id", in.DiscussionID.String())
		}
		discussionID = parent.DiscussionID()
		before = parent.AfterValue()
		parentDepth = parent.Depth()
	} else {
		discussionID = *in.DiscussionID
	}

	discussion, err := tx.Discussions().FindByID(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if err := discussion.EnsureOpen(); err != nil {
		return nil, err
	}
	if in.ParentID == nil {
		before = discussion.StartingValue()
	}

	if err := domainservices.AssertWithinDepth(parentDepth, s.cfg.MaxTreeDepth); err != nil {
		return nil, err
	}

	after, err := domainservices.Evaluate(before, in.Kind, in.Operand)
	if err != nil {
		return nil, err
	}

	op, err := entities.NewOperation(entities.NewOperationParams{
		DiscussionID: discussionID,
		ParentID:     in.ParentID,
		Kind:         in.Kind,
		Operand:      in.Operand,
		BeforeValue:  before,
		AfterValue:   after,
		Depth:        parentDepth + 1,
		Title:        in.Title,
		CreatedBy:    in.CreatedBy,
	}, s.cfg)
	if err != nil {
		return nil, err
	}

	if err := ops.Create(ctx, op); err != nil {
		return nil, err
	}

	s.logger.Debug("operation created",
		zap.String("operation_id", op.ID().String()),
		zap.String("discussion_id", discussionID.String()),
		zap.String("kind", string(op.Kind())),
		zap.String("after", after.String()),
		zap.Int("depth", op.Depth()),
	)
	return op, nil
}

// UpdateOperation edits one node and recalculates its whole subtree in a
// single transaction. It returns the edited node and how many descendants
// were rewritten.
func (s *RecalculationService) UpdateOperation(ctx context.Context, id valueobjects.OperationID, changes OperationChanges) (*entities.Operation, int, error) {
	var (
		updated *entities.Operation
		count   int
	)
	err := s.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		op, n, err := s.UpdateOperationTx(ctx, tx, id, changes)
		if err != nil {
			return err
		}
		updated, count = op, n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, count, nil
}

// UpdateOperationTx is UpdateOperation inside the caller's transaction.
// Any error leaves the caller to roll back; nothing is partially applied
// once the transaction is discarded.
func (s *RecalculationService) UpdateOperationTx(ctx context.Context, tx ports.Tx, id valueobjects.OperationID, changes OperationChanges) (*entities.Operation, int, error) {
	if changes.IsEmpty() {
		return nil, 0, pkgerrors.Validation("At least one of rightOperand, operationType or title must be provided")
	}
	ops := tx.Operations()

	op, err := ops.FindByID(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	discussion, err := tx.Discussions().FindByID(ctx, op.DiscussionID())
	if err != nil {
		return nil, 0, err
	}
	if err := discussion.EnsureOpen(); err != nil {
		return nil, 0, err
	}

	kind, operand, title := op.Kind(), op.Operand(), op.Title()
	if changes.Kind != nil {
		kind = *changes.Kind
	}
	if changes.Operand != nil {
		operand = *changes.Operand
	}
	if changes.Title != nil {
		if title, err = valueobjects.NewOperationTitle(*changes.Title, s.cfg); err != nil {
			return nil, 0, err
		}
	}

	before := discussion.StartingValue()
	if parentID := op.ParentID(); parentID != nil {
		parent, err := ops.FindByID(ctx, *parentID)
		if err != nil {
			return nil, 0, asParentNotFound(err, *parentID)
		}
		before = parent.AfterValue()
	}

	// Reject before anything is written.
	if err := domainservices.ValidateStep(kind, operand); err != nil {
		return nil, 0, err
	}

	after, err := domainservices.Evaluate(before, kind, operand)
	if err != nil {
		return nil, 0, err
	}
	op.ApplyEdit(kind, operand, title, before, after)
	if err := ops.Update(ctx, op); err != nil {
		return nil, 0, err
	}

	descendants, err := CollectDescendants(ctx, ops, op.ID())
	if err != nil {
		return nil, 0, err
	}
	if len(descendants) == 0 {
		return op, 0, nil
	}

	for _, node := range domainservices.OrderByDepth(descendants) {
		parentID := node.ParentID()
		parent, err := ops.FindByID(ctx, *parentID)
		if err != nil {
			return nil, 0, asParentNotFound(err, *parentID)
		}

		nodeAfter, err := domainservices.Evaluate(parent.AfterValue(), node.Kind(), node.Operand())
		if err != nil {
			return nil, 0, err
		}
		node.Rebase(parent.AfterValue(), nodeAfter, parent.Depth()+1)
		if err := ops.Update(ctx, node); err != nil {
			return nil, 0, err
		}
	}

	s.logger.Debug("operation tree recalculated",
		zap.String("operation_id", op.ID().String()),
		zap.String("discussion_id", op.DiscussionID().String()),
		zap.Int("descendants", len(descendants)),
	)
	return op, len(descendants), nil
}

func asParentNotFound(err error, parentID valueobjects.OperationID) error {
	if pkgerrors.IsNotFound(err) {
		return pkgerrors.NotFound("parent operation", parentID.String())
	}
	return err
}
