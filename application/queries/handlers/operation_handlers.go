package handlers

import (
	"context"
	"fmt"

	"calctree/application/dto"
	"calctree/application/ports"
	"calctree/application/queries"
	"calctree/application/queries/bus"
	"calctree/domain/config"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/pkg/common"
)

// GetOperationHandler handles GetOperationQuery
type GetOperationHandler struct {
	txm ports.TxManager
}

func NewGetOperationHandler(txm ports.TxManager) *GetOperationHandler {
	return &GetOperationHandler{txm: txm}
}

func (h *GetOperationHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetOperationQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}
	id, err := valueobjects.NewOperationIDFromString(query.OperationID)
	if err != nil {
		return nil, err
	}

	var op *entities.Operation
	err = h.txm.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		op, err = tx.Operations().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto.FromOperation(op), nil
}

// ListOperationsHandler handles ListOperationsQuery
type ListOperationsHandler struct {
	txm ports.TxManager
	cfg *config.DomainConfig
}

func NewListOperationsHandler(txm ports.TxManager, cfg *config.DomainConfig) *ListOperationsHandler {
	return &ListOperationsHandler{txm: txm, cfg: cfg}
}

func (h *ListOperationsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.ListOperationsQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}

	page := common.PaginationParams{Page: query.Page, PageSize: query.PageSize}.
		Normalize(h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	filter := ports.OperationFilter{
		Offset: page.CalculateOffset(),
		Limit:  page.PageSize,
	}
	if query.DiscussionID != "" {
		id, err := valueobjects.NewDiscussionIDFromString(query.DiscussionID)
		if err != nil {
			return nil, err
		}
		filter.DiscussionID = &id
	}
	for _, k := range query.Kinds {
		kind, err := valueobjects.ParseOperationKind(k)
		if err != nil {
			return nil, err
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	var (
		ops   []*entities.Operation
		total int
	)
	err := h.txm.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		ops, total, err = tx.Operations().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return common.NewPaginatedResult(dto.FromOperations(ops), page.Page, page.PageSize, total), nil
}
