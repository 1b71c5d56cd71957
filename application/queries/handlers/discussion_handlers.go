package handlers

import (
	"context"
	"fmt"

	"calctree/application/dto"
	"calctree/application/ports"
	"calctree/application/queries"
	"calctree/application/queries/bus"
	"calctree/domain/config"
	"calctree/domain/core/aggregates"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetDiscussionHandler handles GetDiscussionQuery
type GetDiscussionHandler struct {
	txm ports.TxManager
}

func NewGetDiscussionHandler(txm ports.TxManager) *GetDiscussionHandler {
	return &GetDiscussionHandler{txm: txm}
}

func (h *GetDiscussionHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetDiscussionQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}
	id, err := valueobjects.NewDiscussionIDFromString(query.DiscussionID)
	if err != nil {
		return nil, err
	}

	d, err := loadDiscussion(ctx, h.txm, id)
	if err != nil {
		return nil, err
	}
	return dto.FromDiscussion(d), nil
}

// ListDiscussionsHandler handles ListDiscussionsQuery
type ListDiscussionsHandler struct {
	txm ports.TxManager
	cfg *config.DomainConfig
}

func NewListDiscussionsHandler(txm ports.TxManager, cfg *config.DomainConfig) *ListDiscussionsHandler {
	return &ListDiscussionsHandler{txm: txm, cfg: cfg}
}

func (h *ListDiscussionsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.ListDiscussionsQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}

	page := common.PaginationParams{Page: query.Page, PageSize: query.PageSize}.
		Normalize(h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	filter := ports.DiscussionFilter{
		TitleContains: query.TitleContains,
		CreatedBy:     query.CreatedBy,
		Offset:        page.CalculateOffset(),
		Limit:         page.PageSize,
	}

	var (
		list  []*entities.Discussion
		total int
	)
	err := h.txm.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		list, total, err = tx.Discussions().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return common.NewPaginatedResult(dto.FromDiscussions(list), page.Page, page.PageSize, total), nil
}

// GetDiscussionTreeHandler builds the nested tree of a discussion. The
// discussion and its operations are read concurrently.
type GetDiscussionTreeHandler struct {
	txm    ports.TxManager
	cfg    *config.DomainConfig
	logger *zap.Logger
}

func NewGetDiscussionTreeHandler(txm ports.TxManager, cfg *config.DomainConfig, logger *zap.Logger) *GetDiscussionTreeHandler {
	return &GetDiscussionTreeHandler{txm: txm, cfg: cfg, logger: logger}
}

func (h *GetDiscussionTreeHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetDiscussionTreeQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}
	id, err := valueobjects.NewDiscussionIDFromString(query.DiscussionID)
	if err != nil {
		return nil, err
	}

	tree, err := loadTree(ctx, h.txm, id)
	if err != nil {
		return nil, err
	}

	if violations := tree.Validate(h.cfg.MaxTreeDepth); len(violations) > 0 {
		h.logger.Warn("Stored tree breaks invariants",
			zap.String("discussion_id", id.String()),
			zap.Int("violations", len(violations)),
			zap.String("first_rule", violations[0].Rule),
			zap.String("first_operation", violations[0].OperationID),
		)
	}
	return dto.FromTree(tree), nil
}

// GetRootSummaryHandler handles GetRootSummaryQuery. Caching is applied by
// the bus.
type GetRootSummaryHandler struct {
	txm ports.TxManager
}

func NewGetRootSummaryHandler(txm ports.TxManager) *GetRootSummaryHandler {
	return &GetRootSummaryHandler{txm: txm}
}

func (h *GetRootSummaryHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetRootSummaryQuery)
	if !ok {
		return nil, fmt.Errorf("%w: %T", bus.ErrUnexpectedType, q)
	}
	id, err := valueobjects.NewDiscussionIDFromString(query.DiscussionID)
	if err != nil {
		return nil, err
	}

	tree, err := loadTree(ctx, h.txm, id)
	if err != nil {
		return nil, err
	}
	return dto.FromRootSummary(id.String(), tree.RootSummary()), nil
}

func loadDiscussion(ctx context.Context, txm ports.TxManager, id valueobjects.DiscussionID) (*entities.Discussion, error) {
	var d *entities.Discussion
	err := txm.View(ctx, func(ctx context.Context, tx ports.Tx) error {
		var err error
		d, err = tx.Discussions().FindByID(ctx, id)
		return err
	})
	return d, err
}

func loadTree(ctx context.Context, txm ports.TxManager, id valueobjects.DiscussionID) (*aggregates.Tree, error) {
	var (
		discussion *entities.Discussion
		ops        []*entities.Operation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		discussion, err = loadDiscussion(gctx, txm, id)
		return err
	})
	g.Go(func() error {
		return txm.View(gctx, func(ctx context.Context, tx ports.Tx) error {
			var err error
			ops, err = tx.Operations().FindByDiscussion(ctx, id)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregates.NewTree(discussion, ops)
}
