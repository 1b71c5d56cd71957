package dynamodb

import (
	"context"
	"sort"

	"calctree/application/ports"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	pkgerrors "calctree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type writeKind int

const (
	writePut writeKind = iota
	writeCreate
	writeDelete
)

// pendingWrite is the latest buffered state of one item.
type pendingWrite struct {
	kind       writeKind
	operation  *entities.OperationState
	discussion *entities.DiscussionState
}

// unitOfWork buffers writes and overlays them on every read, so a
// transaction sees its own changes before they reach the table.
type unitOfWork struct {
	store    *Store
	readOnly bool
	writes   map[string]*pendingWrite
	order    []string
}

func newUnitOfWork(store *Store, readOnly bool) *unitOfWork {
	return &unitOfWork{
		store:    store,
		readOnly: readOnly,
		writes:   make(map[string]*pendingWrite),
	}
}

func (u *unitOfWork) Operations() ports.OperationRepository   { return &operationRepo{u} }
func (u *unitOfWork) Discussions() ports.DiscussionRepository { return &discussionRepo{u} }

func (u *unitOfWork) writable(method string) error {
	if u.readOnly {
		return pkgerrors.NewInternalError(method + " called in a read-only transaction")
	}
	return nil
}

// register records w under pk. A create followed by more writes stays a
// create; a create followed by a delete cancels out.
func (u *unitOfWork) register(pk string, w *pendingWrite) {
	prev, ok := u.writes[pk]
	if !ok {
		u.writes[pk] = w
		u.order = append(u.order, pk)
		return
	}
	switch {
	case prev.kind == writeCreate && w.kind == writeDelete:
		delete(u.writes, pk)
		for i, k := range u.order {
			if k == pk {
				u.order = append(u.order[:i], u.order[i+1:]...)
				break
			}
		}
	case prev.kind == writeCreate:
		w.kind = writeCreate
		u.writes[pk] = w
	default:
		u.writes[pk] = w
	}
}

// transactItems renders the buffered writes in registration order.
func (u *unitOfWork) transactItems(table string) ([]types.TransactWriteItem, error) {
	items := make([]types.TransactWriteItem, 0, len(u.order))
	for _, pk := range u.order {
		w := u.writes[pk]
		if w.kind == writeDelete {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(table),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: pk},
						"SK": &types.AttributeValueMemberS{Value: metadataSK},
					},
				},
			})
			continue
		}

		var (
			av  map[string]types.AttributeValue
			err error
		)
		if w.operation != nil {
			av, err = attributevalue.MarshalMap(toOperationItem(*w.operation))
		} else {
			av, err = attributevalue.MarshalMap(toDiscussionItem(*w.discussion))
		}
		if err != nil {
			return nil, err
		}

		cond := expression.AttributeExists(expression.Name("PK"))
		if w.kind == writeCreate {
			cond = expression.AttributeNotExists(expression.Name("PK"))
		}
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return nil, err
		}

		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(table),
				Item:                      av,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}
	return items, nil
}

// mergeOperations applies buffered operation writes to rows read from the
// table. keep selects which buffered rows belong in the result.
func (u *unitOfWork) mergeOperations(rows []entities.OperationState, keep func(entities.OperationState) bool) []*entities.Operation {
	byPK := make(map[string]entities.OperationState, len(rows))
	for _, r := range rows {
		byPK[operationPK(r.ID.String())] = r
	}
	for pk, w := range u.writes {
		switch {
		case w.kind == writeDelete:
			delete(byPK, pk)
		case w.operation == nil:
			continue
		case keep(*w.operation):
			byPK[pk] = *w.operation
		default:
			delete(byPK, pk)
		}
	}

	out := make([]*entities.Operation, 0, len(byPK))
	for _, s := range byPK {
		out = append(out, entities.ReconstructOperation(s))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out
}

func decodeOperations(items []map[string]types.AttributeValue) ([]entities.OperationState, error) {
	out := make([]entities.OperationState, 0, len(items))
	for _, av := range items {
		s, err := unmarshalOperation(av)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type operationRepo struct{ u *unitOfWork }

func (r *operationRepo) FindByID(ctx context.Context, id valueobjects.OperationID) (*entities.Operation, error) {
	pk := operationPK(id.String())
	if w, ok := r.u.writes[pk]; ok {
		if w.kind == writeDelete {
			return nil, pkgerrors.NotFound("operation", id.String())
		}
		return entities.ReconstructOperation(*w.operation), nil
	}

	av, err := r.u.store.getItem(ctx, pk)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindOperation", err)
	}
	if len(av) == 0 {
		return nil, pkgerrors.NotFound("operation", id.String())
	}
	s, err := unmarshalOperation(av)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindOperation", err)
	}
	return entities.ReconstructOperation(s), nil
}

func (r *operationRepo) FindChildren(ctx context.Context, parentID valueobjects.OperationID) ([]*entities.Operation, error) {
	items, err := r.u.store.queryAll(ctx, r.u.store.tables.ParentIndex,
		expression.Key("GSI1PK").Equal(expression.Value(parentPK(parentID.String()))))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindChildren", err)
	}
	rows, err := decodeOperations(items)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindChildren", err)
	}
	return r.u.mergeOperations(rows, func(s entities.OperationState) bool {
		return s.ParentID != nil && s.ParentID.Equals(parentID)
	}), nil
}

func (r *operationRepo) FindByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) ([]*entities.Operation, error) {
	items, err := r.u.store.queryAll(ctx, r.u.store.tables.DiscussionIndex,
		expression.Key("GSI2PK").Equal(expression.Value(discussionPK(discussionID.String()))))
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindByDiscussion", err)
	}
	rows, err := decodeOperations(items)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindByDiscussion", err)
	}
	ops := r.u.mergeOperations(rows, func(s entities.OperationState) bool {
		return s.DiscussionID.Equals(discussionID)
	})
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Depth() < ops[j].Depth()
	})
	return ops, nil
}

func (r *operationRepo) List(ctx context.Context, filter ports.OperationFilter) ([]*entities.Operation, int, error) {
	var (
		all []*entities.Operation
		err error
	)
	if filter.DiscussionID != nil {
		all, err = r.FindByDiscussion(ctx, *filter.DiscussionID)
	} else {
		var items []map[string]types.AttributeValue
		if items, err = r.u.store.scanEntities(ctx, entityOperation); err == nil {
			var rows []entities.OperationState
			if rows, err = decodeOperations(items); err == nil {
				all = r.u.mergeOperations(rows, func(entities.OperationState) bool { return true })
			}
		}
		if err != nil {
			err = pkgerrors.NewDatabaseError("ListOperations", err)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	var matched []*entities.Operation
	for _, op := range all {
		if filter.Matches(op) {
			matched = append(matched, op)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].CreatedAt().After(matched[j].CreatedAt())
		}
		return matched[i].ID().String() < matched[j].ID().String()
	})
	start, end := ports.PageBounds(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], len(matched), nil
}

func (r *operationRepo) Create(ctx context.Context, op *entities.Operation) error {
	if err := r.u.writable("CreateOperation"); err != nil {
		return err
	}
	s := op.State()
	r.u.register(operationPK(s.ID.String()), &pendingWrite{kind: writeCreate, operation: &s})
	return nil
}

func (r *operationRepo) Update(ctx context.Context, op *entities.Operation) error {
	if err := r.u.writable("UpdateOperation"); err != nil {
		return err
	}
	s := op.State()
	r.u.register(operationPK(s.ID.String()), &pendingWrite{kind: writePut, operation: &s})
	return nil
}

func (r *operationRepo) DeleteByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) (int, error) {
	if err := r.u.writable("DeleteOperations"); err != nil {
		return 0, err
	}
	ops, err := r.FindByDiscussion(ctx, discussionID)
	if err != nil {
		return 0, err
	}
	for _, op := range ops {
		r.u.register(operationPK(op.ID().String()), &pendingWrite{kind: writeDelete})
	}
	return len(ops), nil
}

type discussionRepo struct{ u *unitOfWork }

func (r *discussionRepo) FindByID(ctx context.Context, id valueobjects.DiscussionID) (*entities.Discussion, error) {
	pk := discussionPK(id.String())
	if w, ok := r.u.writes[pk]; ok {
		if w.kind == writeDelete {
			return nil, pkgerrors.NotFound("discussion", id.String())
		}
		return entities.ReconstructDiscussion(*w.discussion), nil
	}

	av, err := r.u.store.getItem(ctx, pk)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindDiscussion", err)
	}
	if len(av) == 0 {
		return nil, pkgerrors.NotFound("discussion", id.String())
	}
	s, err := unmarshalDiscussion(av)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindDiscussion", err)
	}
	return entities.ReconstructDiscussion(s), nil
}

func (r *discussionRepo) List(ctx context.Context, filter ports.DiscussionFilter) ([]*entities.Discussion, int, error) {
	items, err := r.u.store.scanEntities(ctx, entityDiscussion)
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("ListDiscussions", err)
	}

	byPK := make(map[string]entities.DiscussionState, len(items))
	for _, av := range items {
		s, err := unmarshalDiscussion(av)
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("ListDiscussions", err)
		}
		byPK[discussionPK(s.ID.String())] = s
	}
	for pk, w := range r.u.writes {
		switch {
		case w.discussion != nil:
			byPK[pk] = *w.discussion
		case w.kind == writeDelete:
			delete(byPK, pk)
		}
	}

	var matched []*entities.Discussion
	for _, s := range byPK {
		d := entities.ReconstructDiscussion(s)
		if filter.Matches(d) {
			matched = append(matched, d)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].CreatedAt().After(matched[j].CreatedAt())
		}
		return matched[i].ID().String() < matched[j].ID().String()
	})
	start, end := ports.PageBounds(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], len(matched), nil
}

func (r *discussionRepo) Create(ctx context.Context, d *entities.Discussion) error {
	if err := r.u.writable("CreateDiscussion"); err != nil {
		return err
	}
	s := d.State()
	r.u.register(discussionPK(s.ID.String()), &pendingWrite{kind: writeCreate, discussion: &s})
	return nil
}

func (r *discussionRepo) Update(ctx context.Context, d *entities.Discussion) error {
	if err := r.u.writable("UpdateDiscussion"); err != nil {
		return err
	}
	s := d.State()
	r.u.register(discussionPK(s.ID.String()), &pendingWrite{kind: writePut, discussion: &s})
	return nil
}

func (r *discussionRepo) Delete(ctx context.Context, id valueobjects.DiscussionID) error {
	if err := r.u.writable("DeleteDiscussion"); err != nil {
		return err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	r.u.register(discussionPK(id.String()), &pendingWrite{kind: writeDelete})
	return nil
}
