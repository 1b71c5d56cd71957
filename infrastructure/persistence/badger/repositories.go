package badger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"calctree/application/ports"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	pkgerrors "calctree/pkg/errors"

	"github.com/dgraph-io/badger/v4"
)

// get loads key and reports badger.ErrKeyNotFound unchanged.
func (t *tx) get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *tx) exists(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// suffixes returns the key remainders under prefix.
func (t *tx) suffixes(ctx context.Context, prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, strings.TrimPrefix(string(it.Item().Key()), prefix))
	}
	return out, nil
}

type operationRepo struct{ t *tx }

func (r *operationRepo) FindByID(ctx context.Context, id valueobjects.OperationID) (*entities.Operation, error) {
	data, err := r.t.get(operationKey(id.String()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NotFound("operation", id.String())
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindOperation", err)
	}
	op, err := decodeOperation(data)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindOperation", err)
	}
	return op, nil
}

func (r *operationRepo) load(ctx context.Context, ids []string) ([]*entities.Operation, error) {
	out := make([]*entities.Operation, 0, len(ids))
	for _, id := range ids {
		data, err := r.t.get(operationKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			// tolerate a dangling index entry
			continue
		}
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("LoadOperations", err)
		}
		op, err := decodeOperation(data)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("LoadOperations", err)
		}
		out = append(out, op)
	}
	return out, nil
}

func (r *operationRepo) FindChildren(ctx context.Context, parentID valueobjects.OperationID) ([]*entities.Operation, error) {
	ids, err := r.t.suffixes(ctx, childPrefix+parentID.String()+"/")
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindChildren", err)
	}
	children, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt().Before(children[j].CreatedAt())
	})
	return children, nil
}

func (r *operationRepo) FindByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) ([]*entities.Operation, error) {
	ids, err := r.t.suffixes(ctx, memberPrefix+discussionID.String()+"/")
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindByDiscussion", err)
	}
	ops, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Depth() != ops[j].Depth() {
			return ops[i].Depth() < ops[j].Depth()
		}
		return ops[i].CreatedAt().Before(ops[j].CreatedAt())
	})
	return ops, nil
}

func (r *operationRepo) List(ctx context.Context, filter ports.OperationFilter) ([]*entities.Operation, int, error) {
	prefix := operationPrefix
	var ids []string
	var err error
	if filter.DiscussionID != nil {
		ids, err = r.t.suffixes(ctx, memberPrefix+filter.DiscussionID.String()+"/")
	} else {
		ids, err = r.t.suffixes(ctx, prefix)
	}
	if err != nil {
		return nil, 0, pkgerrors.NewDatabaseError("ListOperations", err)
	}
	all, err := r.load(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	matched := all[:0]
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
	if err := r.t.writable("CreateOperation"); err != nil {
		return err
	}
	id := op.ID().String()
	ok, err := r.t.exists(operationKey(id))
	if err != nil {
		return pkgerrors.NewDatabaseError("CreateOperation", err)
	}
	if ok {
		return pkgerrors.NewConflictError("operation already exists: " + id)
	}
	if err := r.put(op); err != nil {
		return err
	}
	if err := r.t.txn.Set(memberKey(op.DiscussionID().String(), id), nil); err != nil {
		return pkgerrors.NewDatabaseError("CreateOperation", err)
	}
	if parent := op.ParentID(); parent != nil {
		if err := r.t.txn.Set(childKey(parent.String(), id), nil); err != nil {
			return pkgerrors.NewDatabaseError("CreateOperation", err)
		}
	}
	return nil
}

func (r *operationRepo) Update(ctx context.Context, op *entities.Operation) error {
	if err := r.t.writable("UpdateOperation"); err != nil {
		return err
	}
	ok, err := r.t.exists(operationKey(op.ID().String()))
	if err != nil {
		return pkgerrors.NewDatabaseError("UpdateOperation", err)
	}
	if !ok {
		return pkgerrors.NotFound("operation", op.ID().String())
	}
	return r.put(op)
}

func (r *operationRepo) put(op *entities.Operation) error {
	data, err := encodeOperation(op)
	if err != nil {
		return pkgerrors.NewDatabaseError("EncodeOperation", err)
	}
	if err := r.t.txn.Set(operationKey(op.ID().String()), data); err != nil {
		return pkgerrors.NewDatabaseError("PutOperation", err)
	}
	return nil
}

func (r *operationRepo) DeleteByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) (int, error) {
	if err := r.t.writable("DeleteOperations"); err != nil {
		return 0, err
	}
	ops, err := r.FindByDiscussion(ctx, discussionID)
	if err != nil {
		return 0, err
	}
	for _, op := range ops {
		id := op.ID().String()
		keys := [][]byte{operationKey(id), memberKey(discussionID.String(), id)}
		if parent := op.ParentID(); parent != nil {
			keys = append(keys, childKey(parent.String(), id))
		}
		for _, k := range keys {
			if err := r.t.txn.Delete(k); err != nil {
				return 0, pkgerrors.NewDatabaseError("DeleteOperations", err)
			}
		}
	}
	return len(ops), nil
}

type discussionRepo struct{ t *tx }

func (r *discussionRepo) FindByID(ctx context.Context, id valueobjects.DiscussionID) (*entities.Discussion, error) {
	data, err := r.t.get(discussionKey(id.String()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, pkgerrors.NotFound("discussion", id.String())
	}
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindDiscussion", err)
	}
	d, err := decodeDiscussion(data)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("FindDiscussion", err)
	}
	return d, nil
}

func (r *discussionRepo) List(ctx context.Context, filter ports.DiscussionFilter) ([]*entities.Discussion, int, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(discussionPrefix)
	it := r.t.txn.NewIterator(opts)
	defer it.Close()

	var matched []*entities.Discussion
	for it.Rewind(); it.Valid(); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		data, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("ListDiscussions", err)
		}
		d, err := decodeDiscussion(data)
		if err != nil {
			return nil, 0, pkgerrors.NewDatabaseError("ListDiscussions", err)
		}
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
	if err := r.t.writable("CreateDiscussion"); err != nil {
		return err
	}
	ok, err := r.t.exists(discussionKey(d.ID().String()))
	if err != nil {
		return pkgerrors.NewDatabaseError("CreateDiscussion", err)
	}
	if ok {
		return pkgerrors.NewConflictError("discussion already exists: " + d.ID().String())
	}
	return r.put(d)
}

func (r *discussionRepo) Update(ctx context.Context, d *entities.Discussion) error {
	if err := r.t.writable("UpdateDiscussion"); err != nil {
		return err
	}
	ok, err := r.t.exists(discussionKey(d.ID().String()))
	if err != nil {
		return pkgerrors.NewDatabaseError("UpdateDiscussion", err)
	}
	if !ok {
		return pkgerrors.NotFound("discussion", d.ID().String())
	}
	return r.put(d)
}

func (r *discussionRepo) put(d *entities.Discussion) error {
	data, err := encodeDiscussion(d)
	if err != nil {
		return pkgerrors.NewDatabaseError("EncodeDiscussion", err)
	}
	if err := r.t.txn.Set(discussionKey(d.ID().String()), data); err != nil {
		return pkgerrors.NewDatabaseError("PutDiscussion", err)
	}
	return nil
}

func (r *discussionRepo) Delete(ctx context.Context, id valueobjects.DiscussionID) error {
	if err := r.t.writable("DeleteDiscussion"); err != nil {
		return err
	}
	ok, err := r.t.exists(discussionKey(id.String()))
	if err != nil {
		return pkgerrors.NewDatabaseError("DeleteDiscussion", err)
	}
	if !ok {
		return pkgerrors.NotFound("discussion", id.String())
	}
	if err := r.t.txn.Delete(discussionKey(id.String())); err != nil {
		return pkgerrors.NewDatabaseError("DeleteDiscussion", err)
	}
	return nil
}
