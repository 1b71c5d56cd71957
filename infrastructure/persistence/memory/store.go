// Package memory is an in-process transactional store. Write transactions
// are serialized and work on a private copy that replaces the live state
// only on commit, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"

	"calctree/application/ports"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	pkgerrors "calctree/pkg/errors"
)

// FaultHook lets tests fail a repository call. method is the repository
// method name, id the key it was called with.
type FaultHook func(method, id string) error

// Store provides an in-memory implementation of ports.TxManager
type Store struct {
	mu    sync.RWMutex
	state *state
	fault FaultHook
}

type state struct {
	discussions map[string]entities.DiscussionState
	operations  map[string]entities.OperationState
	// children keeps insertion order per parent
	children map[string][]string
}

func newState() *state {
	return &state{
		discussions: make(map[string]entities.DiscussionState),
		operations:  make(map[string]entities.OperationState),
		children:    make(map[string][]string),
	}
}

func (s *state) clone() *state {
	c := &state{
		discussions: make(map[string]entities.DiscussionState, len(s.discussions)),
		operations:  make(map[string]entities.OperationState, len(s.operations)),
		children:    make(map[string][]string, len(s.children)),
	}
	for k, v := range s.discussions {
		c.discussions[k] = v
	}
	for k, v := range s.operations {
		c.operations[k] = v
	}
	for k, v := range s.children {
		c.children[k] = append([]string(nil), v...)
	}
	return c
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{state: newState()}
}

// SetFaultHook installs hook; nil removes it.
func (s *Store) SetFaultHook(hook FaultHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = hook
}

// WithinTx implements ports.TxManager
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	t := &tx{state: working, fault: s.fault}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// View implements ports.TxManager
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &tx{state: s.state, fault: s.fault, readOnly: true})
}

type tx struct {
	state    *state
	fault    FaultHook
	readOnly bool
}

func (t *tx) Operations() ports.OperationRepository   { return &operationRepo{t} }
func (t *tx) Discussions() ports.DiscussionRepository { return &discussionRepo{t} }

func (t *tx) check(method, id string) error {
	if t.fault != nil {
		if err := t.fault(method, id); err != nil {
			return pkgerrors.NewDatabaseError(method, err)
		}
	}
	return nil
}

func (t *tx) writable(method string) error {
	if t.readOnly {
		return pkgerrors.NewInternalError(method + " called in a read-only transaction")
	}
	return nil
}

type operationRepo struct{ t *tx }

func (r *operationRepo) FindByID(ctx context.Context, id valueobjects.OperationID) (*entities.Operation, error) {
	if err := r.t.check("FindOperation", id.String()); err != nil {
		return nil, err
	}
	s, ok := r.t.state.operations[id.String()]
	if !ok {
		return nil, pkgerrors.NotFound("operation", id.String())
	}
	return entities.ReconstructOperation(s), nil
}

func (r *operationRepo) FindChildren(ctx context.Context, parentID valueobjects.OperationID) ([]*entities.Operation, error) {
	if err := r.t.check("FindChildren", parentID.String()); err != nil {
		return nil, err
	}
	ids := r.t.state.children[parentID.String()]
	out := make([]*entities.Operation, 0, len(ids))
	for _, id := range ids {
		out = append(out, entities.ReconstructOperation(r.t.state.operations[id]))
	}
	return out, nil
}

func (r *operationRepo) FindByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) ([]*entities.Operation, error) {
	if err := r.t.check("FindByDiscussion", discussionID.String()); err != nil {
		return nil, err
	}
	var out []*entities.Operation
	for _, s := range r.t.state.operations {
		if s.DiscussionID.Equals(discussionID) {
			out = append(out, entities.ReconstructOperation(s))
		}
	}
	sortOperations(out)
	return out, nil
}

func (r *operationRepo) List(ctx context.Context, filter ports.OperationFilter) ([]*entities.Operation, int, error) {
	if err := r.t.check("ListOperations", ""); err != nil {
		return nil, 0, err
	}
	var matched []*entities.Operation
	for _, s := range r.t.state.operations {
		op := entities.ReconstructOperation(s)
		if filter.Matches(op) {
			matched = append(matched, op)
		}
	}
	sortNewestFirst(matched)
	start, end := ports.PageBounds(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], len(matched), nil
}

func (r *operationRepo) Create(ctx context.Context, op *entities.Operation) error {
	if err := r.t.writable("CreateOperation"); err != nil {
		return err
	}
	if err := r.t.check("CreateOperation", op.ID().String()); err != nil {
		return err
	}
	key := op.ID().String()
	if _, exists := r.t.state.operations[key]; exists {
		return pkgerrors.NewConflictError("operation already exists: " + key)
	}
	r.t.state.operations[key] = op.State()
	if parent := op.ParentID(); parent != nil {
		r.t.state.children[parent.String()] = append(r.t.state.children[parent.String()], key)
	}
	return nil
}

func (r *operationRepo) Update(ctx context.Context, op *entities.Operation) error {
	if err := r.t.writable("UpdateOperation"); err != nil {
		return err
	}
	if err := r.t.check("UpdateOperation", op.ID().String()); err != nil {
		return err
	}
	key := op.ID().String()
	if _, exists := r.t.state.operations[key]; !exists {
		return pkgerrors.NotFound("operation", key)
	}
	r.t.state.operations[key] = op.State()
	return nil
}

func (r *operationRepo) DeleteByDiscussion(ctx context.Context, discussionID valueobjects.DiscussionID) (int, error) {
	if err := r.t.writable("DeleteOperations"); err != nil {
		return 0, err
	}
	if err := r.t.check("DeleteOperations", discussionID.String()); err != nil {
		return 0, err
	}
	removed := 0
	for key, s := range r.t.state.operations {
		if !s.DiscussionID.Equals(discussionID) {
			continue
		}
		delete(r.t.state.operations, key)
		delete(r.t.state.children, key)
		removed++
	}
	return removed, nil
}

type discussionRepo struct{ t *tx }

func (r *discussionRepo) FindByID(ctx context.Context, id valueobjects.DiscussionID) (*entities.Discussion, error) {
	if err := r.t.check("FindDiscussion", id.String()); err != nil {
		return nil, err
	}
	s, ok := r.t.state.discussions[id.String()]
	if !ok {
		return nil, pkgerrors.NotFound("discussion", id.String())
	}
	return entities.ReconstructDiscussion(s), nil
}

func (r *discussionRepo) List(ctx context.Context, filter ports.DiscussionFilter) ([]*entities.Discussion, int, error) {
	if err := r.t.check("ListDiscussions", ""); err != nil {
		return nil, 0, err
	}
	var matched []*entities.Discussion
	for _, s := range r.t.state.discussions {
		d := entities.ReconstructDiscussion(s)
		if filter.Matches(d) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt().Equal(matched[j].CreatedAt()) {
			return matched[i].ID().String() < matched[j].ID().String()
		}
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})
	start, end := ports.PageBounds(len(matched), filter.Offset, filter.Limit)
	return matched[start:end], len(matched), nil
}

func (r *discussionRepo) Create(ctx context.Context, d *entities.Discussion) error {
	if err := r.t.writable("CreateDiscussion"); err != nil {
		return err
	}
	if err := r.t.check("CreateDiscussion", d.ID().String()); err != nil {
		return err
	}
	key := d.ID().String()
	if _, exists := r.t.state.discussions[key]; exists {
		return pkgerrors.NewConflictError("discussion already exists: " + key)
	}
	r.t.state.discussions[key] = d.State()
	return nil
}

func (r *discussionRepo) Update(ctx context.Context, d *entities.Discussion) error {
	if err := r.t.writable("UpdateDiscussion"); err != nil {
		return err
	}
	if err := r.t.check("UpdateDiscussion", d.ID().String()); err != nil {
		return err
	}
	key := d.ID().String()
	if _, exists := r.t.state.discussions[key]; !exists {
		return pkgerrors.NotFound("discussion", key)
	}
	r.t.state.discussions[key] = d.State()
	return nil
}

func (r *discussionRepo) Delete(ctx context.Context, id valueobjects.DiscussionID) error {
	if err := r.t.writable("DeleteDiscussion"); err != nil {
		return err
	}
	if err := r.t.check("DeleteDiscussion", id.String()); err != nil {
		return err
	}
	if _, exists := r.t.state.discussions[id.String()]; !exists {
		return pkgerrors.NotFound("discussion", id.String())
	}
	delete(r.t.state.discussions, id.String())
	return nil
}

// sortOperations orders by depth, then creation time, so parents precede
// children.
func sortOperations(ops []*entities.Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Depth() != ops[j].Depth() {
			return ops[i].Depth() < ops[j].Depth()
		}
		if !ops[i].CreatedAt().Equal(ops[j].CreatedAt()) {
			return ops[i].CreatedAt().Before(ops[j].CreatedAt())
		}
		return ops[i].ID().String() < ops[j].ID().String()
	})
}

func sortNewestFirst(ops []*entities.Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if !ops[i].CreatedAt().Equal(ops[j].CreatedAt()) {
			return ops[i].CreatedAt().After(ops[j].CreatedAt())
		}
		return ops[i].ID().String() < ops[j].ID().String()
	})
}
