package services

import (
	"context"
	"errors"
	"testing"

	"calctree/application/ports"
	"calctree/domain/config"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/infrastructure/persistence/memory"
	pkgerrors "calctree/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	store      *memory.Store
	svc        *RecalculationService
	discussion *entities.Discussion
}

func newFixture(t *testing.T, start string) *fixture {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	store := memory.NewStore()

	d, err := entities.NewDiscussion("Scenario", valueobjects.MustDecimal(start), "alice", cfg)
	require.NoError(t, err)
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		return tx.Discussions().Create(ctx, d)
	}))

	return &fixture{
		store:      store,
		svc:        NewRecalculationService(store, cfg, zap.NewNop()),
		discussion: d,
	}
}

func (f *fixture) root(t *testing.T, kind valueobjects.OperationKind, operand string) *entities.Operation {
	t.Helper()
	id := f.discussion.ID()
	op, err := f.svc.CreateOperation(context.Background(), CreateOperationInput{
		DiscussionID: &id,
		Kind:         kind,
		Operand:      valueobjects.MustDecimal(operand),
		CreatedBy:    "alice",
	})
	require.NoError(t, err)
	return op
}

func (f *fixture) child(t *testing.T, parent *entities.Operation, kind valueobjects.OperationKind, operand string) *entities.Operation {
	t.Helper()
	id := parent.ID()
	op, err := f.svc.CreateOperation(context.Background(), CreateOperationInput{
		ParentID:  &id,
		Kind:      kind,
		Operand:   valueobjects.MustDecimal(operand),
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	return op
}

func (f *fixture) load(t *testing.T, id valueobjects.OperationID) *entities.Operation {
	t.Helper()
	var op *entities.Operation
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		var err error
		op, err = tx.Operations().FindByID(ctx, id)
		return err
	}))
	return op
}

func (f *fixture) snapshot(t *testing.T) map[string]entities.OperationState {
	t.Helper()
	out := make(map[string]entities.OperationState)
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		ops, err := tx.Operations().FindByDiscussion(ctx, f.discussion.ID())
		for _, op := range ops {
			out[op.ID().String()] = op.State()
		}
		return err
	}))
	return out
}

func decimalPtr(s string) *valueobjects.Decimal {
	d := valueobjects.MustDecimal(s)
	return &d
}

func kindPtr(k valueobjects.OperationKind) *valueobjects.OperationKind {
	return &k
}

func strPtr(s string) *string {
	return &s
}

func assertValues(t *testing.T, op *entities.Operation, before, after string, depth int) {
	t.Helper()
	assert.Equal(t, before, op.BeforeValue().String(), "before of %s", op.ID())
	assert.Equal(t, after, op.AfterValue().String(), "after of %s", op.ID())
	assert.Equal(t, depth, op.Depth(), "depth of %s", op.ID())
}

func TestCreateOperation_RootAndChild(t *testing.T) {
	// Arrange
	f := newFixture(t, "100")

	// Act
	root := f.root(t, valueobjects.KindAdd, "50")
	child := f.child(t, root, valueobjects.KindMultiply, "2")

	// Assert
	assertValues(t, f.load(t, root.ID()), "100", "150", 1)
	assertValues(t, f.load(t, child.ID()), "150", "300", 2)
	assert.True(t, child.DiscussionID().Equals(f.discussion.ID()))
}

func TestUpdateOperation_CascadesToChild(t *testing.T) {
	// Arrange
	f := newFixture(t, "100")
	root := f.root(t, valueobjects.KindAdd, "50")
	child := f.child(t, root, valueobjects.KindMultiply, "2")

	// Act
	updated, count, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{Operand: decimalPtr("100")})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "200", updated.AfterValue().String())
	assertValues(t, f.load(t, root.ID()), "100", "200", 1)
	assertValues(t, f.load(t, child.ID()), "200", "400", 2)
}

func TestCreateOperation_DecimalPrecision(t *testing.T) {
	f := newFixture(t, "0.1")

	root := f.root(t, valueobjects.KindAdd, "0.2")

	assert.Equal(t, "0.3", root.AfterValue().String())
	assert.True(t, root.AfterValue().Equal(valueobjects.MustDecimal("0.3")))
}

func TestDivisionByZero_LeavesTreeUnchanged(t *testing.T) {
	// Arrange
	f := newFixture(t, "100")
	root := f.root(t, valueobjects.KindAdd, "50")
	child := f.child(t, root, valueobjects.KindMultiply, "2")
	before := f.snapshot(t)

	tests := []struct {
		name    string
		changes OperationChanges
	}{
		{"divide root by zero", OperationChanges{Kind: kindPtr(valueobjects.KindDivide), Operand: decimalPtr("0")}},
		{"zero operand on divide kind", OperationChanges{Kind: kindPtr(valueobjects.KindDivide), Operand: decimalPtr("0.000")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			_, _, err := f.svc.UpdateOperation(context.Background(), root.ID(), tt.changes)

			// Assert
			assert.True(t, errors.Is(err, pkgerrors.ErrDivisionByZero))
			assert.Equal(t, before, f.snapshot(t))
		})
	}

	t.Run("create child dividing by zero", func(t *testing.T) {
		id := child.ID()
		_, err := f.svc.CreateOperation(context.Background(), CreateOperationInput{
			ParentID: &id,
			Kind:     valueobjects.KindDivide,
			Operand:  valueobjects.Zero,
		})
		assert.True(t, errors.Is(err, pkgerrors.ErrDivisionByZero))
		assert.Equal(t, before, f.snapshot(t))
	})
}

func TestCreateOperation_MaxDepth(t *testing.T) {
	// Arrange
	f := newFixture(t, "1")
	maxDepth := f.svc.MaxTreeDepth()

	// Act
	node := f.root(t, valueobjects.KindAdd, "1")
	for depth := 2; depth <= maxDepth; depth++ {
		node = f.child(t, node, valueobjects.KindAdd, "1")
	}
	parentID := node.ID()
	_, err := f.svc.CreateOperation(context.Background(), CreateOperationInput{
		ParentID: &parentID,
		Kind:     valueobjects.KindAdd,
		Operand:  valueobjects.MustDecimal("1"),
	})

	// Assert
	assert.Equal(t, maxDepth, node.Depth())
	require.True(t, errors.Is(err, pkgerrors.ErrMaxDepthExceeded))
	domErr := pkgerrors.GetDomainError(err)
	require.NotNil(t, domErr)
	assert.Equal(t, maxDepth+1, domErr.Details["attempted_depth"])
	assert.Equal(t, maxDepth, domErr.Details["max_depth"])
}

func TestUpdateOperation_CascadeOrder(t *testing.T) {
	// Arrange
	f := newFixture(t, "10")
	r := f.root(t, valueobjects.KindAdd, "0")
	c1 := f.child(t, r, valueobjects.KindMultiply, "2")
	c2 := f.child(t, r, valueobjects.KindSubtract, "3")
	g1 := f.child(t, c1, valueobjects.KindAdd, "1")

	// Act
	_, count, err := f.svc.UpdateOperation(context.Background(), r.ID(), OperationChanges{Operand: decimalPtr("5")})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assertValues(t, f.load(t, r.ID()), "10", "15", 1)
	assertValues(t, f.load(t, c1.ID()), "15", "30", 2)
	assertValues(t, f.load(t, c2.ID()), "15", "12", 2)
	// g1 must see c1's new value, not the stale 20
	assertValues(t, f.load(t, g1.ID()), "30", "31", 3)
}

func TestUpdateOperation_AtomicOnMidCascadeFailure(t *testing.T) {
	// Arrange
	f := newFixture(t, "1")
	r := f.root(t, valueobjects.KindAdd, "1")
	c1 := f.child(t, r, valueobjects.KindAdd, "1")
	g1 := f.child(t, c1, valueobjects.KindAdd, "1")
	f.child(t, g1, valueobjects.KindAdd, "1")
	before := f.snapshot(t)

	// g1 is only looked up as the parent of the deepest node, after r, c1
	// and g1 have already been rewritten inside the transaction.
	f.store.SetFaultHook(func(method, id string) error {
		if method == "FindOperation" && id == g1.ID().String() {
			return errors.New("injected read failure")
		}
		return nil
	})

	// Act
	_, _, err := f.svc.UpdateOperation(context.Background(), r.ID(), OperationChanges{Operand: decimalPtr("100")})
	f.store.SetFaultHook(nil)

	// Assert
	require.Error(t, err)
	assert.Equal(t, before, f.snapshot(t))
}

func TestUpdateOperation_Failures(t *testing.T) {
	f := newFixture(t, "100")
	root := f.root(t, valueobjects.KindAdd, "1")

	t.Run("missing node", func(t *testing.T) {
		_, _, err := f.svc.UpdateOperation(context.Background(), valueobjects.NewOperationID(), OperationChanges{Operand: decimalPtr("1")})
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("invalid kind", func(t *testing.T) {
		_, _, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{Kind: kindPtr("MODULO")})
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidOperationKind))
	})

	t.Run("no changes", func(t *testing.T) {
		_, _, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("title too long", func(t *testing.T) {
		long := make([]byte, 201)
		for i := range long {
			long[i] = 'x'
		}
		_, _, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{Title: strPtr(string(long))})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("ended discussion", func(t *testing.T) {
		require.NoError(t, f.store.WithinTx(context.Background(), func(ctx context.Context, tx ports.Tx) error {
			d, err := tx.Discussions().FindByID(ctx, f.discussion.ID())
			if err != nil {
				return err
			}
			if err := d.End(); err != nil {
				return err
			}
			return tx.Discussions().Update(ctx, d)
		}))

		_, _, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{Operand: decimalPtr("2")})
		assert.True(t, errors.Is(err, pkgerrors.ErrDiscussionEnded))

		id := root.ID()
		_, err = f.svc.CreateOperation(context.Background(), CreateOperationInput{ParentID: &id, Kind: valueobjects.KindAdd})
		assert.True(t, errors.Is(err, pkgerrors.ErrDiscussionEnded))
	})
}

func TestUpdateOperation_KindAndTitle(t *testing.T) {
	f := newFixture(t, "9")
	root := f.root(t, valueobjects.KindAdd, "3")
	child := f.child(t, root, valueobjects.KindAdd, "1")

	updated, count, err := f.svc.UpdateOperation(context.Background(), root.ID(), OperationChanges{
		Kind:  kindPtr(valueobjects.KindDivide),
		Title: strPtr("Split three ways"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, valueobjects.KindDivide, updated.Kind())
	assert.Equal(t, "Split three ways", updated.Title())
	assertValues(t, f.load(t, root.ID()), "9", "3", 1)
	assertValues(t, f.load(t, child.ID()), "3", "4", 2)
}

func TestCreateOperation_Anchors(t *testing.T) {
	f := newFixture(t, "1")
	root := f.root(t, valueobjects.KindAdd, "1")

	other := newFixture(t, "1")
	otherID := other.discussion.ID()
	rootID := root.ID()
	missing := valueobjects.NewOperationID()
	missingDisc := valueobjects.NewDiscussionID()

	tests := []struct {
		name  string
		input CreateOperationInput
		check func(error) bool
	}{
		{"no anchor", CreateOperationInput{Kind: valueobjects.KindAdd}, pkgerrors.IsValidation},
		{"missing parent", CreateOperationInput{ParentID: &missing, Kind: valueobjects.KindAdd}, pkgerrors.IsNotFound},
		{"missing discussion", CreateOperationInput{DiscussionID: &missingDisc, Kind: valueobjects.KindAdd}, pkgerrors.IsNotFound},
		{"parent from another discussion", CreateOperationInput{ParentID: &rootID, DiscussionID: &otherID, Kind: valueobjects.KindAdd}, pkgerrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOperation(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}
