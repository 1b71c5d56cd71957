package services

import (
	"context"
	"testing"

	"calctree/application/ports"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, f *fixture, id valueobjects.OperationID) []*entities.Operation {
	t.Helper()
	var out []*entities.Operation
	require.NoError(t, f.store.View(context.Background(), func(ctx context.Context, tx ports.Tx) error {
		var err error
		out, err = CollectDescendants(ctx, tx.Operations(), id)
		return err
	}))
	return out
}

func ids(ops []*entities.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID().String()
	}
	return out
}

func TestCollectDescendants(t *testing.T) {
	// Arrange
	f := newFixture(t, "1")
	r := f.root(t, valueobjects.KindAdd, "1")
	c1 := f.child(t, r, valueobjects.KindAdd, "1")
	c2 := f.child(t, r, valueobjects.KindAdd, "1")
	g1 := f.child(t, c1, valueobjects.KindAdd, "1")
	g2 := f.child(t, c2, valueobjects.KindAdd, "1")
	unrelated := f.root(t, valueobjects.KindAdd, "1")

	// Act
	all := collect(t, f, r.ID())
	fromC1 := collect(t, f, c1.ID())
	leaf := collect(t, f, g2.ID())

	// Assert
	assert.ElementsMatch(t, []string{c1.ID().String(), c2.ID().String(), g1.ID().String(), g2.ID().String()}, ids(all))
	assert.NotContains(t, ids(all), r.ID().String())
	assert.NotContains(t, ids(all), unrelated.ID().String())
	assert.Equal(t, []string{g1.ID().String()}, ids(fromC1))
	assert.Empty(t, leaf)

	// breadth-first: both children come before any grandchild
	pos := make(map[string]int)
	for i, id := range ids(all) {
		pos[id] = i
	}
	assert.Less(t, pos[c2.ID().String()], pos[g1.ID().String()])
}

type repeatingRepo struct {
	ports.OperationRepository
	children map[string][]*entities.Operation
}

func (r repeatingRepo) FindChildren(ctx context.Context, id valueobjects.OperationID) ([]*entities.Operation, error) {
	return r.children[id.String()], nil
}

func TestCollectDescendants_NeverRepeatsNodes(t *testing.T) {
	f := newFixture(t, "1")
	r := f.root(t, valueobjects.KindAdd, "1")
	c := f.child(t, r, valueobjects.KindAdd, "1")

	// a store returning the same child twice, and the root as its own grandchild
	repo := repeatingRepo{children: map[string][]*entities.Operation{
		r.ID().String(): {c, c},
		c.ID().String(): {r},
	}}

	got, err := CollectDescendants(context.Background(), repo, r.ID())

	require.NoError(t, err)
	assert.Equal(t, []string{c.ID().String()}, ids(got))
}

func TestCollectDescendants_Cancelled(t *testing.T) {
	f := newFixture(t, "1")
	r := f.root(t, valueobjects.KindAdd, "1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := repeatingRepo{children: map[string][]*entities.Operation{}}
	_, err := CollectDescendants(ctx, repo, r.ID())

	assert.ErrorIs(t, err, context.Canceled)
}
