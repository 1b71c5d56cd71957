package services

import (
	"testing"
	"time"

	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(parent *entities.Operation, depth int) *entities.Operation {
	s := entities.OperationState{
		ID:           valueobjects.NewOperationID(),
		DiscussionID: valueobjects.NewDiscussionID(),
		Kind:         valueobjects.KindAdd,
		Depth:        depth,
		CreatedAt:    time.Now(),
	}
	if parent != nil {
		id := parent.ID()
		s.ParentID = &id
		s.DiscussionID = parent.DiscussionID()
	}
	return entities.ReconstructOperation(s)
}

func assertParentsFirst(t *testing.T, ordered []*entities.Operation) {
	t.Helper()
	pos := make(map[string]int, len(ordered))
	for i, n := range ordered {
		pos[n.ID().String()] = i
	}
	for _, n := range ordered {
		parent := n.ParentID()
		if parent == nil {
			continue
		}
		if p, ok := pos[parent.String()]; ok {
			assert.Less(t, p, pos[n.ID().String()], "parent of %s emitted late", n.ID())
		}
	}
}

func TestOrderByDepth(t *testing.T) {
	// Arrange: r -> c1 -> g1 -> gg1, r -> c2
	r := node(nil, 1)
	c1 := node(r, 2)
	c2 := node(r, 2)
	g1 := node(c1, 3)
	gg1 := node(g1, 4)

	// deliberately scrambled, deepest first
	input := []*entities.Operation{gg1, g1, c2, c1}

	// Act
	ordered := OrderByDepth(input)

	// Assert
	require.Len(t, ordered, len(input))
	assertParentsFirst(t, ordered)
	assert.ElementsMatch(t, input, ordered)
}

func TestOrderByDepth_SeedsFromNodesWithParentOutsideSet(t *testing.T) {
	r := node(nil, 1)
	c1 := node(r, 2)
	c2 := node(r, 2)

	ordered := OrderByDepth([]*entities.Operation{c2, c1})

	// both seed the first layer and keep input order
	assert.Equal(t, []*entities.Operation{c2, c1}, ordered)
}

func TestOrderByDepth_Empty(t *testing.T) {
	assert.Empty(t, OrderByDepth(nil))
}

func TestOrderByDepth_WideAndDeep(t *testing.T) {
	root := node(nil, 1)
	var all []*entities.Operation
	frontier := []*entities.Operation{root}
	for depth := 2; depth <= 6; depth++ {
		var next []*entities.Operation
		for _, p := range frontier {
			for i := 0; i < 3; i++ {
				c := node(p, depth)
				next = append(next, c)
				all = append(all, c)
			}
		}
		frontier = next
	}
	// reverse so every child precedes its parent in the input
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	ordered := OrderByDepth(all)

	assert.Len(t, ordered, len(all))
	assertParentsFirst(t, ordered)
}
