package aggregates

import (
	"fmt"
	"sort"

	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
	"calctree/domain/services"
	pkgerrors "calctree/pkg/errors"
)

// Tree is an arena over one discussion's operations, indexed by ID.
// It is a read model: nothing in it is persisted.
type Tree struct {
	discussion *entities.Discussion
	nodes      map[string]*entities.Operation
	children   map[string][]string
	roots      []string
	order      []string
}

// Violation describes one node that breaks a tree invariant.
type Violation struct {
	OperationID string `json:"operation_id"`
	Rule        string `json:"rule"`
	Detail      string `json:"detail"`
}

// NewTree indexes ops. Every op must belong to discussion and every parent
// reference must resolve inside ops.
func NewTree(discussion *entities.Discussion, ops []*entities.Operation) (*Tree, error) {
	if discussion == nil {
		return nil, pkgerrors.Validation("tree requires a discussion")
	}

	t := &Tree{
		discussion: discussion,
		nodes:      make(map[string]*entities.Operation, len(ops)),
		children:   make(map[string][]string),
	}

	sorted := make([]*entities.Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt().Before(sorted[j].CreatedAt())
	})

	for _, op := range sorted {
		if !op.DiscussionID().Equals(discussion.ID()) {
			return nil, pkgerrors.Validation(fmt.Sprintf("operation %s belongs to discussion %s", op.ID(), op.DiscussionID()))
		}
		id := op.ID().String()
		if _, dup := t.nodes[id]; dup {
			continue
		}
		t.nodes[id] = op
		t.order = append(t.order, id)
	}

	for _, id := range t.order {
		op := t.nodes[id]
		parent := op.ParentID()
		if parent == nil {
			t.roots = append(t.roots, id)
			continue
		}
		if _, ok := t.nodes[parent.String()]; !ok {
			return nil, pkgerrors.NotFound("parent operation", parent.String())
		}
		t.children[parent.String()] = append(t.children[parent.String()], id)
	}

	return t, nil
}

// Discussion returns the owning discussion
func (t *Tree) Discussion() *entities.Discussion {
	return t.discussion
}

// Len returns the number of operations in the tree
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get looks up an operation by ID
func (t *Tree) Get(id valueobjects.OperationID) (*entities.Operation, bool) {
	op, ok := t.nodes[id.String()]
	return op, ok
}

// Roots returns root operations in creation order
func (t *Tree) Roots() []*entities.Operation {
	return t.resolve(t.roots)
}

// Children returns the direct children of id in creation order
func (t *Tree) Children(id valueobjects.OperationID) []*entities.Operation {
	return t.resolve(t.children[id.String()])
}

// Descendants walks the subtree below id breadth-first. The start node is
// not included.
func (t *Tree) Descendants(id valueobjects.OperationID) []*entities.Operation {
	visited := map[string]bool{id.String(): true}
	queue := []string{id.String()}
	var out []*entities.Operation

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, child := range t.children[current] {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, t.nodes[child])
			queue = append(queue, child)
		}
	}
	return out
}

// PathTo returns the chain from the root down to id.
func (t *Tree) PathTo(id valueobjects.OperationID) ([]*entities.Operation, error) {
	op, ok := t.nodes[id.String()]
	if !ok {
		return nil, pkgerrors.NotFound("operation", id.String())
	}

	var path []*entities.Operation
	seen := make(map[string]bool)
	for op != nil {
		if seen[op.ID().String()] {
			return nil, pkgerrors.Validation("cycle detected at operation " + op.ID().String())
		}
		seen[op.ID().String()] = true
		path = append([]*entities.Operation{op}, path...)

		parent := op.ParentID()
		if parent == nil {
			break
		}
		op = t.nodes[parent.String()]
	}
	return path, nil
}

// MaxDepth returns the deepest stored depth, 0 for an empty tree.
func (t *Tree) MaxDepth() int {
	deepest := 0
	for _, op := range t.nodes {
		if op.Depth() > deepest {
			deepest = op.Depth()
		}
	}
	return deepest
}

// RootSummary maps each root operation ID to its after-value.
func (t *Tree) RootSummary() map[string]valueobjects.Decimal {
	summary := make(map[string]valueobjects.Decimal, len(t.roots))
	for _, id := range t.roots {
		summary[id] = t.nodes[id].AfterValue()
	}
	return summary
}

// Validate checks every stored node against the tree invariants and returns
// the violations found, if any.
func (t *Tree) Validate(maxDepth int) []Violation {
	var violations []Violation
	add := func(op *entities.Operation, rule, format string, args ...interface{}) {
		violations = append(violations, Violation{
			OperationID: op.ID().String(),
			Rule:        rule,
			Detail:      fmt.Sprintf(format, args...),
		})
	}

	for _, id := range t.order {
		op := t.nodes[id]

		wantBefore := t.discussion.StartingValue()
		wantDepth := 1
		if parent := op.ParentID(); parent != nil {
			p := t.nodes[parent.String()]
			wantBefore = p.AfterValue()
			wantDepth = p.Depth() + 1
		}

		if !op.BeforeValue().Equal(wantBefore) {
			add(op, "before_matches_parent", "before=%s expected=%s", op.BeforeValue(), wantBefore)
		}
		if op.Depth() != wantDepth {
			add(op, "depth_matches_parent", "depth=%d expected=%d", op.Depth(), wantDepth)
		}
		if maxDepth > 0 && op.Depth() > maxDepth {
			add(op, "depth_within_limit", "depth=%d max=%d", op.Depth(), maxDepth)
		}

		after, err := services.Evaluate(op.BeforeValue(), op.Kind(), op.Operand())
		if err != nil {
			add(op, "after_evaluates", "evaluate failed: %v", err)
		} else if !op.AfterValue().Equal(after) {
			add(op, "after_evaluates", "after=%s expected=%s", op.AfterValue(), after)
		}
	}
	return violations
}

func (t *Tree) resolve(ids []string) []*entities.Operation {
	out := make([]*entities.Operation, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.nodes[id])
	}
	return out
}
