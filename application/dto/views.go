// Package dto holds the read shapes returned by command and query handlers.
package dto

import (
	"fmt"
	"time"

	"calctree/domain/core/aggregates"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
)

// OperationView is the wire shape of one operation node
type OperationView struct {
	ID           string               `json:"id"`
	DiscussionID string               `json:"discussionId"`
	ParentID     *string              `json:"parentId"`
	Kind         string               `json:"operationType"`
	Operand      valueobjects.Decimal `json:"rightOperand"`
	BeforeValue  valueobjects.Decimal `json:"beforeValue"`
	AfterValue   valueobjects.Decimal `json:"afterValue"`
	Depth        int                  `json:"depth"`
	Title        string               `json:"title,omitempty"`
	Expression   string               `json:"expression"`
	CreatedBy    string               `json:"createdBy"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// DiscussionView is the wire shape of a discussion
type DiscussionView struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	StartingValue valueobjects.Decimal `json:"startingValue"`
	IsEnded       bool                 `json:"isEnded"`
	EndedAt       *time.Time           `json:"endedAt,omitempty"`
	CreatedBy     string               `json:"createdBy"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// FromOperation maps an entity to its view. A nil operation maps to nil.
func FromOperation(op *entities.Operation) *OperationView {
	if op == nil {
		return nil
	}
	v := &OperationView{
		ID:           op.ID().String(),
		DiscussionID: op.DiscussionID().String(),
		Kind:         op.Kind().String(),
		Operand:      op.Operand(),
		BeforeValue:  op.BeforeValue(),
		AfterValue:   op.AfterValue(),
		Depth:        op.Depth(),
		Title:        op.Title(),
		Expression:   fmt.Sprintf("%s %s %s = %s", op.BeforeValue(), op.Kind().Symbol(), op.Operand(), op.AfterValue()),
		CreatedBy:    op.CreatedBy(),
		CreatedAt:    op.CreatedAt(),
		UpdatedAt:    op.UpdatedAt(),
	}
	if parent := op.ParentID(); parent != nil {
		s := parent.String()
		v.ParentID = &s
	}
	return v
}

// FromOperations maps a slice, keeping order.
func FromOperations(ops []*entities.Operation) []OperationView {
	out := make([]OperationView, 0, len(ops))
	for _, op := range ops {
		out = append(out, *FromOperation(op))
	}
	return out
}

func FromDiscussion(d *entities.Discussion) *DiscussionView {
	if d == nil {
		return nil
	}
	return &DiscussionView{
		ID:            d.ID().String(),
		Title:         d.Title(),
		StartingValue: d.StartingValue(),
		IsEnded:       d.IsEnded(),
		EndedAt:       d.EndedAt(),
		CreatedBy:     d.CreatedBy(),
		CreatedAt:     d.CreatedAt(),
		UpdatedAt:     d.UpdatedAt(),
	}
}

func FromDiscussions(ds []*entities.Discussion) []DiscussionView {
	out := make([]DiscussionView, 0, len(ds))
	for _, d := range ds {
		out = append(out, *FromDiscussion(d))
	}
	return out
}

// CreateDiscussionResult is returned by CreateDiscussion. RootOperation is
// set only when the command asked for a first operation.
type CreateDiscussionResult struct {
	Discussion    *DiscussionView `json:"discussion"`
	RootOperation *OperationView  `json:"rootOperation,omitempty"`
}

// UpdateOperationResult reports the edited node and the size of the cascade.
type UpdateOperationResult struct {
	Operation         *OperationView `json:"operation"`
	RecalculatedCount int            `json:"recalculatedCount"`
}

// DeleteDiscussionResult reports what a delete removed.
type DeleteDiscussionResult struct {
	DiscussionID      string `json:"discussionId"`
	OperationsRemoved int    `json:"operationsRemoved"`
}

// TreeNode is one operation with its children nested below it.
type TreeNode struct {
	OperationView
	Children []*TreeNode `json:"children"`
}

// TreeView is the nested read model of a whole discussion.
type TreeView struct {
	Discussion *DiscussionView `json:"discussion"`
	Roots      []*TreeNode     `json:"roots"`
	Count      int             `json:"count"`
	MaxDepth   int             `json:"maxDepth"`
}

// FromTree nests every node under its parent. Children keep creation order.
func FromTree(t *aggregates.Tree) *TreeView {
	view := &TreeView{
		Discussion: FromDiscussion(t.Discussion()),
		Roots:      make([]*TreeNode, 0),
		Count:      t.Len(),
		MaxDepth:   t.MaxDepth(),
	}

	type frame struct {
		op   *entities.Operation
		into *[]*TreeNode
	}
	stack := make([]frame, 0, t.Len())
	roots := t.Roots()
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{roots[i], &view.Roots})
	}
	// Frames are pushed in reverse so each list is appended in order.
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &TreeNode{OperationView: *FromOperation(f.op), Children: make([]*TreeNode, 0)}
		*f.into = append(*f.into, node)

		children := t.Children(f.op.ID())
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], &node.Children})
		}
	}
	return view
}

// RootSummary maps each root operation ID to its after-value.
type RootSummary struct {
	DiscussionID string            `json:"discussionId"`
	Roots        map[string]string `json:"roots"`
}

func FromRootSummary(discussionID string, roots map[string]valueobjects.Decimal) *RootSummary {
	out := &RootSummary{DiscussionID: discussionID, Roots: make(map[string]string, len(roots))}
	for id, v := range roots {
		out.Roots[id] = v.String()
	}
	return out
}
