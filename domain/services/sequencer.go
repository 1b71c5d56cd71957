package services

import (
	"calctree/domain/core/entities"
)

// OrderByDepth returns nodes so that every node comes after its parent when
// that parent is also in the input. Nodes whose parent is outside the set
// seed the first layer; each further layer holds the children of the
// previous one. Siblings keep their input order.
func OrderByDepth(nodes []*entities.Operation) []*entities.Operation {
	if len(nodes) == 0 {
		return nil
	}

	inSet := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		inSet[n.ID().String()] = struct{}{}
	}

	children := make(map[string][]*entities.Operation, len(nodes))
	layer := make([]*entities.Operation, 0, len(nodes))
	for _, n := range nodes {
		parent := n.ParentID()
		if parent != nil {
			if _, ok := inSet[parent.String()]; ok {
				children[parent.String()] = append(children[parent.String()], n)
				continue
			}
		}
		layer = append(layer, n)
	}

	ordered := make([]*entities.Operation, 0, len(nodes))
	emitted := make(map[string]struct{}, len(nodes))
	for len(layer) > 0 {
		var next []*entities.Operation
		for _, n := range layer {
			id := n.ID().String()
			if _, dup := emitted[id]; dup {
				continue
			}
			emitted[id] = struct{}{}
			ordered = append(ordered, n)
			next = append(next, children[id]...)
		}
		layer = next
	}
	return ordered
}
