package services

import (
	"context"
	"fmt"

	"calctree/application/ports"
	"calctree/domain/core/entities"
	"calctree/domain/core/valueobjects"
)

// CollectDescendants returns every node below rootID, breadth-first, using
// the caller's transaction-scoped repository. The root itself is never
// returned and no node is returned twice, even if the store repeats a child.
func CollectDescendants(ctx context.Context, ops ports.OperationRepository, rootID valueobjects.OperationID) ([]*entities.Operation, error) {
	visited := map[string]struct{}{rootID.String(): {}}
	queue := []valueobjects.OperationID{rootID}
	var descendants []*entities.Operation

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := queue[0]
		queue = queue[1:]

		children, err := ops.FindChildren(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("find children of %s: %w", current, err)
		}

		for _, child := range children {
			key := child.ID().String()
			if _, seen := visited[key]; seen {
				continue
			}
			visited[key] = struct{}{}
			descendants = append(descendants, child)
			queue = append(queue, child.ID())
		}
	}

	return descendants, nil
}
