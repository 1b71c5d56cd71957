package services

import pkgerrors "calctree/pkg/errors"

// AssertWithinDepth rejects a child of a node at parentDepth when the child
// would sit deeper than maxDepth. Roots pass parentDepth 0.
func AssertWithinDepth(parentDepth, maxDepth int) error {
	if attempted := parentDepth + 1; attempted > maxDepth {
		return pkgerrors.MaxDepthExceeded(attempted, maxDepth)
	}
	return nil
}
