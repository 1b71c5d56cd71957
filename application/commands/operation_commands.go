package commands

import (
	"calctree/domain/core/valueobjects"
	"calctree/pkg/utils"
)

// CreateOperationCommand adds one node. ParentID makes it a child;
// otherwise it becomes a root of DiscussionID.
type CreateOperationCommand struct {
	DiscussionID string                `json:"discussionId" validate:"required_without=ParentID"`
	ParentID     string                `json:"parentId"`
	Kind         string                `json:"operationType" validate:"required,opkind"`
	Operand      *valueobjects.Decimal `json:"rightOperand" validate:"required"`
	Title        string                `json:"title,omitempty"`
	CreatedBy    string                `json:"createdBy" validate:"required"`
}

// Validate validates the command
func (c CreateOperationCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateOperationCommand edits a node. At least one of Operand, Kind or
// Title must be set.
type UpdateOperationCommand struct {
	OperationID string                `json:"operationId" validate:"required"`
	Operand     *valueobjects.Decimal `json:"rightOperand" validate:"required_without_all=Kind Title"`
	Kind        *string               `json:"operationType" validate:"omitempty,opkind"`
	Title       *string               `json:"title"`
}

func (c UpdateOperationCommand) Validate() error {
	return utils.ValidateStruct(c)
}
