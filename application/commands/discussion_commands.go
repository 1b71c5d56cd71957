package commands

import (
	"calctree/domain/core/valueobjects"
	"calctree/pkg/utils"
)

// CreateDiscussionCommand opens a discussion. RootOperation, when present,
// is admitted in the same transaction.
type CreateDiscussionCommand struct {
	Title         string                `json:"title" validate:"required"`
	StartingValue *valueobjects.Decimal `json:"startingValue" validate:"required"`
	CreatedBy     string                `json:"createdBy" validate:"required"`
	RootOperation *RootOperationInput   `json:"rootOperation,omitempty"`
}

// RootOperationInput describes the first operation of a new discussion
type RootOperationInput struct {
	Kind    string                `json:"operationType" validate:"required,opkind"`
	Operand *valueobjects.Decimal `json:"rightOperand" validate:"required"`
	Title   string                `json:"title,omitempty"`
}

// Validate validates the command
func (c CreateDiscussionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateDiscussionCommand renames a discussion
type UpdateDiscussionCommand struct {
	DiscussionID string `json:"discussionId" validate:"required"`
	Title        string `json:"title" validate:"required"`
}

func (c UpdateDiscussionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// EndDiscussionCommand closes a discussion to further edits
type EndDiscussionCommand struct {
	DiscussionID string `json:"discussionId" validate:"required"`
}

func (c EndDiscussionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteDiscussionCommand removes a discussion together with its tree
type DeleteDiscussionCommand struct {
	DiscussionID string `json:"discussionId" validate:"required"`
}

func (c DeleteDiscussionCommand) Validate() error {
	return utils.ValidateStruct(c)
}
