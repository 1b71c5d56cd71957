package queries

import (
	"calctree/pkg/utils"
)

// GetOperationQuery fetches a single operation
type GetOperationQuery struct {
	OperationID string `json:"operationId" validate:"required"`
}

// Validate validates the query
func (q GetOperationQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListOperationsQuery pages through operations, optionally narrowed to one
// discussion and to a set of kinds.
type ListOperationsQuery struct {
	DiscussionID string   `json:"discussionId"`
	Kinds        []string `json:"operationTypes" validate:"omitempty,dive,opkind"`
	Page         int      `json:"page" validate:"gte=0"`
	PageSize     int      `json:"pageSize" validate:"gte=0"`
}

func (q ListOperationsQuery) Validate() error {
	return utils.ValidateStruct(q)
}
