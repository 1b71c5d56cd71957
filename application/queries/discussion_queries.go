package queries

import (
	"calctree/application/ports"
	"calctree/domain/core/valueobjects"
	"calctree/pkg/utils"
)

// GetDiscussionQuery fetches a single discussion
type GetDiscussionQuery struct {
	DiscussionID string `json:"discussionId" validate:"required"`
}

// Validate validates the query
func (q GetDiscussionQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListDiscussionsQuery pages through discussions, newest first
type ListDiscussionsQuery struct {
	TitleContains string `json:"search"`
	CreatedBy     string `json:"createdBy"`
	Page          int    `json:"page" validate:"gte=0"`
	PageSize      int    `json:"pageSize" validate:"gte=0"`
}

func (q ListDiscussionsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetDiscussionTreeQuery loads a discussion with its operations nested
type GetDiscussionTreeQuery struct {
	DiscussionID string `json:"discussionId" validate:"required"`
}

func (q GetDiscussionTreeQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetRootSummaryQuery maps the root operations of a discussion to their
// after-values. Results are cached until the discussion next changes.
type GetRootSummaryQuery struct {
	DiscussionID string `json:"discussionId" validate:"required"`
}

func (q GetRootSummaryQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// CacheKey implements bus.Cacheable. The ID is canonicalised so every
// spelling of it shares the entry that writes invalidate.
func (q GetRootSummaryQuery) CacheKey() string {
	if id, err := valueobjects.NewDiscussionIDFromString(q.DiscussionID); err == nil {
		return ports.RootNodesCacheKey(id.String())
	}
	return ports.RootNodesCacheKey(q.DiscussionID)
}
