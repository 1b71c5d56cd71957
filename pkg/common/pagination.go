package common

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize fills defaults and clamps the page size to maxSize.
func (p PaginationParams) Normalize(defaultSize, maxSize int) PaginationParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	if p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	return p
}

// CalculateOffset calculates the offset for store queries
func (p PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculateTotalPages calculates total number of pages
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}

// PaginationInfo contains pagination details
type PaginationInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// BuildPaginationMeta builds pagination metadata
func BuildPaginationMeta(page, pageSize, total int) *PaginationInfo {
	totalPages := CalculateTotalPages(total, pageSize)

	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// PaginatedResult represents a paginated result
type PaginatedResult[T any] struct {
	Items      []T             `json:"items"`
	Pagination *PaginationInfo `json:"pagination"`
}

// NewPaginatedResult creates a new paginated result
func NewPaginatedResult[T any](items []T, page, pageSize, total int) *PaginatedResult[T] {
	if items == nil {
		items = []T{}
	}
	return &PaginatedResult[T]{
		Items:      items,
		Pagination: BuildPaginationMeta(page, pageSize, total),
	}
}
