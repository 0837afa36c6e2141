package domain

type Page[T any] struct {
	Items           []T
	Page            int
	PageSize        int
	TotalCount      int
	TotalPages      int
	HasNextPage     bool
	HasPreviousPage bool
}

// NewPage derives the navigation fields from the 1-based page number, the
// page size and the total number of matching rows.
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:           items,
		Page:            page,
		PageSize:        pageSize,
		TotalCount:      total,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}
