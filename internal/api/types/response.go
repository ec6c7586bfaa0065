// internal/api/types/response.go
package types

// PaginatedResponse is a page of T plus the total number of matching rows.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

// ListResponse wraps an unpaginated collection.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
