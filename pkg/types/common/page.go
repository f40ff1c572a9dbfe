package common

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize defaults a missing page to 1 and a missing size to
// DefaultPageSize, and caps the size at MaxPageSize.
func (p Pagination) Normalize() Pagination {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	p.PageSize = min(p.PageSize, MaxPageSize)
	return p
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

type PageResponse[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPageResponse never returns nil Items, so the JSON is always an array.
func NewPageResponse[T any](items []T, total int64, p Pagination) PageResponse[T] {
	resp := PageResponse[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	if size := int64(p.PageSize); size > 0 {
		resp.TotalPages = int((total + size - 1) / size)
	}
	return resp
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

//Personal.AI order the ending
