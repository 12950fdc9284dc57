package model

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a zero-based page request.
type Page struct {
	Number int `json:"page"`
	Size   int `json:"size"`
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// PageResult is one page of items plus the total count.
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}
