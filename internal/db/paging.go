package db

import "fmt"

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// PagingParams is a 1-based page request. Out of range values are clamped,
// so flags and request fields can be passed through unchecked.
type PagingParams struct {
	Page    int
	PerPage int
}

// Normalize returns p with Page >= 1 and PerPage in [1, MaxPerPage].
func (p PagingParams) Normalize() PagingParams {
	if p.Page < 1 {
		p.Page = 1
	}
	switch {
	case p.PerPage < 1:
		p.PerPage = DefaultPerPage
	case p.PerPage > MaxPerPage:
		p.PerPage = MaxPerPage
	}
	return p
}

func (p PagingParams) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PerPage
}

func (p PagingParams) Limit() int {
	return p.Normalize().PerPage
}

// PagedResult is one page of rows plus the count of all rows.
type PagedResult[T any] struct {
	Items       []T
	TotalItems  int
	CurrentPage int
	PerPage     int
}

func NewPagedResult[T any](items []T, total int, p PagingParams) PagedResult[T] {
	n := p.Normalize()
	return PagedResult[T]{
		Items:       items,
		TotalItems:  total,
		CurrentPage: n.Page,
		PerPage:     n.PerPage,
	}
}

// TotalPages is at least 1, so an empty listing reads "page 1 of 1".
func (r PagedResult[T]) TotalPages() int {
	if r.TotalItems == 0 || r.PerPage == 0 {
		return 1
	}
	return (r.TotalItems + r.PerPage - 1) / r.PerPage
}

func (r PagedResult[T]) HasNext() bool {
	return r.CurrentPage < r.TotalPages()
}

// Footer renders "page 2 of 5 (42 conversations)" for listings.
func (r PagedResult[T]) Footer(noun string) string {
	return fmt.Sprintf("page %d of %d (%d %s)", r.CurrentPage, r.TotalPages(), r.TotalItems, noun)
}
