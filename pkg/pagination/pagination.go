// Package pagination provides offset pagination and sorting helpers for list endpoints.
package pagination

import "strings"

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// Pagination holds offset pagination parameters.
type Pagination struct {
	Skip int
	Take int
}

// New creates a Pagination from toSkip/toTake query values with defaults applied.
func New(skip, take int) Pagination {
	if skip < 0 {
		skip = 0
	}
	if take < 1 {
		take = DefaultPerPage
	}
	if take > MaxPerPage {
		take = MaxPerPage
	}
	return Pagination{Skip: skip, Take: take}
}

// FromPage creates a Pagination for a 1-based page number.
func FromPage(page, perPage int) Pagination {
	if page < 1 {
		page = 1
	}
	p := New(0, perPage)
	p.Skip = (page - 1) * p.Take
	return p
}

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	return p.Skip
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	return p.Take
}

// CurrentPage returns the 1-based page the offset falls on.
func (p Pagination) CurrentPage() int {
	return p.Skip/p.Take + 1
}

// Meta is the pagination block returned next to list data.
type Meta struct {
	Total       int64 `json:"total"`
	PageCount   int   `json:"pageCount"`
	CurrentPage int   `json:"currentPage"`
	PerPage     int   `json:"perPage"`
	From        int64 `json:"from"`
	To          int64 `json:"to"`
}

// NewMeta computes the pagination block for total matching rows.
// From and To are 1-based and inclusive; both are zero when the page is empty.
func NewMeta(total int64, p Pagination) Meta {
	pageCount := int(total / int64(p.Take))
	if total%int64(p.Take) > 0 {
		pageCount++
	}

	meta := Meta{
		Total:       total,
		PageCount:   pageCount,
		CurrentPage: p.CurrentPage(),
		PerPage:     p.Take,
	}
	if total == 0 || int64(p.Skip) >= total {
		return meta
	}

	meta.From = int64(p.Skip) + 1
	meta.To = min(int64(p.Skip+p.Take), total)
	return meta
}

// Page represents a paginated result set.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// NewPage creates a Page, never returning a nil data slice.
func NewPage[T any](data []T, total int64, p Pagination) Page[T] {
	if data == nil {
		data = make([]T, 0)
	}
	return Page[T]{
		Data:       data,
		Pagination: NewMeta(total, p),
	}
}

// SortOrder represents the sort direction.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Sort is a validated ORDER BY clause.
type Sort struct {
	Column string
	Order  SortOrder
}

// ParseSort resolves a user-facing field and direction against a whitelist.
// allowed maps request field names to database columns. Unknown fields fall back.
func ParseSort(field, direction string, allowed map[string]string, fallback Sort) Sort {
	column, ok := allowed[field]
	if !ok {
		return fallback
	}

	order := SortAsc
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		order = SortDesc
	}
	return Sort{Column: column, Order: order}
}

// SQL returns the ORDER BY clause without the "ORDER BY" prefix.
func (s Sort) SQL() string {
	return s.Column + " " + string(s.Order)
}
