package shared

import (
	"math"
	"strings"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// SortKey resolves a caller-supplied sort expression against an allow-list of
// column names. Arbitrary field names never reach the query builder; anything
// not on the list falls back to def. A leading '-' requests descending order.
func SortKey(raw, def string, allowed []string) (column string, desc bool) {
	column = def
	desc = true
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return column, desc
	}
	requestedDesc := false
	if strings.HasPrefix(raw, "-") {
		requestedDesc = true
		raw = raw[1:]
	}
	for _, a := range allowed {
		if raw == a {
			return a, requestedDesc
		}
	}
	return column, desc
}
