package common

import (
	"net/http"
	"strconv"
)

// maxPerPage caps list page sizes regardless of what the client asks for.
const maxPerPage = 100

// Pagination carries the page window echoed back on list responses.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Limit returns the page size as the int32 the list queries take.
func (p Pagination) Limit() int32 {
	return int32(p.PerPage)
}

// Offset converts the 1-based page window into a row offset.
func (p Pagination) Offset() int32 {
	return int32((p.Page - 1) * p.PerPage)
}

// ParsePagination reads the page and limit query parameters, falling back to
// page 1 and the given default size.
func ParsePagination(r *http.Request, defaultPerPage int) Pagination {
	p := Pagination{Page: 1, PerPage: defaultPerPage}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.PerPage = v
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}
