package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/things", nil)
	page := ParsePagination(r, 20)
	require.Equal(t, Pagination{Page: 1, PerPage: 20}, page)
	require.Equal(t, int32(20), page.Limit())
	require.Zero(t, page.Offset())
}

func TestParsePaginationWindow(t *testing.T) {
	r := httptest.NewRequest("GET", "/things?page=3&limit=50", nil)
	page := ParsePagination(r, 20)
	require.Equal(t, Pagination{Page: 3, PerPage: 50}, page)
	require.Equal(t, int32(100), page.Offset())
}

func TestParsePaginationIgnoresGarbageAndCaps(t *testing.T) {
	r := httptest.NewRequest("GET", "/things?page=-1&limit=junk", nil)
	require.Equal(t, Pagination{Page: 1, PerPage: 20}, ParsePagination(r, 20))

	r = httptest.NewRequest("GET", "/things?limit=5000", nil)
	require.Equal(t, 100, ParsePagination(r, 20).PerPage)
}
