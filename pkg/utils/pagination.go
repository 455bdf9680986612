package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxPageSize = 100

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPaginationParams reads limit/offset query parameters, falling back to
// defaultLimit when limit is missing, malformed or above maxPageSize.
func GetPaginationParams(c echo.Context, defaultLimit int) PaginationParams {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > maxPageSize {
		limit = defaultLimit
	}

	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// Window returns the [start,end) bounds of a page over n items.
func Window(n, limit, offset int) (int, int) {
	start := offset
	if start > n {
		start = n
	}
	end := n
	if limit > 0 && start+limit < n {
		end = start + limit
	}
	return start, end
}
