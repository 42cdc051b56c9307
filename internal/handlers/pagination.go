package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxPageSize = 100

var errBadPage = errors.New("page and limit must be positive integers")

type page struct {
	limit  int
	offset int
}

// parsePage reads ?page= (1-based) and ?limit=, capping limit at maxPageSize.
func parsePage(c *gin.Context, defaultLimit int) (page, error) {
	p := 1
	limit := defaultLimit
	if raw := c.Query("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page{}, errBadPage
		}
		p = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return page{}, errBadPage
		}
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page{limit: limit, offset: (p - 1) * limit}, nil
}
