package rest

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

const (
	MAX_PAGE_SIZE     = 100
	DEFAULT_PAGE_SIZE = 20
)

// PageQueryParams holds the pagination of list endpoints
type PageQueryParams struct {
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// Validate rejects negative pages
func (p *PageQueryParams) Validate() error {
	if p.Limit < 1 {
		return fmt.Errorf("limit must be positive")
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

// ParsePageQuery parses and caps limit and offset
func ParsePageQuery(c *gin.Context) (*PageQueryParams, error) {
	params := PageQueryParams{Limit: DEFAULT_PAGE_SIZE}
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Limit > MAX_PAGE_SIZE {
		params.Limit = MAX_PAGE_SIZE
	}

	return &params, nil
}
