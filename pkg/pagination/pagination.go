package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit inside int32 for every allowed limit.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Params holds the page window requested by the client.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// FromContext reads ?page= (1-based, default 1) and ?limit= (default 20,
// capped at 100). Invalid values fall back to the defaults.
func FromContext(c echo.Context) Params {
	return New(atoi(c.QueryParam("page")), atoi(c.QueryParam("limit")))
}

// New normalizes a page/limit pair.
func New(page, limit int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return Params{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Response is the envelope of every list endpoint.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	Limit   int         `json:"limit"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
}

// NewResponse wraps one page of items. A nil slice is rendered as [].
func NewResponse[T any](items []T, total int, p Params) *Response {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return &Response{
		Success: true,
		Data:    items,
		Total:   total,
		Page:    p.Page,
		Limit:   p.Limit,
		Pages:   pages,
		HasMore: p.Offset+len(items) < total,
	}
}
