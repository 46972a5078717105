package user

import "math"

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
	MaxPageSize       = 20

	// MaxPageNumber keeps Offset within int for any page size
	MaxPageNumber = math.MaxInt/MaxPageSize + 1
)

// PageRequest is a normalized 1-based page selector
type PageRequest struct {
	PageNumber int
	PageSize   int
}

// NewPageRequest clamps the page number to [1, MaxPageNumber] and the size
// to [1, MaxPageSize]
func NewPageRequest(pageNumber, pageSize int) PageRequest {
	return PageRequest{
		PageNumber: min(max(pageNumber, 1), MaxPageNumber),
		PageSize:   min(max(pageSize, 1), MaxPageSize),
	}
}

// Offset is the number of items preceding the page
func (p PageRequest) Offset() int {
	return (p.PageNumber - 1) * p.PageSize
}

// Page is one slice of the ordered user list
type Page struct {
	Items       []*User
	CurrentPage int
	PageSize    int
	TotalCount  int64
	TotalPages  int
}

// NewPage computes the page totals for items fetched with req
func NewPage(items []*User, req PageRequest, totalCount int64) *Page {
	totalPages := int((totalCount + int64(req.PageSize) - 1) / int64(req.PageSize))
	if items == nil {
		items = []*User{}
	}
	return &Page{
		Items:       items,
		CurrentPage: req.PageNumber,
		PageSize:    req.PageSize,
		TotalCount:  totalCount,
		TotalPages:  totalPages,
	}
}

func (p *Page) HasPrevious() bool {
	return p.CurrentPage > 1
}

func (p *Page) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}
