package pagination

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is a page-number request bound from query parameters.
type Pagination struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

// Normalize clamps page and page size into their valid ranges.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// PageInfo reports at least one page, even for an empty result.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	p = p.Normalize()
	totalPages := 1
	if total > int64(p.PageSize) {
		totalPages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return PageInfo{
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
