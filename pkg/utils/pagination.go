package utils

// MaxLimit caps page sizes requested by clients.
const MaxLimit = 200

// PaginationParams is a clamped page request
type PaginationParams struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PaginationMeta is returned next to every listing
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// NewPage clamps a client page request. A missing or non-positive limit
// becomes fallback; anything above MaxLimit is capped.
func NewPage(page, limit, fallback int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = fallback
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return PaginationParams{Page: page, Limit: limit}
}

// Offset returns the SQL offset of the page.
func (p PaginationParams) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta describes the page against total matching rows.
func (p PaginationParams) Meta(total int64) PaginationMeta {
	meta := PaginationMeta{Page: p.Page, Limit: p.Limit, TotalCount: total}
	if p.Limit > 0 {
		meta.TotalPages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return meta
}
