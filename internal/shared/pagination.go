package shared

// Pagination describes one page of a listing response. Requests and
// aggregates default to 50 rows per page, matching the handlers.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes page metadata for a listing of total rows.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}
	totalPages := total / perPage
	if total%perPage != 0 {
		totalPages++
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
