package shared

import (
	"net/http"
	"strconv"
)

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination accepts limit/offset or page/perPage. limit and offset win
// when both styles are present.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0
	if v, ok := positiveInt(q.Get("perPage")); ok {
		limit = v
	}
	if v, ok := positiveInt(q.Get("limit")); ok {
		limit = v
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	if page, ok := positiveInt(q.Get("page")); ok {
		offset = (page - 1) * limit
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return Pagination{Limit: limit, Offset: offset}
}

func positiveInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
