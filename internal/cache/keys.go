package cache

import (
	"strconv"
	"time"

	"github.com/communityhub/events/internal/query"
)

// ListKey builds a stable cache key from a filter+sort combination. The
// version prefix lets a format change invalidate old entries implicitly.
func ListKey(f query.Filter, s query.Sort) string {
	cat := ""
	if f.CategorySet() {
		cat = string(f.Category)
	}

	fmtTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}

	return "events:list:v1" +
		":cat=" + cat +
		":from=" + fmtTime(f.StartDate) +
		":to=" + fmtTime(f.EndDate) +
		":active=" + strconv.FormatBool(f.OnlyActive) +
		":sort=" + string(s.Field) + "-" + string(s.Direction)
}
