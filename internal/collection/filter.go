package collection

import (
	"strings"

	"github.com/starford/newsdesk/internal/models"
)

// Filter returns, in collection order, the indices of records whose title or
// comma-joined categories contain query, ignoring case. A blank query
// matches every record.
func Filter(records []models.Article, query string) []int {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]int, 0, len(records))
	for i, r := range records {
		if q == "" || matches(r, q) {
			out = append(out, i)
		}
	}
	return out
}

func matches(r models.Article, q string) bool {
	return strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(strings.Join(r.Categories, ", ")), q)
}
