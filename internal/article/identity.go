package article

import (
	"strings"
	"time"

	"github.com/starford/newsdesk/internal/checksum"
	"github.com/starford/newsdesk/internal/models"
)

// TimeLayout is ISO-8601 in UTC with fixed millisecond width.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Fingerprint is the dedup key of a record: trimmed title and image joined by "|".
func Fingerprint(title, image string) string {
	return strings.TrimSpace(title) + "|" + strings.TrimSpace(image)
}

// ContentID derives the stable identifier for a title and image pair.
func ContentID(title, image string) string {
	return checksum.ShortID(Fingerprint(title, image))
}

// Assigner fills in identifiers and timestamps.
type Assigner struct {
	now func() time.Time
}

// NewAssigner returns an Assigner reading the clock from now.
// A nil now uses time.Now.
func NewAssigner(now func() time.Time) *Assigner {
	if now == nil {
		now = time.Now
	}
	return &Assigner{now: now}
}

// Assign sets a missing id and created_at. With refreshUpdatedAt the
// updated_at field moves to now; otherwise it is only filled when empty.
// Timestamps are compared as instants, so any RFC 3339 offset is accepted.
// A refreshed updated_at never moves behind a parseable updated_at or
// created_at; values that do not parse are replaced by now.
func (as *Assigner) Assign(a *models.Article, refreshUpdatedAt bool) {
	if a.ID == "" {
		a.ID = ContentID(a.Title, a.Image)
	}
	now := as.now().UTC()
	if a.CreatedAt == "" {
		a.CreatedAt = now.Format(TimeLayout)
	}
	switch {
	case refreshUpdatedAt:
		a.UpdatedAt = latest(now, a.UpdatedAt, a.CreatedAt).Format(TimeLayout)
	case a.UpdatedAt == "":
		a.UpdatedAt = a.CreatedAt
	}
}

// latest returns the latest of now and the parseable stamps, in UTC.
func latest(now time.Time, stamps ...string) time.Time {
	out := now
	for _, s := range stamps {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			continue
		}
		if t = t.UTC(); t.After(out) {
			out = t
		}
	}
	return out
}
