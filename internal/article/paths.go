package article

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugRunes = 120
	fallbackSlug = "article"
)

// Anything outside ASCII digits, lowercase letters and the Arabic block.
var slugStrip = regexp.MustCompile(`[^0-9a-z\x{0600}-\x{06FF}]+`)

// Slug derives a URL-safe name from a title.
func Slug(title string) string {
	s := cases.Lower(language.Und).String(norm.NFC.String(strings.TrimSpace(title)))
	s = strings.Trim(slugStrip.ReplaceAllString(s, "-"), "-")
	if r := []rune(s); len(r) > maxSlugRunes {
		s = strings.TrimRight(string(r[:maxSlugRunes]), "-")
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// ImagePath builds <folder>/<year>/<month>/<slug>-<hash12>.<ext> for an
// image uploaded under title. name identifies the source image.
func ImagePath(folder string, at time.Time, title, name, ext string) string {
	file := fmt.Sprintf("%s-%s.%s", Slug(title), ContentID(title, name), strings.TrimPrefix(ext, "."))
	return path.Join(strings.Trim(folder, "/"), at.Format("2006"), at.Format("01"), file)
}

// DailyPath returns <base>/YYYY/MM/DD-MM.json for the day t falls on in loc.
func DailyPath(base string, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return path.Join(strings.TrimSuffix(base, "/"), local.Format("2006"), local.Format("01"), local.Format("02-01")+".json")
}
