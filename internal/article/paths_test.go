package article

import (
	"strings"
	"testing"
	"time"
)

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":          "hello-world",
		"  One   Piece -- 1100 ": "one-piece-1100",
		"أخبار الأنمي اليوم":     "أخبار-الأنمي-اليوم",
		"!!!":                    "article",
		"":                       "article",
		"Café Noir":              "caf-noir",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlug_Truncates(t *testing.T) {
	got := Slug(strings.Repeat("a", 300))
	if len([]rune(got)) != maxSlugRunes {
		t.Errorf("len = %d", len([]rune(got)))
	}
}

func TestImagePath(t *testing.T) {
	at := time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)
	got := ImagePath("/images/", at, "My Title", "cover.png", ".jpg")
	want := "images/2025/02/my-title-" + ContentID("My Title", "cover.png") + ".jpg"
	if got != want {
		t.Errorf("ImagePath = %q, want %q", got, want)
	}
}

func TestDailyPath(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Casablanca")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 UTC on Jan 31 is already Feb 1 in Casablanca (UTC+1).
	at := time.Date(2025, 1, 31, 23, 30, 0, 0, time.UTC)
	if got := DailyPath("data", at, loc); got != "data/2025/02/01-02.json" {
		t.Errorf("DailyPath = %q", got)
	}
}
