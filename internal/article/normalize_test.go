package article

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/models"
)

func TestNormalize_Defaults(t *testing.T) {
	a := Normalize(map[string]any{})
	if a.Categories == nil || a.OtherImages == nil {
		t.Fatal("list fields must be non-nil")
	}
	if a.Title != "" || a.ID != "" || a.Time != "" {
		t.Errorf("unexpected values: %+v", a)
	}
}

func TestNormalize_CoercesShapes(t *testing.T) {
	raw := map[string]any{
		"title":        "Hello",
		"image":        nil,
		"categories":   "not a list",
		"other_images": []any{" a.jpg ", "", "   ", 42, "b.jpg"},
		"youtube_url":  map[string]any{"x": 1},
	}
	a := Normalize(raw)
	if a.Title != "Hello" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Image != "" || a.YouTubeURL != "" {
		t.Errorf("invalid strings should default: %+v", a)
	}
	if len(a.Categories) != 0 {
		t.Errorf("categories = %v, want empty", a.Categories)
	}
	if !reflect.DeepEqual(a.OtherImages, []string{"a.jpg", "b.jpg"}) {
		t.Errorf("other_images = %v", a.OtherImages)
	}
}

func TestNormalize_ScalarsAsText(t *testing.T) {
	records, err := Parse([]byte(`[{"title":true,"time":1700000000,"description_full":false,"image":2.5}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a := records[0]
	if a.Title != "true" || a.DescriptionFull != "false" || a.Time != "1700000000" || a.Image != "2.5" {
		t.Errorf("scalars = %+v", a)
	}
}

func TestNormalize_TimeAliases(t *testing.T) {
	cases := []struct {
		raw  map[string]any
		want string
	}{
		{map[string]any{"time": "t", "published": "p"}, "t"},
		{map[string]any{"time": "", "published": "p"}, "p"},
		{map[string]any{"published_at": "pa", "date": "d"}, "pa"},
		{map[string]any{"date": "d"}, "d"},
		{map[string]any{"pubDate": "pd"}, "pd"},
		{map[string]any{"time": json.Number("1700000000")}, "1700000000"},
	}
	for _, c := range cases {
		if got := Normalize(c.raw).Time; got != c.want {
			t.Errorf("Normalize(%v).Time = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalize_ScraperFields(t *testing.T) {
	a := Normalize(map[string]any{
		"description_text": "body",
		"images_full":      []any{"x.jpg"},
		"images":           []any{"y.jpg"},
	})
	if a.DescriptionFull != "body" {
		t.Errorf("description_full = %q", a.DescriptionFull)
	}
	if !reflect.DeepEqual(a.OtherImages, []string{"x.jpg"}) {
		t.Errorf("other_images = %v", a.OtherImages)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	list := []any{" a ", ""}
	raw := map[string]any{"categories": list, "title": "x"}
	_ = Normalize(raw)
	if list[0] != " a " || len(raw) != 2 {
		t.Errorf("input mutated: %v", raw)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first := Normalize(map[string]any{
		"title":      "T",
		"categories": []any{"x", " y "},
		"published":  "yesterday",
	})
	data, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if second := Normalize(raw); !reflect.DeepEqual(first, second) {
		t.Errorf("not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestParse_RequiresArray(t *testing.T) {
	for _, in := range []string{`{"title":"x"}`, `null`, `"s"`, `not json`, `[1,2]`} {
		_, err := Parse([]byte(in))
		if !errors.Is(err, apperr.ErrFormat) {
			t.Errorf("Parse(%s) err = %v, want ErrFormat", in, err)
		}
	}
}

func TestMarshalParse_RoundTrip(t *testing.T) {
	as := NewAssigner(nil)
	records := []models.Article{
		Normalize(map[string]any{"title": "A <b>&</b>", "html_content": "<p>مرحبا</p>"}),
		Normalize(map[string]any{"title": "B", "categories": []any{"x", "y"}}),
	}
	for i := range records {
		as.Assign(&records[i], false)
	}

	data, err := Marshal(records)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), "\n  {") {
		t.Errorf("expected 2-space indentation:\n%s", data)
	}
	if !strings.Contains(string(data), "<p>مرحبا</p>") {
		t.Errorf("expected unescaped HTML and UTF-8:\n%s", data)
	}

	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(records, back) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", records, back)
	}
}

func TestMarshal_Empty(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Marshal(nil) = %q", data)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" news, ,anime ,,", ",")
	if !reflect.DeepEqual(got, []string{"news", "anime"}) {
		t.Errorf("SplitList = %v", got)
	}
}
