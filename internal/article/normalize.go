// Package article turns decoded JSON into canonical article records and
// manages their identity, timestamps and derived paths.
package article

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/models"
)

// Legacy field names accepted for the publication time, in priority order.
var timeAliases = []string{"time", "published", "published_at", "date", "pubDate"}

// Normalize coerces raw into a fully populated Article. Absent or invalid
// strings become "", non-arrays become empty lists and list entries are
// trimmed with blanks dropped. raw is never modified.
func Normalize(raw map[string]any) models.Article {
	return models.Article{
		ID:              text(raw["id"]),
		Title:           text(raw["title"]),
		DescriptionFull: firstText(raw, "description_full", "description_text"),
		Image:           text(raw["image"]),
		Categories:      firstList(raw, "categories"),
		Time:            firstText(raw, timeAliases...),
		YouTubeURL:      text(raw["youtube_url"]),
		HTMLContent:     text(raw["html_content"]),
		OtherImages:     firstList(raw, "other_images", "images_full", "images"),
		CreatedAt:       text(raw["created_at"]),
		UpdatedAt:       text(raw["updated_at"]),
	}
}

// Parse decodes a collection file. The top-level value must be an array of
// objects; anything else is an apperr.ErrFormat.
func Parse(data []byte) ([]models.Article, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var top any
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", apperr.ErrFormat, err)
	}
	items, ok := top.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value must be a JSON array", apperr.ErrFormat)
	}

	out := make([]models.Article, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", apperr.ErrFormat, i)
		}
		out = append(out, Normalize(obj))
	}
	return out, nil
}

// Marshal serializes records as a 2-space indented JSON array without HTML
// escaping. An empty collection is written as [].
func Marshal(records []models.Article) ([]byte, error) {
	out := make([]models.Article, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("article: marshal collection: %w", err)
	}
	return buf.Bytes(), nil
}

// SplitList splits s on sep, trims every entry and drops blanks.
func SplitList(s, sep string) []string {
	return cleanList(strings.Split(s, sep))
}

func cleanList(items []string) []string {
	return lo.Compact(lo.Map(items, func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func firstText(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := text(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstList(raw map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch items := raw[k].(type) {
		case []any:
			strs := lo.FilterMap(items, func(item any, _ int) (string, bool) {
				s, ok := item.(string)
				return s, ok
			})
			return cleanList(strs)
		case []string:
			return cleanList(items)
		}
	}
	return []string{}
}
