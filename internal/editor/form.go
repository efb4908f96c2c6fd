package editor

import (
	"strings"
	"sync"

	"github.com/starford/newsdesk/internal/models"
)

// Form carries the editable fields as the operator typed them. Categories
// are comma separated and OtherImages holds one URL per line.
type Form struct {
	Title           string `json:"title"`
	DescriptionFull string `json:"description_full"`
	Image           string `json:"image"`
	Categories      string `json:"categories"`
	Time            string `json:"time"`
	YouTubeURL      string `json:"youtube_url"`
	HTMLContent     string `json:"html_content"`
	OtherImages     string `json:"other_images"`
}

// FormOf renders a record into form values.
func FormOf(a models.Article) Form {
	return Form{
		Title:           a.Title,
		DescriptionFull: a.DescriptionFull,
		Image:           a.Image,
		Categories:      strings.Join(a.Categories, ", "),
		Time:            a.Time,
		YouTubeURL:      a.YouTubeURL,
		HTMLContent:     a.HTMLContent,
		OtherImages:     strings.Join(a.OtherImages, "\n"),
	}
}

// RichText is the rich-text body widget. It may become ready after the
// controller starts; until then the form's HTMLContent field is used.
type RichText interface {
	Ready() bool
	Content() string
	SetContent(html string)
}

// PlainBuffer is a RichText that holds the body as plain text. It is always
// ready, so an attached buffer takes precedence over the form's HTMLContent.
type PlainBuffer struct {
	mu   sync.Mutex
	html string
}

func (b *PlainBuffer) Ready() bool { return true }

func (b *PlainBuffer) Content() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.html
}

func (b *PlainBuffer) SetContent(html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.html = html
}
