package api

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/newsdesk/internal/editor"
	"github.com/starford/newsdesk/internal/models"
)

var (
	collectionPath = regexp.MustCompile(`^[^\s]+\.json$`)
	branchName     = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)
)

// noTraversal rejects paths with ".." segments.
var noTraversal = validation.By(func(v any) error {
	s, _ := v.(string)
	for _, seg := range strings.Split(s, "/") {
		if seg == ".." {
			return validation.NewError("validation_traversal", "must not contain '..'")
		}
	}
	return nil
})

// TargetRequest selects the collection file. Empty fields use the defaults.
type TargetRequest struct {
	Path   string `json:"path" example:"data/2025/03/01-03.json"`
	Branch string `json:"branch" example:"main"`
}

func (t TargetRequest) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Path, validation.Match(collectionPath).Error("must be a .json path"), noTraversal),
		validation.Field(&t.Branch, validation.Match(branchName)),
	)
}

// CommitRequest commits the collection, optionally applying form first.
type CommitRequest struct {
	TargetRequest
	Form *FormRequest `json:"form,omitempty"`
}

func (c CommitRequest) Validate() error {
	if err := c.TargetRequest.Validate(); err != nil {
		return err
	}
	if c.Form != nil {
		return c.Form.Validate()
	}
	return nil
}

// FormRequest is the editable form of the selected article.
type FormRequest editor.Form

func (f FormRequest) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Length(0, 500)),
		validation.Field(&f.YouTubeURL, is.URL),
	)
}

// ArticleItem is a record with its position in the collection.
type ArticleItem struct {
	Index   int            `json:"index" example:"0"`
	Article models.Article `json:"article"`
}

// ArticleListResponse lists matching records.
type ArticleListResponse struct {
	Articles []ArticleItem `json:"articles"`
	Total    int           `json:"total" example:"42"`
	Selected int           `json:"selected" example:"0"`
}

// SelectedResponse describes the selected record and its form values.
type SelectedResponse struct {
	Index   int            `json:"index"`
	Article models.Article `json:"article"`
	Form    editor.Form    `json:"form"`
}

// ImportResponse reports how many records an import added.
type ImportResponse struct {
	Added int `json:"added" example:"3"`
}
