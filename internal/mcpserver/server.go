// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the editing session as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/editor"
	"github.com/starford/newsdesk/internal/models"
)

const formatURI = "newsdesk://article-format"

// Server wraps the MCP server with the editing tools.
type Server struct {
	mcp *server.MCPServer
	ctl *editor.Controller
}

// New creates a new MCP server with all tools registered.
func New(ctl *editor.Controller, version string) *Server {
	s := &Server{ctl: ctl}

	s.mcp = server.NewMCPServer(
		"Newsdesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("load_collection",
		mcp.WithDescription("Load the collection file from the repository, replacing the working collection. "+
			"Empty arguments use the configured file, or today's daily file."),
		mcp.WithString("path", mcp.Description("Repository path of the JSON collection")),
		mcp.WithString("branch", mcp.Description("Branch to read from")),
	), s.loadCollection)

	s.mcp.AddTool(mcp.NewTool("list_articles",
		mcp.WithDescription("List articles of the working collection, optionally filtered by a "+
			"case-insensitive match on title or categories."),
		mcp.WithString("query", mcp.Description("Filter text (empty for all)")),
	), s.listArticles)

	s.mcp.AddTool(mcp.NewTool("read_article",
		mcp.WithDescription("Read one article as JSON by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("12-character article id")),
	), s.readArticle)

	s.mcp.AddTool(mcp.NewTool("save_article",
		mcp.WithDescription("Apply field values to an article in the working collection (local save). "+
			"Read the format contract first via the newsdesk://article-format resource."),
		mcp.WithString("id", mcp.Description("Article id; empty creates a new article")),
		mcp.WithString("title", mcp.Description("Title; blank keeps the current one")),
		mcp.WithString("description_full", mcp.Description("Summary text")),
		mcp.WithString("image", mcp.Description("Cover image URL")),
		mcp.WithString("categories", mcp.Description("Comma separated categories")),
		mcp.WithString("time", mcp.Description("Publication time")),
		mcp.WithString("youtube_url", mcp.Description("YouTube link")),
		mcp.WithString("html_content", mcp.Description("Body as HTML")),
		mcp.WithString("other_images", mcp.Description("Additional image URLs, one per line")),
	), s.saveArticle)

	s.mcp.AddTool(mcp.NewTool("commit_collection",
		mcp.WithDescription("Commit the whole working collection to the repository. Fails with a "+
			"conflict when the file changed since it was loaded."),
		mcp.WithString("path", mcp.Description("Target path (empty for the loaded file)")),
		mcp.WithString("branch", mcp.Description("Target branch")),
	), s.commitCollection)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image from a data URI or http(s) URL. It is converted to JPEG "+
			"and stored under the article's image path; the result carries the public url."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
		mcp.WithString("title", mcp.Description("Article title used for the path (empty for the selected article)")),
		mcp.WithString("filename", mcp.Description("Original file name (derived from the URL when empty)")),
	), s.uploadImage)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Article Format",
			mcp.WithResourceDescription("Collection file format and editing rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s (%s)", apperr.Message(err), apperr.Code(err)))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) loadCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctl.Load(ctx, req.GetString("path", ""), req.GetString("branch", "")); err != nil {
		return toolError(err), nil
	}
	return jsonResult(s.ctl.Status()), nil
}

type articleSummary struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Categories []string `json:"categories"`
	Time       string   `json:"time,omitempty"`
}

func (s *Server) listArticles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matches, _ := s.ctl.Search(req.GetString("query", ""))
	out := make([]articleSummary, 0, len(matches))
	for _, m := range matches {
		a := m.Article
		out = append(out, articleSummary{Index: m.Index, ID: a.ID, Title: a.Title, Categories: a.Categories, Time: a.Time})
	}
	return jsonResult(out), nil
}

func (s *Server) readArticle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, _, err := s.ctl.Find(id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(a), nil
}

func (s *Server) saveArticle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var current models.Article
	if id := req.GetString("id", ""); id != "" {
		_, i, err := s.ctl.Find(id)
		if err != nil {
			return toolError(err), nil
		}
		if _, err := s.ctl.Select(i); err != nil {
			return toolError(err), nil
		}
		current, _, _ = s.ctl.Selected()
	} else {
		current = s.ctl.NewArticle()
	}

	// Fields not passed keep their current values.
	base := editor.FormOf(current)
	form := editor.Form{
		Title:           req.GetString("title", ""),
		DescriptionFull: req.GetString("description_full", base.DescriptionFull),
		Image:           req.GetString("image", base.Image),
		Categories:      req.GetString("categories", base.Categories),
		Time:            req.GetString("time", base.Time),
		YouTubeURL:      req.GetString("youtube_url", base.YouTubeURL),
		HTMLContent:     req.GetString("html_content", base.HTMLContent),
		OtherImages:     req.GetString("other_images", base.OtherImages),
	}
	if err := s.ctl.LocalSave(form); err != nil {
		return toolError(err), nil
	}
	saved, _, err := s.ctl.Selected()
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(saved), nil
}

func (s *Server) commitCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctl.Commit(ctx, req.GetString("path", ""), req.GetString("branch", ""), nil); err != nil {
		return toolError(err), nil
	}
	return jsonResult(s.ctl.Status()), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ArticleFormatContract,
		},
	}, nil
}
