package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/newsdesk/internal/backup"
	"github.com/starford/newsdesk/internal/editor"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// backups and sseHandler are optional; their routes are only mounted when set.
func NewRouter(ctl *editor.Controller, backups *backup.Exporter, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ctl, backups)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session.
	r.Post("/session/load", h.Load)
	r.Get("/session/status", h.Status)
	r.Post("/session/commit", h.Commit)
	r.Get("/session/backup", h.Snapshot)

	// Articles.
	r.Get("/articles", h.ListArticles)
	r.Post("/articles", h.CreateArticle)
	r.Get("/articles/selected", h.Selected)
	r.Put("/articles/selected", h.SaveSelected)
	r.Post("/articles/{index}/select", h.SelectArticle)
	r.Delete("/articles/{index}", h.DeleteArticle)
	r.Post("/import", h.Import)

	r.Post("/images", h.UploadImage)

	if backups != nil {
		r.Get("/backups", h.ListBackups)
		r.Post("/backups", h.ExportBackup)
		r.Get("/backups/{name}", h.DownloadBackup)
	}

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
