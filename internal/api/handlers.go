package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/newsdesk/internal/backup"
	"github.com/starford/newsdesk/internal/editor"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	ctl     *editor.Controller
	backups *backup.Exporter
}

// NewHandler creates a new Handler. backups may be nil.
func NewHandler(ctl *editor.Controller, backups *backup.Exporter) *Handler {
	return &Handler{ctl: ctl, backups: backups}
}

// decode reads an optional JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if err := v.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error(), Code: "validation_error"})
		return false
	}
	return true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return 0, false
	}
	return i, true
}

// Load handles POST /api/session/load.
//
//	@Summary	Load the collection file, replacing the working collection
//	@Tags		session
//	@Accept		json
//	@Produce	json
//	@Param		body	body		TargetRequest	false	"File to load"
//	@Success	200		{object}	editor.Status
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/session/load [post]
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.ctl.Load(r.Context(), req.Path, req.Branch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// Status handles GET /api/session/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// Commit handles POST /api/session/commit.
//
//	@Summary	Commit the whole collection under optimistic concurrency
//	@Tags		session
//	@Accept		json
//	@Produce	json
//	@Param		body	body		CommitRequest	false	"Target and optional form"
//	@Success	200		{object}	editor.Status
//	@Failure	409		{object}	errResponse
//	@Failure	423		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/session/commit [post]
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if !decode(w, r, &req) {
		return
	}
	var form *editor.Form
	if req.Form != nil {
		f := editor.Form(*req.Form)
		form = &f
	}
	if err := h.ctl.Commit(r.Context(), req.Path, req.Branch, form); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// Snapshot handles GET /api/session/backup and downloads the retained
// snapshot as a file.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ctl.Backup()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Name))
	w.Header().Set("ETag", strconv.Quote(snap.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.Data)
}

// ListArticles handles GET /api/articles?q=.
//
//	@Summary	List articles, optionally filtered by title or category
//	@Tags		articles
//	@Produce	json
//	@Param		q	query		string	false	"Case-insensitive filter"
//	@Success	200	{object}	ArticleListResponse
//	@Security	BearerAuth
//	@Router		/articles [get]
func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	matches, total := h.ctl.Search(r.URL.Query().Get("q"))
	items := make([]ArticleItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, ArticleItem{Index: m.Index, Article: m.Article})
	}
	writeJSON(w, http.StatusOK, ArticleListResponse{
		Articles: items,
		Total:    total,
		Selected: h.ctl.Status().Selected,
	})
}

// Selected handles GET /api/articles/selected.
func (h *Handler) Selected(w http.ResponseWriter, r *http.Request) {
	a, i, err := h.ctl.Selected()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectedResponse{Index: i, Article: a, Form: editor.FormOf(a)})
}

// CreateArticle handles POST /api/articles.
func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	a := h.ctl.NewArticle()
	writeJSON(w, http.StatusCreated, SelectedResponse{Index: 0, Article: a, Form: editor.FormOf(a)})
}

// SaveSelected handles PUT /api/articles/selected.
//
//	@Summary	Apply form values to the selected article (local save)
//	@Tags		articles
//	@Accept		json
//	@Produce	json
//	@Param		body	body		FormRequest	true	"Form values"
//	@Success	200		{object}	SelectedResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/articles/selected [put]
func (h *Handler) SaveSelected(w http.ResponseWriter, r *http.Request) {
	var req FormRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.ctl.LocalSave(editor.Form(req)); err != nil {
		writeError(w, r, err)
		return
	}
	h.Selected(w, r)
}

// SelectArticle handles POST /api/articles/{index}/select.
func (h *Handler) SelectArticle(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	if _, err := h.ctl.Select(i); err != nil {
		writeError(w, r, err)
		return
	}
	h.Selected(w, r)
}

// DeleteArticle handles DELETE /api/articles/{index}.
func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	i, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := h.ctl.Delete(i); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/import with a JSON array body.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	added, err := h.ctl.Import(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Added: added})
}

// ListBackups handles GET /api/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.backups.List(limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": items})
}

// ExportBackup handles POST /api/backups. ?force=true exports even when the
// snapshot is unchanged since the last export.
func (h *Handler) ExportBackup(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	res, err := h.backups.Export(r.Context(), force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Skipped {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// DownloadBackup handles GET /api/backups/{name}.
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	rec, data, err := h.backups.Open(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
