package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

const maxUploadBytes = 20 << 20

// safeName checks that name is a plain file name without separators or
// traversal.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(strings.ReplaceAll(name, `\`, "/"))
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// UploadImage handles POST /api/images (multipart/form-data, field "file"
// and optional "title"). The image is transcoded and stored under the
// image path derived from the title, or the selected article's title.
//
//	@Summary	Upload an image for an article
//	@Tags		images
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"Image"
//	@Param		title	formData	string	false	"Article title"
//	@Success	201		{object}	images.Result
//	@Success	200		{object}	images.Result	"Already stored"
//	@Failure	422		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/images [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	res, err := h.ctl.UploadImage(r.Context(), r.FormValue("title"), name, data)
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
