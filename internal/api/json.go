package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/newsdesk/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps the error taxonomy onto HTTP status codes. Failures of the
// remote store surface as 502 so they are not mistaken for this API's auth.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, apperr.ErrFormat), errors.Is(err, apperr.ErrTranscode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidSelection):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrAuth), errors.Is(err, apperr.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its taxonomy code. Conflict messages from the
// remote are passed through unchanged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, status, errResponse{Error: "internal error", Code: apperr.Code(err)})
		return
	}
	writeJSON(w, status, errResponse{Error: apperr.Message(err), Code: apperr.Code(err)})
}
