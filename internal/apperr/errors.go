// Package apperr defines the error taxonomy shared by the editor, the remote
// stores and the HTTP surface.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuth             = errors.New("authentication failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrFormat           = errors.New("format error")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrTranscode        = errors.New("transcode failed")
	ErrRateLimit        = errors.New("rate limited")
	ErrNetwork          = errors.New("network error")
	ErrBusy             = errors.New("operation already in progress")
	ErrAlreadyExists    = errors.New("already exists")
)

// ConflictError reports a write rejected because the remote version moved.
// Message carries the remote's own explanation verbatim.
type ConflictError struct {
	Path     string
	Expected string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conflict on %s: %s", e.Path, e.Message)
	}
	if e.Expected == "" {
		return fmt.Sprintf("conflict on %s: file already exists", e.Path)
	}
	return fmt.Sprintf("conflict on %s: version %s is stale", e.Path, e.Expected)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Code returns a short machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrFormat):
		return "format_error"
	case errors.Is(err, ErrInvalidSelection):
		return "invalid_selection"
	case errors.Is(err, ErrTranscode):
		return "transcode_error"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	default:
		return "internal"
	}
}

// Message renders err as a single status line for the operator.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce *ConflictError
	switch {
	case errors.As(err, &ce):
		return "Conflict: " + ce.Error()
	case errors.Is(err, ErrAuth):
		return "Authentication failed: check the access token (" + err.Error() + ")"
	case errors.Is(err, ErrNotFound):
		return "Not found: " + err.Error()
	case errors.Is(err, ErrFormat):
		return "Invalid file format: " + err.Error()
	case errors.Is(err, ErrInvalidSelection):
		return "Select an article first"
	case errors.Is(err, ErrTranscode):
		return "Image conversion failed: " + err.Error()
	case errors.Is(err, ErrRateLimit):
		return "Rate limited by the remote, try again later"
	case errors.Is(err, ErrNetwork):
		return "Network error: " + err.Error()
	case errors.Is(err, ErrBusy):
		return "Another load or commit is still running"
	default:
		return "Error: " + err.Error()
	}
}
