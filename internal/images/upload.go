package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/article"
)

// Sink stores image bytes under a key.
type Sink interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(key string) string
}

// UploaderConfig configures an Uploader.
type UploaderConfig struct {
	Folder  string
	Quality int
}

// Uploader transcodes images and stores them at
// <folder>/<year>/<month>/<slug>-<hash12>.jpg.
type Uploader struct {
	sink   Sink
	tc     *Transcoder
	cfg    UploaderConfig
	now    func() time.Time
	logger *slog.Logger
}

// Result describes a stored image.
type Result struct {
	Path    string `json:"path"`
	URL     string `json:"url"`
	Size    int    `json:"size"`
	Skipped bool   `json:"skipped"`
}

// NewUploader wires a transcoder to a sink. A nil now uses time.Now.
func NewUploader(sink Sink, tc *Transcoder, cfg UploaderConfig, now func() time.Time, logger *slog.Logger) *Uploader {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{sink: sink, tc: tc, cfg: cfg, now: now, logger: logger}
}

// Upload stores data as the image named name for an article titled title.
// When the target path already exists nothing is transcoded or written.
func (u *Uploader) Upload(ctx context.Context, title, name string, data []byte) (*Result, error) {
	key := article.ImagePath(u.cfg.Folder, u.now(), title, name, Extension)

	exists, err := u.sink.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("images: check %s: %w", key, err)
	}
	if exists {
		u.logger.Info("images: already stored", slog.String("path", key))
		return &Result{Path: key, URL: u.sink.URL(key), Skipped: true}, nil
	}

	out, err := u.tc.Encode(data, u.cfg.Quality)
	if err != nil {
		return nil, err
	}
	if err := u.sink.Put(ctx, key, out, ContentType); err != nil {
		if !errors.Is(err, apperr.ErrAlreadyExists) {
			return nil, fmt.Errorf("images: store %s: %w", key, err)
		}
		u.logger.Info("images: stored concurrently", slog.String("path", key))
	}
	u.logger.Info("images: stored",
		slog.String("path", key),
		slog.Int("source_bytes", len(data)),
		slog.Int("stored_bytes", len(out)))
	return &Result{Path: key, URL: u.sink.URL(key), Size: len(out)}, nil
}
