package editor

import (
	"log/slog"
	"time"

	"github.com/starford/newsdesk/internal/images"
)

// Observer receives operation outcomes, typically for metrics.
type Observer interface {
	ObserveOperation(op, code string, took time.Duration)
	SetCollectionSize(n int)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source for timestamps and snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithObserver registers an operation observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithNotifier registers a callback invoked after every status change.
func WithNotifier(fn func(Status)) Option {
	return func(c *Controller) {
		c.notify = fn
	}
}

// WithRichText attaches a rich-text widget.
func WithRichText(rt RichText) Option {
	return func(c *Controller) {
		c.richText = rt
	}
}

// WithUploader enables image uploads.
func WithUploader(u *images.Uploader) Option {
	return func(c *Controller) {
		c.uploader = u
	}
}
