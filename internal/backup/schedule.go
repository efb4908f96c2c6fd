package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/starford/newsdesk/internal/apperr"
)

// Scheduler runs unforced exports on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	exporter *Exporter
	logger   *slog.Logger
}

// NewScheduler parses spec (standard five-field cron syntax or a
// descriptor such as "@hourly") and registers the export job.
func NewScheduler(spec string, exporter *Exporter, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{cron: cron.New(), exporter: exporter, logger: logger}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("backup: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running export to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("backup: scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick() {
	res, err := s.exporter.Export(context.Background(), false)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		s.logger.Debug("backup: nothing loaded yet")
	case err != nil:
		s.logger.Error("backup: scheduled export failed", slog.String("error", err.Error()))
	case !res.Skipped:
		s.logger.Info("backup: scheduled export done", slog.String("name", res.Record.Name))
	}
}
