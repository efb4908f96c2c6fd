package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/checksum"
	"github.com/starford/newsdesk/internal/editor"
	"github.com/starford/newsdesk/internal/models"
	"github.com/starford/newsdesk/internal/storage"
)

// Source yields the snapshot to export. *editor.Controller satisfies it.
type Source interface {
	Backup() (*editor.Snapshot, error)
}

// Result describes one export attempt.
type Result struct {
	Record  models.BackupRecord `json:"record"`
	Skipped bool                `json:"skipped"`
}

// Exporter writes snapshots to a storage.Provider and records them in a Ledger.
type Exporter struct {
	files   storage.Provider
	ledger  *Ledger
	source  Source
	keep    int
	now     func() time.Time
	logger  *slog.Logger
	observe func(outcome string)
}

// NewExporter creates an Exporter. keep > 0 prunes all but the newest keep
// exports after each write.
func NewExporter(files storage.Provider, ledger *Ledger, source Source, keep int, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		files:  files,
		ledger: ledger,
		source: source,
		keep:   keep,
		now:    time.Now,
		logger: logger,
	}
}

// Observe registers fn to receive the outcome of every export:
// "exported", "skipped" or "failed".
func (e *Exporter) Observe(fn func(outcome string)) {
	e.observe = fn
}

func (e *Exporter) report(outcome string) {
	if e.observe != nil {
		e.observe(outcome)
	}
}

// Name builds the export file name for a snapshot of p taken at t.
func Name(t time.Time, p string) string {
	return fmt.Sprintf("%s-%s", t.UTC().Format("20060102-150405"), path.Base(p))
}

// Export writes the current snapshot. Unless force is set, the export is
// skipped when its checksum equals the last export of the same source.
func (e *Exporter) Export(ctx context.Context, force bool) (*Result, error) {
	res, err := e.export(ctx, force)
	switch {
	case err != nil:
		e.report("failed")
	case res.Skipped:
		e.report("skipped")
	default:
		e.report("exported")
	}
	return res, err
}

func (e *Exporter) export(_ context.Context, force bool) (*Result, error) {
	snap, err := e.source.Backup()
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(snap.Data)
	source := snap.Branch + ":" + snap.Path

	if !force {
		last, err := e.ledger.Last(source)
		switch {
		case err == nil && last.Checksum == sum:
			e.logger.Debug("backup: unchanged, skipping", slog.String("source", source), slog.String("last", last.Name))
			return &Result{Record: *last, Skipped: true}, nil
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}

	rec := models.BackupRecord{
		Name:      Name(e.now(), snap.Path),
		Source:    source,
		Version:   snap.Version,
		Checksum:  sum,
		Size:      int64(len(snap.Data)),
		CreatedAt: e.now().UTC(),
	}
	if err := e.files.Write(rec.Name, snap.Data); err != nil {
		return nil, err
	}
	id, err := e.ledger.Record(rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	e.logger.Info("backup: exported",
		slog.String("name", rec.Name),
		slog.String("source", source),
		slog.Int64("size", rec.Size))

	if err := e.prune(); err != nil {
		e.logger.Warn("backup: prune failed", slog.String("error", err.Error()))
	}
	return &Result{Record: rec}, nil
}

// List returns the recorded exports, newest first.
func (e *Exporter) List(limit int) ([]models.BackupRecord, error) {
	return e.ledger.List(limit)
}

// Open returns the record and contents of the export named name.
func (e *Exporter) Open(name string) (*models.BackupRecord, []byte, error) {
	rec, err := e.ledger.Get(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := e.files.Read(rec.Name)
	if err != nil {
		return nil, nil, err
	}
	return rec, data, nil
}

func (e *Exporter) prune() error {
	if e.keep <= 0 {
		return nil
	}
	all, err := e.ledger.List(0)
	if err != nil {
		return err
	}
	if len(all) <= e.keep {
		return nil
	}
	for _, rec := range all[e.keep:] {
		if err := e.files.Delete(rec.Name); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		if err := e.ledger.Delete(rec.Name); err != nil {
			return err
		}
		e.logger.Debug("backup: pruned", slog.String("name", rec.Name))
	}
	return nil
}
