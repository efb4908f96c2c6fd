// Package backup exports collection snapshots to the local backup directory
// and keeps a SQLite ledger of what was written.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS backups (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	source     TEXT NOT NULL DEFAULT '',
	version    TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	size       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backups_source ON backups(source, id);
`

// Ledger records exported snapshots.
type Ledger struct {
	conn *sql.DB
}

// OpenLedger opens (or creates) the SQLite ledger and applies the schema.
func OpenLedger(dsn string) (*Ledger, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("backup: open ledger: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: ping ledger: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("backup: apply schema: %w", err)
	}
	return &Ledger{conn: conn}, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Record inserts r, replacing an entry with the same name, and returns its id.
func (l *Ledger) Record(r models.BackupRecord) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	var id int64
	err := l.conn.QueryRow(`
		INSERT INTO backups (name, source, version, checksum, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source     = excluded.source,
			version    = excluded.version,
			checksum   = excluded.checksum,
			size       = excluded.size,
			created_at = excluded.created_at
		RETURNING id
	`, r.Name, r.Source, r.Version, r.Checksum, r.Size, r.CreatedAt.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("backup: record %s: %w", r.Name, err)
	}
	return id, nil
}

// List returns up to limit records, newest first. A limit <= 0 returns all.
func (l *Ledger) List(limit int) ([]models.BackupRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.conn.Query(`
		SELECT id, name, source, version, checksum, size, created_at
		FROM backups ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	defer rows.Close()

	out := []models.BackupRecord{}
	for rows.Next() {
		var r models.BackupRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.Source, &r.Version, &r.Checksum, &r.Size, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("backup: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Last returns the newest record exported from source.
func (l *Ledger) Last(source string) (*models.BackupRecord, error) {
	var r models.BackupRecord
	err := l.conn.QueryRow(`
		SELECT id, name, source, version, checksum, size, created_at
		FROM backups WHERE source = ? ORDER BY id DESC LIMIT 1
	`, source).Scan(&r.ID, &r.Name, &r.Source, &r.Version, &r.Checksum, &r.Size, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no backup of %s", apperr.ErrNotFound, source)
	}
	if err != nil {
		return nil, fmt.Errorf("backup: last: %w", err)
	}
	return &r, nil
}

// Get returns the record named name.
func (l *Ledger) Get(name string) (*models.BackupRecord, error) {
	var r models.BackupRecord
	err := l.conn.QueryRow(`
		SELECT id, name, source, version, checksum, size, created_at
		FROM backups WHERE name = ?
	`, name).Scan(&r.ID, &r.Name, &r.Source, &r.Version, &r.Checksum, &r.Size, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: backup %s", apperr.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("backup: get: %w", err)
	}
	return &r, nil
}

// Delete removes the record named name.
func (l *Ledger) Delete(name string) error {
	if _, err := l.conn.Exec(`DELETE FROM backups WHERE name = ?`, name); err != nil {
		return fmt.Errorf("backup: delete %s: %w", name, err)
	}
	return nil
}
