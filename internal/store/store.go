// Package store manages the SQLite database holding local events, sync
// links, and the manual-conflict queue.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods. Event content and its sync
// metadata live on the same row, so a pull stamps both in one statement.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    local_id         TEXT PRIMARY KEY,
    user_id          TEXT NOT NULL,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    location         TEXT NOT NULL DEFAULT '',
    start_at         TEXT NOT NULL,
    end_at           TEXT NOT NULL DEFAULT '',
    all_day          INTEGER NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'pending',
    visible          INTEGER NOT NULL DEFAULT 1,
    confidence       REAL NOT NULL DEFAULT 0,
    deleted_at       TEXT NOT NULL DEFAULT '',
    remote_id        TEXT NOT NULL DEFAULT '',
    last_synced_at   TEXT NOT NULL DEFAULT '',
    local_updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_user_start ON events (user_id, start_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_remote ON events (user_id, remote_id) WHERE remote_id != '';

CREATE TABLE IF NOT EXISTS sync_links (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id           TEXT NOT NULL,
    local_id          TEXT NOT NULL,
    remote_id         TEXT NOT NULL,
    last_sync_hash    TEXT NOT NULL DEFAULT '',
    remote_updated_at TEXT NOT NULL DEFAULT '',
    last_synced_at    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_links_local  ON sync_links (user_id, local_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_links_remote ON sync_links (user_id, remote_id);

CREATE TABLE IF NOT EXISTS conflicts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         TEXT NOT NULL,
    local_id        TEXT NOT NULL,
    remote_id       TEXT NOT NULL,
    kind            TEXT NOT NULL,
    local_snapshot  TEXT NOT NULL DEFAULT '{}',
    remote_snapshot TEXT NOT NULL DEFAULT '{}',
    detected_at     TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_pair ON conflicts (user_id, local_id, remote_id);
`

// Store is the SQLite-backed repository for events, links, and conflicts.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the database:
// ~/.local/share/photocal/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "photocal", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scan helpers can be reused.
type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed width (UTC, zero-padded fraction) so stored
// timestamps order lexicographically; the status projection compares
// these columns with > in SQL. RFC3339Nano would trim trailing zeros
// and break that ordering across whole-second and fractional stamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
