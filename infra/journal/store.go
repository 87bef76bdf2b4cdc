// Package journal persists monitor events to a local SQLite database so
// status transitions and actions survive daemon restarts and can be listed
// by operators.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"warden"

	_ "modernc.org/sqlite"
)

// DefaultKeep is how many journal rows Prune retains.
const DefaultKeep = 10000

// Store is an append-only event journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	container_id TEXT NOT NULL,
	container_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	detail TEXT NOT NULL,
	at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_container ON events(container_id);
CREATE INDEX IF NOT EXISTS idx_events_at ON events(at)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one event.
func (s *Store) Append(ctx context.Context, ev warden.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (container_id, container_name, kind, detail, at) VALUES (?, ?, ?, ?, ?)`,
		ev.ContainerID, ev.ContainerName, ev.Kind.String(), ev.Detail,
		ev.At.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append journal event: %w", err)
	}
	return nil
}

// Entry is one journal row.
type Entry struct {
	ID            int64
	ContainerID   string
	ContainerName string
	Kind          string
	Detail        string
	At            time.Time
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, container_id, container_name, kind, detail, at
FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal events: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var at string
		if err := rows.Scan(&e.ID, &e.ContainerID, &e.ContainerName, &e.Kind, &e.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal events: %w", err)
	}
	return out, nil
}

// Prune deletes everything but the newest keep rows.
func (s *Store) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		keep = DefaultKeep
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM events WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	return nil
}

// Sink adapts the Store to monitor.EventSink. Failures are logged, never
// propagated — the journal must not take the monitor down.
type Sink struct {
	Store *Store
}

func (s Sink) Emit(ev warden.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Store.Append(ctx, ev); err != nil {
		slog.Warn("journal append failed", "err", err)
	}
}
