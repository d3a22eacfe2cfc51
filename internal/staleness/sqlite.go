package staleness

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// SQLiteTracker stores markers in a single SQLite table.
type SQLiteTracker struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteTracker opens (or creates) the marker database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteTracker(dbPath string) (*SQLiteTracker, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create marker database directory").Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	t := &SQLiteTracker{db: db}
	if err := t.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return t, nil
}

func (t *SQLiteTracker) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS markers (
		platform TEXT NOT NULL,
		profile TEXT NOT NULL,
		recorded_at INTEGER NOT NULL,
		PRIMARY KEY (platform, profile)
	);
	`
	_, err := t.db.Exec(schema)
	return err
}

// Lookup returns the marker row for key.
func (t *SQLiteTracker) Lookup(ctx context.Context, key Key) (Marker, bool, error) {
	if err := key.Validate(); err != nil {
		return Marker{}, false, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	var nanos int64
	err := t.db.QueryRowContext(ctx,
		"SELECT recorded_at FROM markers WHERE platform = ? AND profile = ?",
		string(key.Platform), key.Profile,
	).Scan(&nanos)
	if err == sql.ErrNoRows {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("query marker: %w", err)
	}
	return Marker{Key: key, RecordedAt: time.Unix(0, nanos).UTC()}, true, nil
}

// IsStale reports whether no marker row exists for key.
func (t *SQLiteTracker) IsStale(ctx context.Context, key Key) (bool, error) {
	return isStale(ctx, t, key)
}

// RecordSuccess upserts the marker row for key.
func (t *SQLiteTracker) RecordSuccess(ctx context.Context, key Key, at time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO markers (platform, profile, recorded_at) VALUES (?, ?, ?)
		 ON CONFLICT(platform, profile) DO UPDATE SET recorded_at = excluded.recorded_at`,
		string(key.Platform), key.Profile, at.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert marker: %w", err)
	}
	return nil
}

// List returns all marker rows.
func (t *SQLiteTracker) List(ctx context.Context) ([]Marker, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows, err := t.db.QueryContext(ctx,
		"SELECT platform, profile, recorded_at FROM markers ORDER BY platform, profile")
	if err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var markers []Marker
	for rows.Next() {
		var p, profile string
		var nanos int64
		if err := rows.Scan(&p, &profile, &nanos); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		markers = append(markers, Marker{
			Key:        Key{Platform: platform.Platform(p), Profile: profile},
			RecordedAt: time.Unix(0, nanos).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return markers, nil
}

// Close closes the database connection.
func (t *SQLiteTracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.Close()
}
