package staleness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

const stampExt = ".stamp"

// FileTracker stores one "<platform>-<profile>.stamp" file per marker. Each
// file holds a single RFC 3339 timestamp line.
type FileTracker struct {
	dir string
	mu  sync.RWMutex
}

// NewFileTracker creates a tracker rooted at dir, creating it if needed.
func NewFileTracker(dir string) (*FileTracker, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create markers directory").
			WithContext("dir", dir).
			Build()
	}
	return &FileTracker{dir: dir}, nil
}

func (t *FileTracker) path(key Key) string {
	return filepath.Join(t.dir, key.String()+stampExt)
}

// Lookup reads the marker file for key.
func (t *FileTracker) Lookup(ctx context.Context, key Key) (Marker, bool, error) {
	if err := key.Validate(); err != nil {
		return Marker{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Marker{}, false, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	data, err := os.ReadFile(t.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Marker{}, false, nil
		}
		return Marker{}, false, errors.WrapError(err, errors.CategoryFileSystem, "failed to read marker").
			WithContext("key", key.String()).
			Build()
	}

	at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		// A corrupt stamp is treated as absent so the next success rewrites it.
		slog.Warn("Ignoring unreadable staleness marker", logfields.Path(t.path(key)), logfields.Error(err))
		return Marker{}, false, nil
	}
	return Marker{Key: key, RecordedAt: at}, true, nil
}

// IsStale reports whether no marker exists for key.
func (t *FileTracker) IsStale(ctx context.Context, key Key) (bool, error) {
	return isStale(ctx, t, key)
}

// RecordSuccess atomically writes the marker for key.
func (t *FileTracker) RecordSuccess(ctx context.Context, key Key, at time.Time) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	target := t.path(key)
	tmp, err := os.CreateTemp(t.dir, "."+key.String()+"-*.tmp")
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create marker").Build()
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := fmt.Fprintln(tmp, at.UTC().Format(time.RFC3339Nano)); err != nil {
		_ = tmp.Close()
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write marker").Build()
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write marker").Build()
	}
	if err := os.Rename(tmpName, target); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to replace marker").
			WithContext("path", target).
			Build()
	}

	slog.Debug("Recorded staleness marker", logfields.Path(target))
	return nil
}

// List returns every readable marker in the directory.
func (t *FileTracker) List(ctx context.Context) ([]Marker, error) {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list markers").Build()
	}

	var markers []Marker
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, stampExt) {
			continue
		}
		p, profile, ok := strings.Cut(strings.TrimSuffix(name, stampExt), "-")
		if !ok {
			continue
		}
		m, found, err := t.Lookup(ctx, Key{Platform: platform.Platform(p), Profile: profile})
		if err != nil {
			slog.Debug("Skipping marker file", logfields.Path(name), logfields.Error(err))
			continue
		}
		if found {
			markers = append(markers, m)
		}
	}
	sort.Slice(markers, func(i, j int) bool { return markerLess(markers[i], markers[j]) })
	return markers, nil
}

// Close is a no-op for file markers.
func (t *FileTracker) Close() error { return nil }
