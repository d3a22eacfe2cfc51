// Package staleness remembers, per (platform, profile), when data
// preprocessing last succeeded.
//
// A key is stale when no marker exists for it. Markers are written only after
// preprocessing succeeds, overwritten on every later success, and never removed
// automatically. They are not tied to the content of the source data, so a
// marker can report fresh data after the inputs changed.
package staleness

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// Key identifies a marker.
type Key struct {
	Platform platform.Platform
	Profile  string
}

func (k Key) String() string { return fmt.Sprintf("%s-%s", k.Platform, k.Profile) }

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Validate rejects keys that cannot be stored safely.
func (k Key) Validate() error {
	if !k.Platform.Valid() {
		return errors.ValidationError(fmt.Sprintf("invalid marker platform %q", k.Platform)).Build()
	}
	if !profilePattern.MatchString(k.Profile) {
		return errors.ValidationError(fmt.Sprintf("invalid profile name %q", k.Profile)).
			WithContext("profile", k.Profile).
			Build()
	}
	return nil
}

// Marker records the last successful preprocessing run for a key.
type Marker struct {
	Key        Key
	RecordedAt time.Time
}

// Tracker persists staleness markers. Implementations are safe for concurrent use
// and a successful RecordSuccess is visible to every later Lookup.
type Tracker interface {
	// Lookup returns the marker for key; found is false when none exists.
	Lookup(ctx context.Context, key Key) (marker Marker, found bool, err error)
	// IsStale reports whether no marker exists for key.
	IsStale(ctx context.Context, key Key) (bool, error)
	// RecordSuccess creates or overwrites the marker for key.
	RecordSuccess(ctx context.Context, key Key, at time.Time) error
	// List returns all markers ordered by platform then profile.
	List(ctx context.Context) ([]Marker, error)
	Close() error
}

// Open creates the tracker selected by cfg. dir is the state directory.
func Open(cfg config.StalenessConfig, dir string) (Tracker, error) {
	switch cfg.Backend {
	case config.StalenessBackendSQLite:
		return NewSQLiteTracker(filepath.Join(dir, "markers.db"))
	case config.StalenessBackendFile, "":
		return NewFileTracker(filepath.Join(dir, "markers"))
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown staleness backend %q", cfg.Backend)).Build()
	}
}

func isStale(ctx context.Context, t Tracker, key Key) (bool, error) {
	_, found, err := t.Lookup(ctx, key)
	if err != nil {
		return false, err
	}
	return !found, nil
}

func markerLess(a, b Marker) bool {
	if a.Key.Platform != b.Key.Platform {
		return a.Key.Platform < b.Key.Platform
	}
	return a.Key.Profile < b.Key.Profile
}
