package staleness

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

func backends(t *testing.T) map[string]func(t *testing.T) Tracker {
	t.Helper()
	return map[string]func(t *testing.T) Tracker{
		"file": func(t *testing.T) Tracker {
			tr, err := NewFileTracker(filepath.Join(t.TempDir(), "markers"))
			require.NoError(t, err)
			return tr
		},
		"sqlite": func(t *testing.T) Tracker {
			tr, err := NewSQLiteTracker(filepath.Join(t.TempDir(), "markers.db"))
			require.NoError(t, err)
			return tr
		},
	}
}

func TestTracker_Contract(t *testing.T) {
	ctx := context.Background()
	dev := Key{Platform: platform.Android, Profile: "dev"}
	prod := Key{Platform: platform.Android, Profile: "prod"}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := open(t)
			t.Cleanup(func() { _ = tr.Close() })

			stale, err := tr.IsStale(ctx, dev)
			require.NoError(t, err)
			assert.True(t, stale, "no marker means stale")

			_, found, err := tr.Lookup(ctx, dev)
			require.NoError(t, err)
			assert.False(t, found)

			first := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
			require.NoError(t, tr.RecordSuccess(ctx, dev, first))

			m, found, err := tr.Lookup(ctx, dev)
			require.NoError(t, err)
			require.True(t, found)
			assert.True(t, first.Equal(m.RecordedAt))
			assert.Equal(t, dev, m.Key)

			stale, err = tr.IsStale(ctx, dev)
			require.NoError(t, err)
			assert.False(t, stale)

			// Other profiles are independent.
			stale, err = tr.IsStale(ctx, prod)
			require.NoError(t, err)
			assert.True(t, stale)

			// Overwrite on rerun.
			second := first.Add(time.Hour)
			require.NoError(t, tr.RecordSuccess(ctx, dev, second))
			m, _, err = tr.Lookup(ctx, dev)
			require.NoError(t, err)
			assert.True(t, second.Equal(m.RecordedAt))

			require.NoError(t, tr.RecordSuccess(ctx, Key{Platform: platform.IOS, Profile: "dev"}, first))
			markers, err := tr.List(ctx)
			require.NoError(t, err)
			require.Len(t, markers, 2)
			assert.Equal(t, platform.Android, markers[0].Key.Platform)
			assert.Equal(t, platform.IOS, markers[1].Key.Platform)
		})
	}
}

func TestTracker_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := open(t)
			t.Cleanup(func() { _ = tr.Close() })

			var wg sync.WaitGroup
			for i := range 8 {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					p := platform.All()[i%2]
					assert.NoError(t, tr.RecordSuccess(ctx, Key{Platform: p, Profile: "dev"}, time.Now()))
				}(i)
			}
			wg.Wait()

			for _, p := range platform.All() {
				stale, err := tr.IsStale(ctx, Key{Platform: p, Profile: "dev"})
				require.NoError(t, err)
				assert.False(t, stale)
			}
		})
	}
}

func TestTracker_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tr := open(t)
			t.Cleanup(func() { _ = tr.Close() })

			for _, key := range []Key{
				{Platform: platform.IOS, Profile: "../escape"},
				{Platform: platform.IOS, Profile: ""},
				{Platform: "windows", Profile: "dev"},
			} {
				err := tr.RecordSuccess(ctx, key, time.Now())
				require.Error(t, err, key.String())
				assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
			}
		})
	}
}

func TestFileTracker_Layout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "markers")
	tr, err := NewFileTracker(dir)
	require.NoError(t, err)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, tr.RecordSuccess(context.Background(), Key{Platform: platform.IOS, Profile: "prod"}, at))

	data, err := os.ReadFile(filepath.Join(dir, "ios-prod.stamp"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileTracker_CorruptMarkerIsStale(t *testing.T) {
	dir := t.TempDir()
	tr, err := NewFileTracker(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "android-dev.stamp"), []byte("garbage"), 0o600))

	stale, err := tr.IsStale(context.Background(), Key{Platform: platform.Android, Profile: "dev"})
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestOpen_SelectsBackend(t *testing.T) {
	dir := t.TempDir()

	tr, err := Open(config.StalenessConfig{Backend: config.StalenessBackendFile}, dir)
	require.NoError(t, err)
	assert.IsType(t, &FileTracker{}, tr)
	assert.DirExists(t, filepath.Join(dir, "markers"))
	require.NoError(t, tr.Close())

	tr, err = Open(config.StalenessConfig{Backend: config.StalenessBackendSQLite}, dir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteTracker{}, tr)
	require.NoError(t, tr.Close())
	assert.FileExists(t, filepath.Join(dir, "markers.db"))

	_, err = Open(config.StalenessConfig{Backend: "redis"}, dir)
	require.Error(t, err)
}
