package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Paths(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "", "")

	assert.Equal(t, root, l.Root())
	assert.Equal(t, filepath.Join(root, ".appbuilder"), l.StateDir())
	assert.Equal(t, filepath.Join(root, ".appbuilder", "markers"), l.MarkersDir())
	assert.Equal(t, filepath.Join(root, ".appbuilder", "logs"), l.LogDir())
	assert.Equal(t, filepath.Join(root, "build", "x.aab"), l.Resolve("build/x.aab"))
	assert.Equal(t, "/abs/path", l.Resolve("/abs/path"))

	require.NoError(t, l.Create())
	assert.DirExists(t, l.StateDir())
	assert.DirExists(t, l.LogDir())
}

func TestLayout_AbsoluteLogDir(t *testing.T) {
	root := t.TempDir()
	logs := filepath.Join(t.TempDir(), "ci-logs")
	l := NewLayout(root, "state", logs)

	assert.Equal(t, filepath.Join(root, "state"), l.StateDir())
	assert.Equal(t, logs, l.LogDir())
}

func TestLayout_ResolveHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	l := NewLayout(t.TempDir(), "", "")

	assert.Equal(t, filepath.Join(home, "Library", "Developer"), l.Resolve("~/Library/Developer"))
}

func TestLayout_CleanCache(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)

	for _, dir := range []string{"Library/Bee/x", "build/ios", "keep"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o750))
	}
	derived := filepath.Join(home, "DerivedData", "Proj")
	require.NoError(t, os.MkdirAll(derived, 0o750))

	l := NewLayout(root, "", "")
	require.NoError(t, l.CleanCache(context.Background(),
		[]string{"Library/Bee", "build", "Library/BuildCache", "~/DerivedData"}))

	assert.NoDirExists(t, filepath.Join(root, "Library", "Bee"))
	assert.NoDirExists(t, filepath.Join(root, "build"))
	assert.NoDirExists(t, filepath.Join(home, "DerivedData"))
	assert.DirExists(t, filepath.Join(root, "keep"))
}

func TestLayout_CleanCacheRunsOnce(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root, "", "")
	require.NoError(t, l.CleanCache(context.Background(), []string{"build"}))

	// A directory recreated after the first clean survives later calls.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o750))
	require.NoError(t, l.CleanCache(context.Background(), []string{"build"}))
	assert.DirExists(t, filepath.Join(root, "build"))
}

func TestLayout_CleanCacheRefusesProjectRoot(t *testing.T) {
	root := t.TempDir()
	for _, target := range []string{".", ".appbuilder", "/"} {
		l := NewLayout(root, "", "")
		err := l.CleanCache(context.Background(), []string{target})
		require.Error(t, err, target)
	}
	assert.DirExists(t, root)
}

func TestLayout_CleanCacheHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLayout(t.TempDir(), "", "")
	require.ErrorIs(t, l.CleanCache(ctx, []string{"build"}), context.Canceled)
}
