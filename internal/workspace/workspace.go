package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Layout resolves project-relative paths for one build run.
type Layout struct {
	root     string
	stateDir string
	logDir   string

	cleanOnce sync.Once
	cleanErr  error
}

// NewLayout creates a layout rooted at the engine project directory.
// stateDir and logDir may be relative to root; logDir is placed below the
// state directory when relative.
func NewLayout(root, stateDir, logDir string) *Layout {
	if stateDir == "" {
		stateDir = ".appbuilder"
	}
	if logDir == "" {
		logDir = "logs"
	}
	l := &Layout{root: root}
	l.stateDir = l.Resolve(stateDir)
	if filepath.IsAbs(logDir) {
		l.logDir = logDir
	} else {
		l.logDir = filepath.Join(l.stateDir, logDir)
	}
	return l
}

// Root returns the engine project directory.
func (l *Layout) Root() string { return l.root }

// StateDir returns the directory holding markers and the marker database.
func (l *Layout) StateDir() string { return l.stateDir }

// MarkersDir returns the directory holding file staleness markers.
func (l *Layout) MarkersDir() string { return filepath.Join(l.stateDir, "markers") }

// LogDir returns the directory holding toolchain build logs.
func (l *Layout) LogDir() string { return l.logDir }

// Resolve turns a configured path into an absolute path.
func (l *Layout) Resolve(p string) string {
	if expanded, ok := expandHome(p); ok {
		return expanded
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(l.root, p)
}

// Create ensures the state and log directories exist.
func (l *Layout) Create() error {
	for _, dir := range []string{l.stateDir, l.logDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create workspace directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureParent creates the parent directory of an output path.
func (l *Layout) EnsureParent(p string) error {
	dir := filepath.Dir(l.Resolve(p))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// CleanCache removes the given cache directories. Missing paths are skipped.
// The removal runs at most once per Layout; later calls return the first result.
func (l *Layout) CleanCache(ctx context.Context, paths []string) error {
	l.cleanOnce.Do(func() {
		l.cleanErr = l.clean(ctx, paths)
	})
	return l.cleanErr
}

func (l *Layout) clean(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := l.Resolve(p)
		if err := l.guard(target); err != nil {
			return err
		}
		if _, err := os.Stat(target); os.IsNotExist(err) {
			slog.Debug("Cache path absent", logfields.Path(target))
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to clean cache %s: %w", target, err)
		}
		slog.Info("Cleaned cache", logfields.Path(target))
	}
	return nil
}

// guard refuses to remove the project root, the state directory, or anything
// above them.
func (l *Layout) guard(target string) error {
	clean := filepath.Clean(target)
	for _, protected := range []string{l.root, l.stateDir} {
		p := filepath.Clean(protected)
		if clean == p || strings.HasPrefix(p, clean+string(filepath.Separator)) {
			return fmt.Errorf("refusing to clean %s: contains %s", clean, p)
		}
	}
	if clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to clean filesystem root")
	}
	return nil
}

func expandHome(p string) (string, bool) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return "", false
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), true
}
