// Package buildlog names build log files and rotates old ones.
//
// Every step that runs an external tool gets its own timestamped log. After a
// run, logs beyond the newest Keep are gzip-compressed and logs beyond twice
// Keep are removed.
package buildlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

const (
	logExt        = ".log"
	compressedExt = ".log.gz"
	stampLayout   = "20060102-150405"
)

// Set is the group of log paths for one platform step.
type Set struct {
	Output string // combined stdout/stderr of the tool
	Editor string // file the editor writes via -logFile
}

// Namer builds log paths inside a directory for one run.
type Namer struct {
	dir   string
	runID string
	at    time.Time
}

// NewNamer creates a namer. Only the first eight characters of runID are used.
func NewNamer(dir, runID string, at time.Time) *Namer {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return &Namer{dir: dir, runID: runID, at: at}
}

// Dir returns the log directory.
func (n *Namer) Dir() string { return n.dir }

// For returns the logs for a step, e.g. For("android", "dev") or For("preprocess", "dev").
func (n *Namer) For(step, profile string) Set {
	base := fmt.Sprintf("%s-%s-%s", step, profile, n.at.Format(stampLayout))
	if n.runID != "" {
		base += "-" + n.runID
	}
	return Set{
		Output: filepath.Join(n.dir, base+logExt),
		Editor: filepath.Join(n.dir, base+".editor"+logExt),
	}
}

type entry struct {
	path       string
	modTime    time.Time
	compressed bool
}

// Rotate compresses logs older than the newest keep and deletes logs older
// than the newest 2*keep. A non-positive keep disables rotation.
func Rotate(dir string, keep int) error {
	if keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list log directory: %w", err)
	}

	var logs []entry
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		compressed := strings.HasSuffix(name, compressedExt)
		if !compressed && !strings.HasSuffix(name, logExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, entry{path: filepath.Join(dir, name), modTime: info.ModTime(), compressed: compressed})
	}

	// Newest first; names carry timestamps so they break ties.
	sort.Slice(logs, func(i, j int) bool {
		if !logs[i].modTime.Equal(logs[j].modTime) {
			return logs[i].modTime.After(logs[j].modTime)
		}
		return logs[i].path > logs[j].path
	})

	for i, l := range logs {
		switch {
		case i >= 2*keep:
			if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove old log: %w", err)
			}
			slog.Debug("Removed old build log", logfields.Path(l.path))
		case i >= keep && !l.compressed:
			if err := Compress(l.path); err != nil {
				return err
			}
		}
	}
	return nil
}

// Compress gzips path to path+".gz" and removes the original. The
// modification time is carried over so rotation order is stable.
func Compress(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat log: %w", err)
	}
	src, err := os.Open(path) // #nosec G304 -- path from the log directory listing
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = src.Close() }()

	target := path + ".gz"
	dst, err := os.Create(target) // #nosec G304 -- derived from the log path
	if err != nil {
		return fmt.Errorf("failed to create compressed log: %w", err)
	}

	gz := pgzip.NewWriter(dst)
	gz.Name = filepath.Base(path)
	gz.ModTime = info.ModTime()
	if _, err := io.Copy(gz, src); err != nil {
		_ = gz.Close()
		_ = dst.Close()
		_ = os.Remove(target)
		return fmt.Errorf("failed to compress log: %w", err)
	}
	if err := gz.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(target)
		return fmt.Errorf("failed to finish compressed log: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close compressed log: %w", err)
	}
	_ = os.Chtimes(target, info.ModTime(), info.ModTime())

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove compressed source log: %w", err)
	}
	slog.Debug("Compressed build log", logfields.Path(target))
	return nil
}
