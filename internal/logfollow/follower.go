// Package logfollow follows a log file written by another process.
//
// The engine editor writes its real build log to the path given by -logFile
// rather than to stdout. A Follower watches that file with fsnotify, forwards
// each new line to a sink, and remembers lines that look like errors so a
// failed build can report them. Stop drains whatever was written last.
package logfollow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// DefaultErrorPattern matches compiler and player-build errors in editor logs.
var DefaultErrorPattern = regexp.MustCompile(`(?i)(error CS\d+|Error building Player|BuildFailedException|Exception:|Aborting batchmode)`)

const maxErrorLines = 10

// Summary describes what a follower saw.
type Summary struct {
	Lines      int
	ErrorLines []string
}

// Follower tails one file until stopped.
type Follower struct {
	path    string
	sink    func(line string)
	pattern *regexp.Regexp
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	offset  int64
	partial []byte
	summary Summary

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Option customizes a Follower.
type Option func(*Follower)

// WithErrorPattern overrides the pattern used to collect error lines.
func WithErrorPattern(re *regexp.Regexp) Option {
	return func(f *Follower) { f.pattern = re }
}

// Start begins following path. The file does not need to exist yet; its
// directory is created and watched. sink may be nil.
func Start(ctx context.Context, path string, sink func(line string), opts ...Option) (*Follower, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watching the directory also catches the file being created.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch log directory %s: %w", dir, err)
	}

	if sink == nil {
		sink = func(string) {}
	}
	f := &Follower{
		path:     absPath,
		sink:     sink,
		pattern:  DefaultErrorPattern,
		watcher:  watcher,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	// A file left over from an earlier run is read from the start; callers
	// remove stale logs before starting the tool.
	f.readNew()
	go f.watchLoop(ctx)
	return f, nil
}

func (f *Follower) watchLoop(ctx context.Context) {
	defer close(f.done)
	name := filepath.Base(f.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				f.readNew()
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("Log follower error", logfields.Path(f.path), logfields.Error(err))
		}
	}
}

// readNew reads everything appended since the last read.
func (f *Follower) readNew() {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.path)
	if err != nil {
		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return
	}
	if info.Size() < f.offset {
		// Truncated or replaced: start over.
		f.offset = 0
		f.partial = nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		f.emit(strings.TrimRight(string(buf[:i]), "\r"))
		buf = buf[i+1:]
	}
	f.partial = append([]byte(nil), buf...)
}

func (f *Follower) emit(line string) {
	f.summary.Lines++
	if f.pattern != nil && f.pattern.MatchString(line) {
		f.summary.ErrorLines = append(f.summary.ErrorLines, line)
		if len(f.summary.ErrorLines) > maxErrorLines {
			f.summary.ErrorLines = f.summary.ErrorLines[1:]
		}
	}
	f.sink(line)
}

// Stop ends following, drains any remaining output and returns the summary.
// It is safe to call more than once.
func (f *Follower) Stop() Summary {
	f.stopOnce.Do(func() {
		close(f.stopChan)
		<-f.done
		if err := f.watcher.Close(); err != nil {
			slog.Debug("Error closing log watcher", logfields.Error(err))
		}
		f.readNew()

		f.mu.Lock()
		if len(f.partial) > 0 {
			f.emit(strings.TrimRight(string(f.partial), "\r"))
			f.partial = nil
		}
		f.mu.Unlock()
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.summary
	s.ErrorLines = append([]string(nil), f.summary.ErrorLines...)
	return s
}
