// Package runner executes external tools (the engine editor, preprocessing
// commands, device tooling) with their combined output streamed to the
// console and to a log file, keeping the last lines for error reports.
//
// Each process runs in its own process group; cancelling the context kills
// the whole group so editor helper processes do not outlive the run.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// DefaultTailLines is the number of output lines kept for error messages.
const DefaultTailLines = 20

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries (KEY=VALUE) added on top of the inherited environment.
	Env []string
	// LogPath receives the combined output when set. Parent directories are created.
	LogPath string
	// Quiet suppresses console streaming; output still reaches LogPath and the tail.
	Quiet     bool
	TailLines int
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result describes a finished process.
type Result struct {
	ExitCode int
	Duration time.Duration
	Tail     []string
	Output   string // full combined output when no LogPath was given
	LogPath  string
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Tail     []string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Exec runs commands as local processes.
type Exec struct {
	Console io.Writer
	// KillDelay bounds how long Wait blocks for output after the process group was killed.
	KillDelay time.Duration
}

// NewWithConsole returns an Exec streaming combined output to console.
func NewWithConsole(console io.Writer) *Exec {
	return &Exec{Console: console, KillDelay: 2 * time.Second}
}

// Run starts cmd and waits for it. A non-zero exit returns *ExitError together
// with the populated Result; cancellation returns a canceled ClassifiedError.
func (e *Exec) Run(ctx context.Context, c Command) (Result, error) {
	if c.TailLines <= 0 {
		c.TailLines = DefaultTailLines
	}
	res := Result{LogPath: c.LogPath}
	tail := NewTail(c.TailLines)

	writers := []io.Writer{tail}
	if !c.Quiet && e.Console != nil {
		writers = append(writers, e.Console)
	}

	var captured strings.Builder
	if c.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o750); err != nil {
			return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to create log directory").Build()
		}
		logFile, err := os.Create(c.LogPath) // #nosec G304 -- log path built by appbuilder
		if err != nil {
			return res, errors.WrapError(err, errors.CategoryFileSystem, "failed to create log file").
				WithContext(errors.KeyLogPath, c.LogPath).
				Build()
		}
		defer func() { _ = logFile.Close() }()
		writers = append(writers, logFile)
	} else {
		writers = append(writers, &captured)
	}
	out := &syncWriter{w: io.MultiWriter(writers...)}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...) // #nosec G204 -- tool paths come from configuration
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = e.KillDelay

	slog.Debug("Starting process", slog.String("command", c.String()), logfields.LogPath(c.LogPath))
	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Tail = tail.Lines()
	res.Output = captured.String()

	if ctx.Err() != nil {
		return res, errors.WrapError(ctx.Err(), errors.CategoryCanceled, "process canceled").
			Fatal().
			WithContext("command", c.Name).
			WithContext(errors.KeyLogPath, c.LogPath).
			Build()
	}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Command: filepath.Base(c.Name), ExitCode: res.ExitCode, Tail: res.Tail}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	slog.Debug("Process finished", slog.String("command", filepath.Base(c.Name)),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}
