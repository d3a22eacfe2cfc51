// Package preprocess runs the platform-agnostic data import that must happen
// before a build when the imported data is stale.
//
// Two runners exist: CommandRunner executes a configured command line, and
// ToolchainRunner invokes a static method inside the engine editor in batch
// mode. Both stream output to a per-run log file.
package preprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
)

// ProfileToken is replaced by the build profile in configured commands.
const ProfileToken = "{profile}"

// Runner performs data preprocessing for a profile.
type Runner interface {
	RunPreprocessing(ctx context.Context, profile string) error
}

// LogPathFunc returns the log paths for a preprocessing run of profile.
type LogPathFunc func(profile string) (output, editor string)

// CommandRunner runs an external command.
type CommandRunner struct {
	Exec    runner.Runner
	Command []string
	Dir     string
	LogPath LogPathFunc
}

// RunPreprocessing runs the command with {profile} substituted.
func (r *CommandRunner) RunPreprocessing(ctx context.Context, profile string) error {
	if len(r.Command) == 0 {
		return errors.ConfigError("preprocess command is empty").Build()
	}
	args := make([]string, len(r.Command))
	for i, a := range r.Command {
		args[i] = strings.ReplaceAll(a, ProfileToken, profile)
	}

	logPath, _ := r.logPaths(profile)
	cmd := runner.Command{Name: args[0], Args: args[1:], Dir: r.Dir, LogPath: logPath}
	return run(ctx, r.Exec, cmd, profile, r)
}

func (r *CommandRunner) logPaths(profile string) (string, string) {
	if r.LogPath == nil {
		return "", ""
	}
	return r.LogPath(profile)
}

// ToolchainRunner invokes an editor static method in batch mode.
type ToolchainRunner struct {
	Exec          runner.Runner
	Editor        string // resolved editor executable
	ProjectPath   string
	ExecuteMethod string
	LogFlag       string
	LogPath       LogPathFunc
}

// RunPreprocessing runs the execute-method with -profile set.
func (r *ToolchainRunner) RunPreprocessing(ctx context.Context, profile string) error {
	if r.Editor == "" || r.ExecuteMethod == "" {
		return errors.ConfigError("preprocess execute_method requires a resolved toolchain").Build()
	}
	output, editorLog := "", ""
	if r.LogPath != nil {
		output, editorLog = r.LogPath(profile)
	}
	if editorLog == "" {
		// The editor writes to stdout when given "-".
		editorLog = "-"
	}

	args := toolchain.HeadlessArgs(r.ProjectPath, r.LogFlag, editorLog)
	args = append(args, "-executeMethod", r.ExecuteMethod, "-profile", profile)
	cmd := runner.Command{Name: r.Editor, Args: args, Dir: r.ProjectPath, LogPath: output}
	return run(ctx, r.Exec, cmd, profile, r)
}

func run(ctx context.Context, exec runner.Runner, cmd runner.Command, profile string, kind fmt.Stringer) error {
	slog.Info("Running data preprocessing", logfields.Profile(profile),
		slog.String("runner", kind.String()), slog.String("command", cmd.String()))

	res, err := exec.Run(ctx, cmd)
	if err == nil {
		slog.Info("Data preprocessing finished", logfields.Profile(profile),
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return nil
	}
	if errors.HasCategory(err, errors.CategoryCanceled) {
		return err
	}

	b := errors.WrapError(err, errors.CategoryPreprocessing, "data preprocessing failed").
		ForPlatform().
		WithContext("profile", profile)
	if cmd.LogPath != "" {
		b = b.WithContext(errors.KeyLogPath, cmd.LogPath)
	}
	var exitErr *runner.ExitError
	if stderrors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode).
			WithContext(errors.KeyTail, strings.Join(exitErr.Tail, "\n"))
	}
	return b.Build()
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, profile string) error

func (f Func) RunPreprocessing(ctx context.Context, profile string) error { return f(ctx, profile) }

var _ Runner = Func(nil)

// String describes the runner kind for logs.
func (r *CommandRunner) String() string {
	return fmt.Sprintf("command(%s)", strings.Join(r.Command, " "))
}

// String describes the runner kind for logs.
func (r *ToolchainRunner) String() string {
	return fmt.Sprintf("execute-method(%s)", r.ExecuteMethod)
}
