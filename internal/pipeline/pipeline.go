package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/buildlog"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/device"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/logfollow"
	"git.home.luguber.info/inful/appbuilder/internal/manifest"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/observability"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
	"git.home.luguber.info/inful/appbuilder/internal/workspace"
)

// symbolsSuffix replaces the bundle extension for the native symbols archive.
const symbolsSuffix = ".symbols.zip"

// Request carries the per-run flags a pipeline needs.
type Request struct {
	Profile            string
	SkipPreprocessing  bool
	ForcePreprocessing bool
	RunAfterBuild      bool
	StrictManifest     bool
}

// Deps are the collaborators shared by every pipeline of a run.
type Deps struct {
	Config    *config.Config
	Layout    *workspace.Layout
	Toolchain toolchain.Installation
	Runner    runner.Runner
	Session   *Session
	Sanitizer *manifest.Sanitizer
	Logs      *buildlog.Namer
	// Device is used for run-after-build; nil disables it with a warning.
	Device   device.Tooling
	Recorder metrics.Recorder
	// Console receives lines of the editor log as they are written. May be nil.
	Console io.Writer
	// Getenv looks up passthrough environment variables. Defaults to os.LookupEnv.
	Getenv func(string) (string, bool)
}

// Pipeline builds one platform.
type Pipeline struct {
	platform platform.Platform
	deps     Deps
	machine  *machine
	result   *Result
}

// New creates a pipeline for p.
func New(p platform.Platform, deps Deps) *Pipeline {
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Getenv == nil {
		deps.Getenv = os.LookupEnv
	}
	return &Pipeline{
		platform: p,
		deps:     deps,
		machine:  newMachine(),
		result:   &Result{Platform: p, Status: StatusRunning},
	}
}

// Run drives the pipeline to done or failed. The result is never nil.
func (p *Pipeline) Run(ctx context.Context, req Request) *Result {
	start := time.Now()
	ctx = observability.WithPlatform(ctx, string(p.platform))
	ctx = observability.WithProfile(ctx, req.Profile)
	observability.InfoContext(ctx, "Platform build started")

	err := p.run(ctx, req)

	res := p.result
	res.Duration = time.Since(start)
	res.States = append([]State(nil), p.machine.history...)
	switch {
	case err != nil:
		p.machine.fail()
		res.States = append([]State(nil), p.machine.history...)
		res.Err = err
		res.Status = StatusFailed
		if errors.HasCategory(err, errors.CategoryCanceled) {
			res.Status = StatusCanceled
		}
		if res.LogPath == "" {
			res.LogPath = errors.ContextString(err, errors.KeyLogPath)
		}
		observability.ErrorContext(ctx, "Platform build failed", logfields.Error(err), logfields.LogPath(res.LogPath))
	case len(res.Warnings) > 0:
		res.Status = StatusWarning
		observability.WarnContext(ctx, "Platform build finished with warnings", slog.Int("warnings", len(res.Warnings)))
	default:
		res.Status = StatusSucceeded
		observability.InfoContext(ctx, "Platform build finished",
			logfields.DurationMS(float64(res.Duration.Milliseconds())))
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, req Request) error {
	if err := p.stage(ctx, StateDecide, func(ctx context.Context) error {
		return p.decide(ctx, req)
	}); err != nil {
		return err
	}

	var output string
	if err := p.stage(ctx, StateToolchainBuild, func(ctx context.Context) error {
		var err error
		output, err = p.toolchainBuild(ctx, req)
		return err
	}); err != nil {
		return err
	}

	if p.platform.ProducesManifest() {
		if err := p.stage(ctx, StateManifestSanitize, func(ctx context.Context) error {
			return p.sanitize(ctx, output, req.StrictManifest)
		}); err != nil {
			return err
		}
	}

	if err := p.stage(ctx, StatePublish, func(ctx context.Context) error {
		return p.publish(ctx, output)
	}); err != nil {
		return err
	}

	if req.RunAfterBuild && p.platform.SupportsRun() {
		if err := p.stage(ctx, StateRunAfterBuild, p.runAfterBuild); err != nil {
			return err
		}
	}
	return p.machine.advance(StateDone)
}

// stage moves the machine to state, runs fn and records metrics for it.
func (p *Pipeline) stage(ctx context.Context, state State, fn func(context.Context) error) error {
	if err := p.machine.advance(state); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "pipeline state error").Build()
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapError(err, errors.CategoryCanceled, "build canceled").Fatal().Build()
	}
	ctx = observability.WithStage(ctx, string(state))
	warnings := len(p.result.Warnings)

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	label := metrics.ResultSuccess
	switch {
	case err != nil && errors.HasCategory(err, errors.CategoryCanceled):
		label = metrics.ResultCanceled
	case err != nil:
		label = metrics.ResultFailed
	case len(p.result.Warnings) > warnings:
		label = metrics.ResultWarning
	}
	p.deps.Recorder.ObserveStageDuration(string(p.platform), string(state), elapsed)
	p.deps.Recorder.IncStageResult(string(p.platform), string(state), label)
	observability.DebugContext(ctx, "Stage finished", slog.String("result", string(label)),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return err
}

func (p *Pipeline) warn(ctx context.Context, err error) {
	p.result.Warnings = append(p.result.Warnings, err)
	observability.WarnContext(ctx, "Step degraded", logfields.Error(err))
}

func (p *Pipeline) decide(ctx context.Context, req Request) error {
	outcome, err := p.deps.Session.Preprocess(ctx, p.platform, req)
	p.result.Preprocessing = outcome.Decision
	p.result.PreprocessingRan = outcome.Ran
	if err != nil {
		return err
	}
	if outcome.Continued {
		p.warn(ctx, errors.PreprocessingError("preprocessing failed; build continued on request").Warning().Build())
	}

	next := StateSkipPreprocess
	if outcome.Ran {
		next = StatePreprocess
	}
	if err := p.machine.advance(next); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "pipeline state error").Build()
	}
	observability.InfoContext(ctx, "Preprocessing decision", slog.String("decision", string(outcome.Decision)))
	return nil
}

func (p *Pipeline) toolchainBuild(ctx context.Context, req Request) (string, error) {
	cfg := p.deps.Config
	spec := cfg.PlatformSpecFor(p.platform)
	projectPath := p.deps.Layout.Root()
	output := p.deps.Layout.Resolve(spec.Output)
	if err := p.deps.Layout.EnsureParent(output); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to prepare build output").
			ForPlatform().
			WithContext("path", output).
			Build()
	}

	logs := p.deps.Logs.For(string(p.platform), req.Profile)
	p.result.LogPath = logs.Output
	p.result.EditorLogPath = logs.Editor
	_ = os.Remove(logs.Editor)

	follower, err := logfollow.Start(ctx, logs.Editor, p.editorSink())
	if err != nil {
		observability.WarnContext(ctx, "Editor log will not be followed", logfields.Error(err))
	}

	args := toolchain.BuildArgs(projectPath, cfg.Toolchain.LogFlag, logs.Editor, spec.BuildTarget,
		cfg.Toolchain.BuildMethod, output, req.Profile, spec.ExtraArgs)
	cmd := runner.Command{
		Name:    p.deps.Toolchain.Path,
		Args:    args,
		Dir:     projectPath,
		Env:     p.passthroughEnv(ctx),
		LogPath: logs.Output,
	}
	observability.InfoContext(ctx, "Running toolchain build",
		logfields.Version(p.deps.Toolchain.Version), logfields.LogPath(logs.Output))
	res, runErr := p.deps.Runner.Run(ctx, cmd)

	var summary logfollow.Summary
	if follower != nil {
		summary = follower.Stop()
	}
	if runErr != nil {
		return "", p.buildFailure(runErr, res, logs, summary)
	}

	if _, err := os.Stat(output); err != nil {
		return "", errors.BuildError("toolchain finished without producing the build output").
			WithContext(errors.KeyLogPath, logs.Output).
			WithContext("path", output).
			WithContext(errors.KeyErrorLines, strings.Join(summary.ErrorLines, "\n")).
			Build()
	}
	return output, nil
}

func (p *Pipeline) buildFailure(err error, res runner.Result, logs buildlog.Set, summary logfollow.Summary) error {
	if errors.HasCategory(err, errors.CategoryCanceled) {
		return err
	}
	b := errors.WrapError(err, errors.CategoryBuild, fmt.Sprintf("%s build failed", p.platform)).
		ForPlatform().
		WithContext(errors.KeyLogPath, logs.Output).
		WithContext("editor_log", logs.Editor)
	var exitErr *runner.ExitError
	if stderrors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode)
	}
	if len(res.Tail) > 0 {
		b = b.WithContext(errors.KeyTail, strings.Join(res.Tail, "\n"))
	}
	if len(summary.ErrorLines) > 0 {
		b = b.WithContext(errors.KeyErrorLines, strings.Join(summary.ErrorLines, "\n"))
	}
	return b.Build()
}

// editorSink prefixes followed editor log lines with the platform.
func (p *Pipeline) editorSink() func(string) {
	if p.deps.Console == nil {
		return nil
	}
	var mu sync.Mutex
	prefix := "[" + string(p.platform) + "] "
	return func(line string) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = io.WriteString(p.deps.Console, prefix+line+"\n")
	}
}

// passthroughEnv forwards signing variables by name. Values are never logged.
func (p *Pipeline) passthroughEnv(ctx context.Context) []string {
	var env []string
	for _, name := range p.deps.Config.Toolchain.PassthroughEnv {
		if value, ok := p.deps.Getenv(name); ok {
			env = append(env, name+"="+value)
			continue
		}
		observability.DebugContext(ctx, "Passthrough variable not set", slog.String("name", name))
	}
	return env
}

func (p *Pipeline) sanitize(ctx context.Context, output string, strict bool) error {
	path := filepath.Join(output, p.deps.Config.Manifest.File)
	report, err := p.deps.Sanitizer.Sanitize(path)
	p.result.Sanitize = &report
	p.deps.Recorder.AddManifestRemovals("source", report.RemovedDuplicateSources)
	p.deps.Recorder.AddManifestRemovals("deprecated", report.RemovedDeprecatedDeclarations)
	if err == nil {
		return nil
	}
	if strict {
		return errors.WrapError(err, errors.CategorySanitize, "dependency manifest could not be sanitized").
			ForPlatform().
			WithContext("path", path).
			Build()
	}
	p.warn(ctx, err)
	return nil
}

func (p *Pipeline) publish(ctx context.Context, output string) error {
	artifact := &Artifact{Path: output}
	if p.platform == platform.Android {
		symbols := strings.TrimSuffix(output, filepath.Ext(output)) + symbolsSuffix
		if _, err := os.Stat(symbols); err == nil {
			artifact.SymbolsPath = symbols
		} else {
			observability.DebugContext(ctx, "No symbols archive next to bundle", logfields.Path(symbols))
		}
	}
	p.result.Artifact = artifact
	observability.InfoContext(ctx, "Artifact ready", logfields.Path(artifact.Path))
	return nil
}

func (p *Pipeline) runAfterBuild(ctx context.Context) error {
	if p.deps.Device == nil {
		p.warn(ctx, errors.DeviceError("device tooling is not configured").Build())
		return nil
	}
	err := device.RunAfterBuild(ctx, p.deps.Device, p.result.Artifact.Path, p.deps.Config.Device.PackageID)
	if err == nil {
		return nil
	}
	if errors.HasCategory(err, errors.CategoryCanceled) || ctx.Err() != nil {
		return err
	}
	p.warn(ctx, err)
	return nil
}
