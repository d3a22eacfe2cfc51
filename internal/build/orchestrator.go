package build

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/appbuilder/internal/buildlog"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/device"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/manifest"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/observability"
	"git.home.luguber.info/inful/appbuilder/internal/pipeline"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/preprocess"
	"git.home.luguber.info/inful/appbuilder/internal/prompt"
	"git.home.luguber.info/inful/appbuilder/internal/runner"
	"git.home.luguber.info/inful/appbuilder/internal/staleness"
	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
	"git.home.luguber.info/inful/appbuilder/internal/workspace"
)

// ToolchainResolver finds the editor installation for a requested version.
type ToolchainResolver interface {
	Resolve(requested string) (toolchain.Installation, error)
}

// Orchestrator runs platform pipelines for a BuildRequest.
type Orchestrator struct {
	cfg    *config.Config
	layout *workspace.Layout

	resolver     ToolchainResolver
	tracker      staleness.Tracker
	prompts      prompt.Policy
	preprocessor preprocess.Runner
	runner       runner.Runner
	device       device.Tooling
	recorder     metrics.Recorder
	out          io.Writer
	now          func() time.Time
	newRunID     func() string
}

// NewOrchestrator creates an orchestrator for a loaded configuration.
// Collaborators default to the real implementations and can be replaced with
// the With* methods.
func NewOrchestrator(cfg *config.Config) *Orchestrator {
	layout := workspace.NewLayout(cfg.Project.Path, cfg.Staleness.Dir, cfg.Logging.Dir)
	return &Orchestrator{
		cfg:      cfg,
		layout:   layout,
		resolver: toolchain.NewResolver(cfg.Toolchain, cfg.Project.Path),
		prompts:  prompt.NonInteractivePolicy{},
		recorder: metrics.NoopRecorder{},
		out:      os.Stdout,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// WithResolver replaces the toolchain resolver.
func (o *Orchestrator) WithResolver(r ToolchainResolver) *Orchestrator {
	o.resolver = r
	return o
}

// WithTracker uses t instead of opening the configured marker store.
// The caller keeps ownership and closes it.
func (o *Orchestrator) WithTracker(t staleness.Tracker) *Orchestrator {
	o.tracker = t
	return o
}

// WithPrompts sets the prompt policy.
func (o *Orchestrator) WithPrompts(p prompt.Policy) *Orchestrator {
	o.prompts = p
	return o
}

// WithPreprocessor replaces the configured preprocessing collaborator.
func (o *Orchestrator) WithPreprocessor(p preprocess.Runner) *Orchestrator {
	o.preprocessor = p
	return o
}

// WithRunner replaces the process runner used for every external tool. The
// default streams tool output to the orchestrator's output.
func (o *Orchestrator) WithRunner(r runner.Runner) *Orchestrator {
	o.runner = r
	return o
}

// WithDevice replaces the device tooling used by --run.
func (o *Orchestrator) WithDevice(d device.Tooling) *Orchestrator {
	o.device = d
	return o
}

// WithRecorder sets the metrics recorder.
func (o *Orchestrator) WithRecorder(r metrics.Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}
	return o
}

// WithOutput sets where tool output and the summary are written.
func (o *Orchestrator) WithOutput(w io.Writer) *Orchestrator {
	o.out = w
	return o
}

// WithClock sets the time source used for log names and markers.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// WithRunIDGenerator replaces the run ID source.
func (o *Orchestrator) WithRunIDGenerator(gen func() string) *Orchestrator {
	o.newRunID = gen
	return o
}

// Layout returns the project path layout.
func (o *Orchestrator) Layout() *workspace.Layout { return o.layout }

// Run executes the request and prints the summary. The result is never nil;
// callers derive the exit code from it.
func (o *Orchestrator) Run(ctx context.Context, req BuildRequest) *BuildResult {
	start := o.now()
	result := &BuildResult{
		RunID:     o.newRunID(),
		Profile:   req.Profile,
		Order:     append([]platform.Platform(nil), req.Platforms...),
		Platforms: make(map[platform.Platform]*PlatformResult, len(req.Platforms)),
		StartTime: start,
	}
	ctx = observability.WithRunID(ctx, result.RunID)
	ctx = observability.WithProfile(ctx, req.Profile)

	result.Err = o.run(ctx, req, result)

	result.EndTime = o.now()
	result.Duration = result.EndTime.Sub(start)
	o.recordOutcome(result)
	if result.Err != nil {
		observability.ErrorContext(ctx, "Build aborted", logfields.Error(result.Err),
			logfields.LogPath(errors.ContextString(result.Err, errors.KeyLogPath)))
	}
	if err := buildlog.Rotate(o.layout.LogDir(), o.cfg.Logging.Keep); err != nil {
		observability.WarnContext(ctx, "Failed to rotate build logs", logfields.Error(err))
	}
	WriteSummary(o.out, result, o.layout.Root())
	return result
}

func (o *Orchestrator) run(ctx context.Context, req BuildRequest, result *BuildResult) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := o.cfg.RequirePlatforms(req.Platforms); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, err.Error()).Fatal().Build()
	}

	if info, err := gitinfo.Describe(o.layout.Root()); err != nil {
		observability.DebugContext(ctx, "No commit information", logfields.Error(err))
	} else if info != nil {
		result.Source = info
		observability.InfoContext(ctx, "Building checkout",
			slog.String("commit", info.Short()), slog.String("branch", info.Branch))
	}

	inst, err := o.resolver.Resolve(req.ToolchainVersion)
	if err != nil {
		return err
	}
	result.Toolchain = &inst
	o.recorder.IncToolchainResolution(inst.Strategy, inst.Exact)
	observability.InfoContext(ctx, "Using toolchain", logfields.Version(inst.Version),
		logfields.Strategy(inst.Strategy), logfields.Path(inst.Path))

	if err := o.layout.Create(); err != nil {
		return errors.FileSystemError("failed to prepare state directory").
			WithCause(err).
			WithContext("path", o.layout.StateDir()).
			Fatal().
			Build()
	}

	tracker := o.tracker
	if tracker == nil {
		opened, err := staleness.Open(o.cfg.Staleness, o.layout.StateDir())
		if err != nil {
			return err
		}
		defer func() {
			if err := opened.Close(); err != nil {
				observability.WarnContext(ctx, "Failed to close marker store", logfields.Error(err))
			}
		}()
		tracker = opened
	}

	if req.CleanCache {
		if err := o.layout.CleanCache(ctx, o.cfg.Cache.CleanPaths); err != nil {
			if ctx.Err() != nil {
				return errors.WrapError(err, errors.CategoryCanceled, "build canceled").Fatal().Build()
			}
			return errors.FileSystemError("failed to clean caches").WithCause(err).Fatal().Build()
		}
	}

	logs := buildlog.NewNamer(o.layout.LogDir(), result.RunID, result.StartTime)
	console := &lockedWriter{w: o.out}
	exec := o.runner
	if exec == nil {
		exec = runner.NewWithConsole(console)
	}
	session := pipeline.NewSession(pipeline.SessionConfig{
		Tracker:         tracker,
		Prompts:         o.prompts,
		Preprocessor:    o.preprocessorFor(inst, logs, exec),
		SharedPlatforms: o.cfg.Preprocess.SharedPlatforms,
		PromptWhenFresh: o.cfg.Preprocess.ShouldPromptWhenFresh(),
		Recorder:        o.recorder,
		Now:             o.now,
	})
	deps := pipeline.Deps{
		Config:    o.cfg,
		Layout:    o.layout,
		Toolchain: inst,
		Runner:    exec,
		Session:   session,
		Sanitizer: manifest.FromConfig(o.cfg.Manifest),
		Logs:      logs,
		Device:    o.deviceFor(req, console, exec),
		Recorder:  o.recorder,
		Console:   console,
	}

	o.dispatch(ctx, req, deps, result)
	result.PreprocessingRan = session.Ran()
	result.PreprocessingSuppressed = session.Suppressed()
	if result.PreprocessingSuppressed {
		observability.InfoContext(ctx, "Preprocessing prompts were skipped for the rest of the run")
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, req BuildRequest, deps pipeline.Deps, result *BuildResult) {
	preq := req.pipelineRequest()
	if !req.Parallel || len(req.Platforms) < 2 {
		for _, p := range req.Platforms {
			result.Platforms[p] = pipeline.New(p, deps).Run(ctx, preq)
		}
		return
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range req.Platforms {
		g.Go(func() error {
			res := pipeline.New(p, deps).Run(ctx, preq)
			mu.Lock()
			result.Platforms[p] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) preprocessorFor(inst toolchain.Installation, logs *buildlog.Namer, exec runner.Runner) preprocess.Runner {
	if o.preprocessor != nil {
		return o.preprocessor
	}
	logPath := func(profile string) (string, string) {
		set := logs.For("preprocess", profile)
		return set.Output, set.Editor
	}
	if len(o.cfg.Preprocess.Command) > 0 {
		return &preprocess.CommandRunner{
			Exec:    exec,
			Command: o.cfg.Preprocess.Command,
			Dir:     o.layout.Root(),
			LogPath: logPath,
		}
	}
	return &preprocess.ToolchainRunner{
		Exec:          exec,
		Editor:        inst.Path,
		ProjectPath:   o.layout.Root(),
		ExecuteMethod: o.cfg.Preprocess.ExecuteMethod,
		LogFlag:       o.cfg.Toolchain.LogFlag,
		LogPath:       logPath,
	}
}

func (o *Orchestrator) deviceFor(req BuildRequest, out io.Writer, exec runner.Runner) device.Tooling {
	if !req.RunAfterBuild {
		return nil
	}
	if o.device != nil {
		return o.device
	}
	return device.NewAndroid(o.cfg.Device, exec, device.WithOutput(out))
}

func (o *Orchestrator) recordOutcome(result *BuildResult) {
	o.recorder.ObserveRunDuration(result.Duration)
	for _, p := range result.Order {
		res := result.Platforms[p]
		if res == nil {
			continue
		}
		label := metrics.ResultSuccess
		switch res.Status {
		case pipeline.StatusWarning:
			label = metrics.ResultWarning
		case pipeline.StatusFailed:
			label = metrics.ResultFailed
		case pipeline.StatusCanceled:
			label = metrics.ResultCanceled
		}
		o.recorder.IncPlatformOutcome(string(p), label)
	}
}

// lockedWriter serializes console writes from parallel pipelines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return len(p), nil
	}
	return l.w.Write(p)
}
