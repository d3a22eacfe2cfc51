package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/appbuilder/internal/build"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/events"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/prompt"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Platform         string `short:"p" required:"" help:"Platforms to build: ios, android or both (aliases A, B)"`
	Profile          string `help:"Build profile name (default dev, or prod with --release)"`
	Release          bool   `help:"Release build; implies --profile prod"`
	CleanCache       bool   `name:"clean-cache" help:"Remove build caches once before any platform builds"`
	RunAfterBuild    bool   `name:"run" help:"Install and launch the android build on a device or emulator"`
	SkipPreprocess   bool   `name:"skip-preprocess" help:"Never run data preprocessing"`
	Preprocess       bool   `help:"Always run data preprocessing"`
	ToolchainVersion string `name:"toolchain-version" help:"Toolchain version to use instead of the project's"`
	StrictManifest   bool   `name:"strict-manifest" help:"Fail the ios build when the Podfile cannot be sanitized"`
	Parallel         bool   `help:"Build platforms concurrently"`
	MetricsTextfile  string `name:"metrics-textfile" type:"path" help:"Write Prometheus metrics to this file after the build"`
}

// Request converts the flags into a build request.
func (b *BuildCmd) Request() (build.BuildRequest, error) {
	platforms, err := platform.ParseSelection(b.Platform)
	if err != nil {
		return build.BuildRequest{}, errors.WrapError(err, errors.CategoryValidation, err.Error()).Build()
	}
	return build.BuildRequest{
		Platforms:          platforms,
		Profile:            build.ProfileFor(b.Profile, b.Release),
		ToolchainVersion:   b.ToolchainVersion,
		CleanCache:         b.CleanCache,
		SkipPreprocessing:  b.SkipPreprocess,
		ForcePreprocessing: b.Preprocess,
		RunAfterBuild:      b.RunAfterBuild,
		StrictManifest:     b.StrictManifest,
		Parallel:           b.Parallel,
	}, nil
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	req, err := b.Request()
	if err != nil {
		return err
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RunBuild(ctx, g, cfg, req, BuildOptions{
		Prompts:         prompt.Detect(root.NonInteractive),
		MetricsTextfile: b.MetricsTextfile,
	})
}

// BuildOptions carries the collaborators RunBuild does not derive from config.
type BuildOptions struct {
	Prompts         prompt.Policy
	MetricsTextfile string
	// Configure adjusts the orchestrator before it runs.
	Configure func(*build.Orchestrator)
}

// RunBuild runs one build, publishes its event and exports metrics. The
// returned error carries the exit code class of the first failure.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config, req build.BuildRequest, opts BuildOptions) error {
	textfile := opts.MetricsTextfile
	if textfile == "" {
		textfile = cfg.Metrics.Textfile
	}
	var recorder *metrics.PrometheusRecorder
	if textfile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
	}

	orch := build.NewOrchestrator(cfg).WithOutput(g.out())
	if opts.Prompts != nil {
		orch.WithPrompts(opts.Prompts)
	}
	if recorder != nil {
		orch.WithRecorder(recorder)
	}
	if opts.Configure != nil {
		opts.Configure(orch)
	}

	result := orch.Run(ctx, req)

	if recorder != nil {
		if err := recorder.WriteTextfile(textfile); err != nil {
			slog.Warn("Failed to write metrics", logfields.Path(textfile), logfields.Error(err))
		}
	}
	publish(cfg.Events, result)

	return result.FirstError()
}

// publish sends the build event when a NATS URL is configured. Failures are
// logged and never change the exit code.
func publish(cfg config.EventsConfig, result *build.BuildResult) {
	notifier, err := events.Connect(cfg)
	if err != nil {
		slog.Warn("Failed to connect to event bus", logfields.Error(err))
		return
	}
	if notifier == nil {
		return
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			slog.Debug("Failed to close event bus connection", logfields.Error(err))
		}
	}()

	// The build context may already be canceled; the event still goes out.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := notifier.Notify(ctx, result.Event()); err != nil {
		slog.Warn("Failed to publish build event", slog.String("subject", cfg.Subject), logfields.Error(err))
	}
}
