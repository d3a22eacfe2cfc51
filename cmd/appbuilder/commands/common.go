package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output. Nil means stdout.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags - used by commands that need access to root config.
type CLI struct {
	Config         string           `short:"c" help:"Configuration file path" default:"appbuilder.yaml" type:"path"`
	Verbose        bool             `short:"v" help:"Enable verbose logging"`
	NonInteractive bool             `name:"non-interactive" help:"Never prompt; apply CI defaults" env:"APPBUILDER_NON_INTERACTIVE"`
	Version        kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd   `cmd:"" help:"Build the project for one or more platforms"`
	Status     StatusCmd  `cmd:"" help:"List preprocessing markers"`
	Resolve    ResolveCmd `cmd:"" help:"Print the toolchain installation a build would use"`
	Init       InitCmd    `cmd:"" help:"Initialize a new configuration file"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once. Commands that load
// the project configuration reapply its level and format.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := config.LogLevelInfo
	if v := os.Getenv(config.EnvLogLevel); v != "" {
		level = config.NormalizeLogLevel(v)
	}
	setupLogging(level, config.LogFormatText, c.Verbose)
	return nil
}

// loadConfig loads the project configuration and applies its logging settings.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, err.Error()).
			WithContext("path", c.Config).
			Build()
	}
	setupLogging(cfg.Logging.Level, cfg.Logging.Format, c.Verbose)
	return cfg, nil
}

func setupLogging(level config.LogLevel, format config.LogFormat, verbose bool) {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
