package toolchain

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Resolver turns a requested version into an Installation.
type Resolver struct {
	projectRoot    string
	versionFile    string
	defaultVersion string
	roots          []string
	executable     string
	strategies     []Strategy
	getenv         func(string) string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithStrategies replaces the strategy list.
func WithStrategies(strategies ...Strategy) Option {
	return func(r *Resolver) { r.strategies = strategies }
}

// WithGetenv replaces the environment lookup (tests).
func WithGetenv(getenv func(string) string) Option {
	return func(r *Resolver) { r.getenv = getenv }
}

// NewResolver creates a resolver from toolchain configuration. projectRoot
// anchors a relative version file path.
func NewResolver(cfg config.ToolchainConfig, projectRoot string, opts ...Option) *Resolver {
	executable := cfg.Executable
	if executable == "" {
		executable = DefaultExecutable(runtime.GOOS)
	}
	versionFile := cfg.VersionFile
	if versionFile == "" {
		versionFile = config.DefaultVersionFile
	}
	if !filepath.IsAbs(versionFile) {
		versionFile = filepath.Join(projectRoot, versionFile)
	}
	defaultVersion := cfg.DefaultVersion
	if defaultVersion == "" {
		defaultVersion = config.DefaultToolchainVersion
	}

	r := &Resolver{
		projectRoot:    projectRoot,
		versionFile:    versionFile,
		defaultVersion: defaultVersion,
		roots:          expandRoots(cfg.Roots),
		executable:     executable,
		strategies:     DefaultStrategies(),
		getenv:         os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Roots returns the installation roots in priority order.
func (r *Resolver) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

// RequestedVersion determines the version to look for. A non-empty override wins.
func (r *Resolver) RequestedVersion(override string) (string, VersionSource, error) {
	if v := strings.TrimSpace(override); v != "" {
		return v, SourceOverride, nil
	}
	if v := strings.TrimSpace(r.getenv(EnvVersion)); v != "" {
		return v, SourceEnvironment, nil
	}
	v, err := ReadVersionFile(r.versionFile)
	if err != nil {
		return "", "", errors.WrapError(err, errors.CategoryToolchain, "cannot read project version file").
			Fatal().
			WithContext("path", r.versionFile).
			Build()
	}
	if v != "" {
		return v, SourceVersionFile, nil
	}
	return r.defaultVersion, SourceDefault, nil
}

// Resolve finds the installation for requested (empty means "use the
// project's version"). The error is a toolchain-category ClassifiedError.
func (r *Resolver) Resolve(requested string) (Installation, error) {
	version, source, err := r.RequestedVersion(requested)
	if err != nil {
		return Installation{}, err
	}

	lookup := Lookup{Version: version, Roots: r.roots, Executable: r.executable}
	for _, s := range r.strategies {
		inst, ok := s.Find(lookup)
		if !ok {
			continue
		}
		inst.Requested = version
		inst.VersionSource = source
		if !inst.Exact {
			slog.Warn("Exact toolchain version not installed, using nearest match",
				slog.String("requested", version),
				logfields.Version(inst.Version),
				logfields.Path(inst.Path))
		}
		slog.Debug("Resolved toolchain",
			logfields.Version(inst.Version),
			logfields.Strategy(inst.Strategy),
			slog.String("source", string(source)),
			logfields.Path(inst.Path))
		return inst, nil
	}

	return Installation{}, errors.ToolchainError(
		fmt.Sprintf("toolchain %s not found (searched %s)", version, strings.Join(r.roots, ", "))).
		WithContext("version", version).
		WithContext("source", string(source)).
		Build()
}
