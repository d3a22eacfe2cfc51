package config

import (
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// DefaultPath is the project-local configuration file name.
const DefaultPath = "appbuilder.yaml"

// Config represents the appbuilder project configuration.
type Config struct {
	Version    string                             `yaml:"version"`
	Project    ProjectConfig                      `yaml:"project"`
	Toolchain  ToolchainConfig                    `yaml:"toolchain"`
	Platforms  map[platform.Platform]PlatformSpec `yaml:"platforms"`
	Preprocess PreprocessConfig                   `yaml:"preprocess"`
	Staleness  StalenessConfig                    `yaml:"staleness"`
	Manifest   ManifestConfig                     `yaml:"manifest"`
	Cache      CacheConfig                        `yaml:"cache"`
	Device     DeviceConfig                       `yaml:"device"`
	Logging    LoggingConfig                      `yaml:"logging"`
	Metrics    MetricsConfig                      `yaml:"metrics"`
	Events     EventsConfig                       `yaml:"events"`
}

// ProjectConfig describes the engine project being built.
type ProjectConfig struct {
	Path        string `yaml:"path"`
	ProductName string `yaml:"product_name"`
	BundleID    string `yaml:"bundle_id"`
}

// ToolchainConfig controls editor resolution and headless invocation.
type ToolchainConfig struct {
	Version        string   `yaml:"version,omitempty"`
	DefaultVersion string   `yaml:"default_version"`
	VersionFile    string   `yaml:"version_file"`
	Roots          []string `yaml:"roots,omitempty"`
	Executable     string   `yaml:"executable,omitempty"` // path below <root>/<version>
	BuildMethod    string   `yaml:"build_method"`
	LogFlag        string   `yaml:"log_flag"`
	PassthroughEnv []string `yaml:"passthrough_env,omitempty"`
}

// PlatformSpec describes how one platform is built.
type PlatformSpec struct {
	BuildTarget string   `yaml:"build_target"`
	Output      string   `yaml:"output"`
	ExtraArgs   []string `yaml:"extra_args,omitempty"`
}

// PreprocessConfig controls the data preprocessing collaborator.
type PreprocessConfig struct {
	// Command, when set, is run instead of the toolchain execute-method.
	// The token {profile} is replaced by the build profile.
	Command         []string            `yaml:"command,omitempty"`
	ExecuteMethod   string              `yaml:"execute_method"`
	SharedPlatforms []platform.Platform `yaml:"shared_platforms,omitempty"`
	PromptWhenFresh *bool               `yaml:"prompt_when_fresh,omitempty"`
}

// ShouldPromptWhenFresh reports whether interactive runs ask even when a marker exists.
func (p PreprocessConfig) ShouldPromptWhenFresh() bool {
	return p.PromptWhenFresh == nil || *p.PromptWhenFresh
}

// StalenessBackend selects the marker storage.
type StalenessBackend string

const (
	StalenessBackendFile   StalenessBackend = "file"
	StalenessBackendSQLite StalenessBackend = "sqlite"
)

// StalenessConfig controls where preprocessing markers live.
type StalenessConfig struct {
	Backend StalenessBackend `yaml:"backend"`
	Dir     string           `yaml:"dir"`
}

// ManifestConfig controls the Podfile safety net.
type ManifestConfig struct {
	File            string   `yaml:"file"`
	CanonicalSource string   `yaml:"canonical_source"`
	DeprecatedPods  []string `yaml:"deprecated_pods,omitempty"`
}

// CacheConfig lists the directories removed by --clean-cache.
type CacheConfig struct {
	CleanPaths []string `yaml:"clean_paths,omitempty"`
}

// DeviceConfig controls --run device tooling.
type DeviceConfig struct {
	Bundletool   string        `yaml:"bundletool"`
	ADB          string        `yaml:"adb"`
	Emulator     string        `yaml:"emulator"`
	AVD          string        `yaml:"avd,omitempty"`
	PackageID    string        `yaml:"package_id,omitempty"`
	BootTimeout  time.Duration `yaml:"boot_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LoggingConfig controls slog output and build log retention.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
	Dir    string    `yaml:"dir"`
	Keep   int       `yaml:"keep"`
}

// MetricsConfig controls Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// EventsConfig controls NATS publication of build results.
type EventsConfig struct {
	NATSURL string        `yaml:"nats_url,omitempty"`
	Subject string        `yaml:"subject"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlatformSpecFor returns the spec for p (defaults applied by Load).
func (c *Config) PlatformSpecFor(p platform.Platform) PlatformSpec {
	return c.Platforms[p]
}
