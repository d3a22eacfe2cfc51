package config

import (
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// Built-in defaults. Kept as exported constants so docs and tests agree with Load.
const (
	DefaultToolchainVersion = "2022.3.10f1"
	DefaultVersionFile      = "ProjectSettings/ProjectVersion.txt"
	DefaultBuildMethod      = "BuildPipeline.BuildFromCommandLine"
	DefaultPreprocessMethod = "DataImport.RunFromCommandLine"
	DefaultCanonicalSource  = "https://cdn.cocoapods.org/"
	DefaultStateDir         = ".appbuilder"
	DefaultLogDir           = "logs"
	DefaultBootTimeout      = 120 * time.Second
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// defaultAppliers run in order; later domains may read earlier results.
var defaultAppliers = []DefaultApplier{
	projectDefaults{},
	toolchainDefaults{},
	platformDefaults{},
	preprocessDefaults{},
	stateDefaults{},
	deviceDefaults{},
	observabilityDefaults{},
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	for _, applier := range defaultAppliers {
		applier.ApplyDefaults(cfg)
	}
}

type projectDefaults struct{}

func (projectDefaults) Domain() string { return "project" }

func (projectDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Project.Path == "" {
		cfg.Project.Path = "."
	}
	if cfg.Project.ProductName == "" {
		cfg.Project.ProductName = "App"
	}
}

type toolchainDefaults struct{}

func (toolchainDefaults) Domain() string { return "toolchain" }

func (toolchainDefaults) ApplyDefaults(cfg *Config) {
	t := &cfg.Toolchain
	if t.DefaultVersion == "" {
		t.DefaultVersion = DefaultToolchainVersion
	}
	if t.VersionFile == "" {
		t.VersionFile = DefaultVersionFile
	}
	if t.BuildMethod == "" {
		t.BuildMethod = DefaultBuildMethod
	}
	if t.LogFlag == "" {
		t.LogFlag = "-logFile"
	}
}

type platformDefaults struct{}

func (platformDefaults) Domain() string { return "platforms" }

func (platformDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Platforms == nil {
		cfg.Platforms = make(map[platform.Platform]PlatformSpec)
	}

	ios := cfg.Platforms[platform.IOS]
	if ios.BuildTarget == "" {
		ios.BuildTarget = "iOS"
	}
	if ios.Output == "" {
		ios.Output = "build/ios/xcode"
	}
	cfg.Platforms[platform.IOS] = ios

	android := cfg.Platforms[platform.Android]
	if android.BuildTarget == "" {
		android.BuildTarget = "Android"
	}
	if android.Output == "" {
		android.Output = "build/android/" + cfg.Project.ProductName + ".aab"
	}
	if android.ExtraArgs == nil {
		android.ExtraArgs = []string{"-buildAppBundle"}
	}
	cfg.Platforms[platform.Android] = android
}

type preprocessDefaults struct{}

func (preprocessDefaults) Domain() string { return "preprocess" }

func (preprocessDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Preprocess.ExecuteMethod == "" && len(cfg.Preprocess.Command) == 0 {
		cfg.Preprocess.ExecuteMethod = DefaultPreprocessMethod
	}
	if len(cfg.Preprocess.SharedPlatforms) == 0 {
		cfg.Preprocess.SharedPlatforms = platform.All()
	}
}

type stateDefaults struct{}

func (stateDefaults) Domain() string { return "state" }

func (stateDefaults) ApplyDefaults(cfg *Config) {
	// Unknown backends are left as-is for ValidateConfig to report.
	if backend, err := stalenessBackendNormalizer.Parse(string(cfg.Staleness.Backend)); err == nil {
		cfg.Staleness.Backend = backend
	}
	if cfg.Staleness.Dir == "" {
		cfg.Staleness.Dir = DefaultStateDir
	}
	if cfg.Manifest.File == "" {
		cfg.Manifest.File = "Podfile"
	}
	if cfg.Manifest.CanonicalSource == "" {
		cfg.Manifest.CanonicalSource = DefaultCanonicalSource
	}
	if cfg.Cache.CleanPaths == nil {
		cfg.Cache.CleanPaths = []string{
			"Library/ScriptAssemblies",
			"Library/Bee",
			"Library/BuildCache",
			"build",
			"~/Library/Developer/Xcode/DerivedData",
		}
	}
}

type deviceDefaults struct{}

func (deviceDefaults) Domain() string { return "device" }

func (deviceDefaults) ApplyDefaults(cfg *Config) {
	d := &cfg.Device
	if d.Bundletool == "" {
		d.Bundletool = "bundletool"
	}
	if d.ADB == "" {
		d.ADB = "adb"
	}
	if d.Emulator == "" {
		d.Emulator = "emulator"
	}
	if d.PackageID == "" {
		d.PackageID = cfg.Project.BundleID
	}
	if d.BootTimeout <= 0 {
		d.BootTimeout = DefaultBootTimeout
	}
	if d.PollInterval <= 0 {
		d.PollInterval = 2 * time.Second
	}
}

type observabilityDefaults struct{}

func (observabilityDefaults) Domain() string { return "observability" }

func (observabilityDefaults) ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = DefaultLogDir
	}
	if cfg.Logging.Keep <= 0 {
		cfg.Logging.Keep = 10
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "appbuilder.builds"
	}
	if cfg.Events.Timeout <= 0 {
		cfg.Events.Timeout = 5 * time.Second
	}
}
