package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read on top of the YAML configuration.
const (
	EnvToolchainVersion = "APPBUILDER_TOOLCHAIN_VERSION"
	EnvToolchainRoots   = "APPBUILDER_TOOLCHAIN_ROOTS"
	EnvLogLevel         = "APPBUILDER_LOG_LEVEL"
	EnvNonInteractive   = "APPBUILDER_NON_INTERACTIVE"
)

// Load loads configuration from the specified file. The file's directory is
// the project root unless project.path says otherwise; .env and .env.local
// next to it are loaded first so ${VAR} references in the YAML resolve.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	baseDir := filepath.Dir(configPath)
	loadEnvFiles(baseDir)

	data, err := os.ReadFile(configPath) // #nosec G304 -- user-selected config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return finalize(&cfg, baseDir)
}

// LoadOrDefault loads configPath when it exists and falls back to built-in
// defaults rooted at the file's directory otherwise.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Debug("No configuration file, using defaults", "path", configPath)
		baseDir := filepath.Dir(configPath)
		loadEnvFiles(baseDir)
		return finalize(&Config{}, baseDir)
	}
	return Load(configPath)
}

func finalize(cfg *Config, baseDir string) (*Config, error) {
	ApplyDefaults(cfg)
	applyEnvOverrides(cfg)

	if !filepath.IsAbs(cfg.Project.Path) {
		cfg.Project.Path = filepath.Join(baseDir, cfg.Project.Path)
	}
	if abs, err := filepath.Abs(cfg.Project.Path); err == nil {
		cfg.Project.Path = abs
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles loads .env then .env.local from dir. Existing process
// environment variables are never overwritten.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", "path", path, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", path)
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvToolchainRoots)); v != "" {
		// Env roots take priority over configured ones.
		roots := filepath.SplitList(v)
		cfg.Toolchain.Roots = append(roots, cfg.Toolchain.Roots...)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
}

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	slog.Info("Configuration file created", "path", configPath)
	return nil
}

const exampleConfig = `# appbuilder project configuration
version: "1"

project:
  path: .
  product_name: MyGame
  bundle_id: com.example.mygame

toolchain:
  # version: 2022.3.10f1   # overrides ProjectSettings/ProjectVersion.txt
  default_version: 2022.3.10f1
  build_method: BuildPipeline.BuildFromCommandLine
  passthrough_env:
    - IOS_TEAM_ID
    - ANDROID_KEYSTORE_PATH
    - ANDROID_KEYSTORE_PASS
    - ANDROID_KEYALIAS_NAME
    - ANDROID_KEYALIAS_PASS

platforms:
  ios:
    build_target: iOS
    output: build/ios/xcode
  android:
    build_target: Android
    output: build/android/MyGame.aab
    extra_args: ["-buildAppBundle"]

preprocess:
  execute_method: DataImport.RunFromCommandLine
  shared_platforms: [ios, android]
  prompt_when_fresh: true

staleness:
  backend: file   # file | sqlite

manifest:
  canonical_source: https://cdn.cocoapods.org/
  deprecated_pods: []

device:
  avd: Pixel_7_API_34
  boot_timeout: 120s

logging:
  level: info
  dir: logs
  keep: 10
`
