package config

import (
	"errors"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// ValidateConfig checks a configuration after defaults were applied.
func ValidateConfig(cfg *Config) error {
	var errs []error

	if v := strings.TrimSpace(cfg.Version); v != "" && v != "1" {
		errs = append(errs, fmt.Errorf("unsupported config version %q (expected 1)", v))
	}
	for p, spec := range cfg.Platforms {
		if !p.Valid() {
			errs = append(errs, fmt.Errorf("platforms: unknown platform %q", p))
			continue
		}
		if spec.BuildTarget == "" {
			errs = append(errs, fmt.Errorf("platforms.%s.build_target is required", p))
		}
		if spec.Output == "" {
			errs = append(errs, fmt.Errorf("platforms.%s.output is required", p))
		}
	}
	for _, p := range cfg.Preprocess.SharedPlatforms {
		if !p.Valid() {
			errs = append(errs, fmt.Errorf("preprocess.shared_platforms: unknown platform %q", p))
		}
	}
	if len(cfg.Preprocess.Command) == 0 && cfg.Preprocess.ExecuteMethod == "" {
		errs = append(errs, errors.New("preprocess: either command or execute_method must be set"))
	}
	if _, err := stalenessBackendNormalizer.Parse(string(cfg.Staleness.Backend)); err != nil {
		errs = append(errs, err)
	}
	if strings.ContainsAny(cfg.Manifest.CanonicalSource, "'\"\n") {
		errs = append(errs, errors.New("manifest.canonical_source must not contain quotes or newlines"))
	}
	if cfg.Device.BootTimeout < cfg.Device.PollInterval {
		errs = append(errs, fmt.Errorf("device.boot_timeout (%s) must be >= poll_interval (%s)", cfg.Device.BootTimeout, cfg.Device.PollInterval))
	}

	return errors.Join(errs...)
}

// RequirePlatforms ensures the given platforms have a usable spec.
func (c *Config) RequirePlatforms(platforms []platform.Platform) error {
	for _, p := range platforms {
		if _, ok := c.Platforms[p]; !ok {
			return fmt.Errorf("platform %s is not configured", p)
		}
	}
	return nil
}
