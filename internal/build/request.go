package build

import (
	"fmt"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/pipeline"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/staleness"
)

// ReleaseProfile is the profile implied by --release.
const ReleaseProfile = "prod"

// DefaultProfile is used when neither --profile nor --release is given.
const DefaultProfile = "dev"

// BuildRequest contains all inputs for one orchestrator run. It is built once
// from CLI flags and passed by value.
type BuildRequest struct {
	// Platforms in build order, without duplicates.
	Platforms []platform.Platform

	// Profile is the build configuration name, e.g. dev or prod.
	Profile string

	// ToolchainVersion overrides every other version source when set.
	ToolchainVersion string

	CleanCache         bool
	SkipPreprocessing  bool
	ForcePreprocessing bool
	RunAfterBuild      bool
	StrictManifest     bool

	// Parallel runs platform pipelines concurrently.
	Parallel bool
}

// ProfileFor applies the --release rule: an explicit profile wins, release
// implies prod, otherwise dev.
func ProfileFor(explicit string, release bool) string {
	switch {
	case explicit != "":
		return explicit
	case release:
		return ReleaseProfile
	default:
		return DefaultProfile
	}
}

// Validate checks the request before anything runs.
func (r BuildRequest) Validate() error {
	if len(r.Platforms) == 0 {
		return errors.ValidationError("no platform selected").Build()
	}
	seen := make(map[platform.Platform]bool, len(r.Platforms))
	for _, p := range r.Platforms {
		if !p.Valid() {
			return errors.ValidationError(fmt.Sprintf("unknown platform %q", p)).Build()
		}
		if seen[p] {
			return errors.ValidationError(fmt.Sprintf("platform %s requested twice", p)).Build()
		}
		seen[p] = true
	}
	if r.SkipPreprocessing && r.ForcePreprocessing {
		return errors.ValidationError("--skip-preprocess and --preprocess cannot be combined").Build()
	}
	return staleness.Key{Platform: r.Platforms[0], Profile: r.Profile}.Validate()
}

func (r BuildRequest) pipelineRequest() pipeline.Request {
	return pipeline.Request{
		Profile:            r.Profile,
		SkipPreprocessing:  r.SkipPreprocessing,
		ForcePreprocessing: r.ForcePreprocessing,
		RunAfterBuild:      r.RunAfterBuild,
		StrictManifest:     r.StrictManifest,
	}
}
