package build

import (
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/events"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/gitinfo"
	"git.home.luguber.info/inful/appbuilder/internal/pipeline"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
	"git.home.luguber.info/inful/appbuilder/internal/toolchain"
)

// PlatformResult is the outcome of one platform pipeline.
type PlatformResult = pipeline.Result

// BuildStatus represents the overall outcome of a run.
type BuildStatus string

const (
	BuildStatusSuccess  BuildStatus = "success"
	BuildStatusPartial  BuildStatus = "partial"
	BuildStatusFailed   BuildStatus = "failed"
	BuildStatusCanceled BuildStatus = "canceled"
)

// IsSuccess reports whether every platform built.
func (s BuildStatus) IsSuccess() bool { return s == BuildStatusSuccess }

// BuildResult contains the outcome of one orchestrator run.
type BuildResult struct {
	RunID     string
	Profile   string
	Toolchain *toolchain.Installation
	Source    *gitinfo.Info

	// Order lists the platforms in the order they were requested.
	Order     []platform.Platform
	Platforms map[platform.Platform]*PlatformResult

	// Err is set when the run aborted before or outside the pipelines.
	Err error

	// PreprocessingRan is true when any pipeline ran data preprocessing.
	PreprocessingRan bool

	// PreprocessingSuppressed is true when the user chose skip-all.
	PreprocessingSuppressed bool

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Status summarizes the run.
func (r *BuildResult) Status() BuildStatus {
	if r.Err != nil {
		if errors.HasCategory(r.Err, errors.CategoryCanceled) {
			return BuildStatusCanceled
		}
		return BuildStatusFailed
	}
	failed, canceled := 0, 0
	for _, p := range r.Order {
		res := r.Platforms[p]
		switch {
		case res == nil:
			failed++
		case res.Status == pipeline.StatusCanceled:
			canceled++
		case res.Status.Failed():
			failed++
		}
	}
	switch {
	case canceled > 0:
		return BuildStatusCanceled
	case failed == 0:
		return BuildStatusSuccess
	case failed < len(r.Order):
		return BuildStatusPartial
	default:
		return BuildStatusFailed
	}
}

// FirstError returns the global error, or the error of the first failed
// platform in request order.
func (r *BuildResult) FirstError() error {
	if r.Err != nil {
		return r.Err
	}
	for _, p := range r.Order {
		if res := r.Platforms[p]; res != nil && res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// ExitCode maps the first failure to its class's process exit code.
func (r *BuildResult) ExitCode() int {
	err := r.FirstError()
	if err == nil {
		return errors.ExitOK
	}
	if _, ok := errors.AsClassified(err); !ok {
		return errors.ExitGeneral
	}
	return errors.ExitCodeForCategory(errors.GetCategory(err))
}

// Event converts the result into the published build event.
func (r *BuildResult) Event() events.BuildEvent {
	status := r.Status()
	ev := events.BuildEvent{
		RunID:            r.RunID,
		Profile:          r.Profile,
		Status:           string(status),
		Success:          status.IsSuccess(),
		Source:           r.Source,
		PreprocessingRan: r.PreprocessingRan,
		ExitCode:         r.ExitCode(),
		StartedAt:        r.StartTime,
		DurationMS:       r.Duration.Milliseconds(),
		Platforms:        make([]events.PlatformEvent, 0, len(r.Order)),
	}
	if r.Toolchain != nil {
		ev.Toolchain = r.Toolchain.Version
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	for _, p := range r.Order {
		res := r.Platforms[p]
		if res == nil {
			continue
		}
		pe := events.PlatformEvent{
			Platform:         string(p),
			Status:           string(res.Status),
			LogPath:          res.LogPath,
			PreprocessingRan: res.PreprocessingRan,
			DurationMS:       res.Duration.Milliseconds(),
		}
		if res.Artifact != nil {
			pe.Artifact = res.Artifact.Path
			pe.Symbols = res.Artifact.SymbolsPath
		}
		if res.Err != nil {
			pe.Error = res.Err.Error()
		}
		for _, w := range res.Warnings {
			pe.Warnings = append(pe.Warnings, w.Error())
		}
		ev.Platforms = append(ev.Platforms, pe)
	}
	return ev
}
