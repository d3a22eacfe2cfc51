package pipeline

import (
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/manifest"
	"git.home.luguber.info/inful/appbuilder/internal/platform"
)

// Status is the final state of a platform pipeline.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusWarning   Status = "succeeded_with_warnings"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Failed reports whether the status counts as a failed platform.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusCanceled
}

// Artifact is the published output of a platform build.
type Artifact struct {
	Path        string `json:"path"`
	SymbolsPath string `json:"symbols_path,omitempty"` // android only
}

// Result is the outcome of one platform pipeline.
type Result struct {
	Platform         platform.Platform
	Status           Status
	Artifact         *Artifact
	Err              error
	Warnings         []error
	LogPath          string
	EditorLogPath    string
	Preprocessing    Decision
	PreprocessingRan bool
	Sanitize         *manifest.Report
	States           []State
	Duration         time.Duration
}
