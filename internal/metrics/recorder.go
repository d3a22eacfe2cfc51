package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build and stage metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveStageDuration(platform, stage string, d time.Duration)
	IncStageResult(platform, stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncPlatformOutcome(platform string, result ResultLabel)
	IncPreprocessDecision(decision string) // run|skip|skip_all|forced|reused|failed
	IncToolchainResolution(strategy string, exact bool)
	AddManifestRemovals(kind string, n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)                   {}
func (NoopRecorder) IncPlatformOutcome(string, ResultLabel)             {}
func (NoopRecorder) IncPreprocessDecision(string)                       {}
func (NoopRecorder) IncToolchainResolution(string, bool)                {}
func (NoopRecorder) AddManifestRemovals(string, int)                    {}
