package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.ObserveStageDuration("ios", "toolchain_build", 90*time.Second)
	pr.IncStageResult("ios", "toolchain_build", ResultSuccess)
	pr.ObserveRunDuration(2 * time.Minute)
	pr.IncPlatformOutcome("android", ResultFailed)
	pr.IncPreprocessDecision("run")
	pr.IncToolchainResolution("nearest", false)
	pr.AddManifestRemovals("duplicate_source", 2)
	pr.AddManifestRemovals("deprecated_pod", 0)

	mfs, err := pr.Registry().Gather()
	require.NoError(t, err)

	counters := map[string][]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counters[mf.GetName()] = append(counters[mf.GetName()], c.GetValue())
			}
		}
	}
	assert.Equal(t, []float64{1}, counters["appbuilder_stage_results_total"])
	assert.Equal(t, []float64{1}, counters["appbuilder_platform_outcomes_total"])
	assert.Equal(t, []float64{2}, counters["appbuilder_manifest_removed_lines_total"], "zero removals add no series")
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncPreprocessDecision("skip")

	path := filepath.Join(t.TempDir(), "textfile", "appbuilder.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `appbuilder_preprocess_decisions_total{decision="skip"} 1`)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("ios", "x", time.Second)
	r.IncPlatformOutcome("ios", ResultSuccess)
	r.AddManifestRemovals("x", 3)
}
