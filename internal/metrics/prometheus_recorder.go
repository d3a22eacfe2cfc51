package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "appbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg                *prom.Registry
	stageDuration      *prom.HistogramVec
	stageResults       *prom.CounterVec
	runDuration        prom.Histogram
	platformOutcome    *prom.CounterVec
	preprocessDecision *prom.CounterVec
	toolchainResolved  *prom.CounterVec
	manifestRemovals   *prom.CounterVec
	lastRun            prom.Gauge
}

// buildBuckets cover minutes-long editor builds.
var buildBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400, 3600}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   buildBuckets,
	}, []string{"platform", "stage"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"platform", "stage", "result"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Total orchestrator run duration",
		Buckets:   buildBuckets,
	})
	pr.platformOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "platform_outcomes_total",
		Help:      "Platform pipeline outcomes by final status",
	}, []string{"platform", "result"})
	pr.preprocessDecision = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "preprocess_decisions_total",
		Help:      "Data preprocessing decisions",
	}, []string{"decision"})
	pr.toolchainResolved = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "toolchain_resolutions_total",
		Help:      "Toolchain resolutions by matching strategy",
	}, []string{"strategy", "exact"})
	pr.manifestRemovals = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "manifest_removed_lines_total",
		Help:      "Lines removed from dependency manifests",
	}, []string{"kind"})
	pr.lastRun = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.platformOutcome,
		pr.preprocessDecision, pr.toolchainResolved, pr.manifestRemovals, pr.lastRun)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(platform, stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(platform, stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(platform, stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(platform, stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncPlatformOutcome(platform string, result ResultLabel) {
	if p == nil {
		return
	}
	p.platformOutcome.WithLabelValues(platform, string(result)).Inc()
}

func (p *PrometheusRecorder) IncPreprocessDecision(decision string) {
	if p == nil {
		return
	}
	p.preprocessDecision.WithLabelValues(decision).Inc()
}

func (p *PrometheusRecorder) IncToolchainResolution(strategy string, exact bool) {
	if p == nil {
		return
	}
	p.toolchainResolved.WithLabelValues(strategy, strconv.FormatBool(exact)).Inc()
}

func (p *PrometheusRecorder) AddManifestRemovals(kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.manifestRemovals.WithLabelValues(kind).Add(float64(n))
}

// WriteTextfile writes all gathered metrics to path in the text exposition
// format, atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
