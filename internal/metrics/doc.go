// Package metrics records build and stage metrics for appbuilder runs.
//
// Components receive a Recorder and default to NoopRecorder, so no call site
// needs a nil check. When metrics.textfile is configured the CLI swaps in a
// PrometheusRecorder and writes the registry in the node_exporter textfile
// format after the run, which lets CI hosts scrape build timings without a
// long-running process.
package metrics
