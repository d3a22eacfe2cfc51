// Package build provides the Orchestrator, the single entry point that turns
// a BuildRequest into a BuildResult.
//
// The Orchestrator resolves the toolchain once, optionally cleans caches
// once, then runs one pipeline per requested platform, sequentially or in
// parallel. A failing platform does not stop the others; the result maps the
// first failure to a process exit code.
package build
