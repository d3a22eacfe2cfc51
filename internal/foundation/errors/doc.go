// Package errors provides the classified error primitives used across appbuilder.
//
// Components return a ClassifiedError carrying a category (toolchain,
// preprocessing, build, sanitize, device, ...), a severity and a scope. The
// orchestrator is the only place that turns a scope into a decision: a
// run-scoped error aborts before any platform starts, a platform-scoped error
// fails one pipeline, a step-scoped error is reported as a warning.
//
// Example usage:
//
//	err := errors.WrapError(runErr, errors.CategoryBuild, "toolchain exited non-zero").
//		ForPlatform().
//		WithContext("log", logPath).
//		Build()
package errors
