package errors

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Process exit codes, one per failure class.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitToolchain     = 3
	ExitPreprocessing = 4
	ExitBuild         = 5
	ExitSanitize      = 6
	ExitConfig        = 7
	ExitCanceled      = 130
)

// KeyLogPath is the context key holding the path of the full log for an error.
const KeyLogPath = "log_path"

// Context keys holding the diagnostic lines of a failed tool run.
const (
	KeyErrorLines = "error_lines"
	KeyTail       = "tail"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	if classified, ok := AsClassified(err); ok {
		return ExitCodeForCategory(classified.Category())
	}
	return ExitGeneral
}

// ExitCodeForCategory maps a category to its process exit code.
func ExitCodeForCategory(category ErrorCategory) int {
	switch category {
	case CategoryValidation:
		return ExitUsage
	case CategoryConfig:
		return ExitConfig
	case CategoryToolchain:
		return ExitToolchain
	case CategoryPreprocessing:
		return ExitPreprocessing
	case CategoryBuild:
		return ExitBuild
	case CategorySanitize:
		return ExitSanitize
	case CategoryCanceled:
		return ExitCanceled
	case CategoryDevice:
		return ExitOK
	default:
		return ExitGeneral
	}
}

// FormatError formats an error as a single line, followed by the log path when known.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}

	line := "Error: " + classified.Message()
	if a.verbose && classified.Cause() != nil {
		line = fmt.Sprintf("Error: %s: %v", classified.Message(), classified.Cause())
	}
	if logPath, ok := classified.Context().GetString(KeyLogPath); ok && logPath != "" {
		line += fmt.Sprintf(" (full log: %s)", logPath)
	}
	return line
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	if a.verbose {
		a.logError(err)
	}
	fmt.Fprintln(os.Stderr, a.FormatError(err))
	os.Exit(exitCode)
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{
		slog.String("category", string(classified.Category())),
		slog.String("scope", string(classified.Scope())),
	}
	if classified.Cause() != nil {
		attrs = append(attrs, slog.String("cause", classified.Cause().Error()))
	}
	a.logger.LogAttrs(context.Background(), a.slogLevelFromSeverity(classified.Severity()), classified.Message(), attrs...)
}

// slogLevelFromSeverity converts ClassifiedError severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
