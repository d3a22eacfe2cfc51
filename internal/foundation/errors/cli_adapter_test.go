package errors

import (
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitOK},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: ExitUsage},
		{name: "config", err: ConfigError("bad config").Build(), expected: ExitConfig},
		{name: "toolchain", err: ToolchainError("not found").Build(), expected: ExitToolchain},
		{name: "preprocessing", err: PreprocessingError("import failed").Build(), expected: ExitPreprocessing},
		{name: "build", err: BuildError("exit 1").Build(), expected: ExitBuild},
		{name: "sanitize", err: SanitizeError("malformed").Build(), expected: ExitSanitize},
		{name: "canceled", err: CanceledError("interrupted").Build(), expected: ExitCanceled},
		{name: "device never fails the process", err: DeviceError("no adb").Build(), expected: ExitOK},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, expected: ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.ExitCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "nil error", err: nil, contains: ""},
		{
			name:     "classified with log path",
			err:      BuildError("toolchain exited with status 1").WithContext(KeyLogPath, "logs/ios.log").Build(),
			contains: "toolchain exited with status 1 (full log: logs/ios.log)",
		},
		{name: "unclassified error", err: &customError{msg: "unknown error"}, contains: "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.FormatError(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("FormatError() = %q, want empty string", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
			if strings.Contains(got, "\n") {
				t.Errorf("FormatError() must be a single line, got %q", got)
			}
		})
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
