package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPlatform   = "platform"
	KeyProfile    = "profile"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyLogPath    = "log_path"
	KeyVersion    = "version"
	KeyStrategy   = "strategy"
	KeyDurationMS = "duration_ms"
	KeyExitCode   = "exit_code"
	KeyLine       = "line"
	KeyError      = "error"
)

func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Profile(p string) slog.Attr      { return slog.String(KeyProfile, p) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func LogPath(p string) slog.Attr      { return slog.String(KeyLogPath, p) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Strategy(s string) slog.Attr     { return slog.String(KeyStrategy, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Line(l string) slog.Attr         { return slog.String(KeyLine, l) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
