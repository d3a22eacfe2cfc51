package build

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/color"

	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/pipeline"
)

// WriteSummary prints one block describing the run. Paths inside root are
// shown relative to it.
func WriteSummary(w io.Writer, r *BuildResult, root string) {
	if w == nil || r == nil {
		return
	}
	var b strings.Builder

	header := fmt.Sprintf("Build %s", r.Status())
	b.WriteString(statusStyle(r.Status()).Sprint(header))
	fmt.Fprintf(&b, " (run %s, profile %s", shortID(r.RunID), r.Profile)
	if r.Toolchain != nil {
		fmt.Fprintf(&b, ", toolchain %s", r.Toolchain.Version)
		if !r.Toolchain.Exact {
			b.WriteString(" nearest")
		}
	}
	fmt.Fprintf(&b, ", %s)\n", r.Duration.Round(100*time.Millisecond))

	if r.Err != nil {
		fmt.Fprintf(&b, "  %s %s\n", color.Red.Sprint("error:"), oneLine(r.Err))
		if logPath := errors.ContextString(r.Err, errors.KeyLogPath); logPath != "" {
			fmt.Fprintf(&b, "  log: %s\n", rel(root, logPath))
		}
		for _, line := range diagnostics(r.Err) {
			fmt.Fprintf(&b, "  | %s\n", line)
		}
	}

	if r.PreprocessingSuppressed {
		b.WriteString("  preprocessing prompts skipped for the rest of this run\n")
	}

	for _, p := range r.Order {
		res := r.Platforms[p]
		if res == nil {
			continue
		}
		fmt.Fprintf(&b, "  %-8s %s", p, platformStyle(res.Status).Sprintf("%-24s", res.Status))
		switch {
		case res.Err != nil:
			b.WriteString(oneLine(res.Err))
		case res.Artifact != nil:
			b.WriteString(rel(root, res.Artifact.Path))
			if res.Artifact.SymbolsPath != "" {
				fmt.Fprintf(&b, " + %s", filepath.Base(res.Artifact.SymbolsPath))
			}
		}
		fmt.Fprintf(&b, " (%s)\n", res.Duration.Round(100*time.Millisecond))

		if res.PreprocessingRan {
			b.WriteString("           preprocessing ran\n")
		}
		if res.Sanitize != nil && res.Sanitize.Changed {
			fmt.Fprintf(&b, "           manifest: removed %d duplicate source(s), %d deprecated pod(s)\n",
				res.Sanitize.RemovedDuplicateSources, res.Sanitize.RemovedDeprecatedDeclarations)
		}
		for _, warn := range res.Warnings {
			fmt.Fprintf(&b, "           %s %s\n", color.Yellow.Sprint("warning:"), oneLine(warn))
		}
		if res.Err != nil {
			for _, line := range diagnostics(res.Err) {
				fmt.Fprintf(&b, "           | %s\n", line)
			}
		}
		if res.LogPath != "" && (res.Err != nil || len(res.Warnings) > 0) {
			fmt.Fprintf(&b, "           log: %s\n", rel(root, res.LogPath))
		}
	}

	_, _ = io.WriteString(w, b.String())
}

// maxDiagnosticLines bounds the log excerpt printed under a failed platform.
const maxDiagnosticLines = 10

// diagnostics returns the recognized error lines of a failed tool run, or the
// end of its output when none were recognized.
func diagnostics(err error) []string {
	text := errors.ContextString(err, errors.KeyErrorLines)
	if text == "" {
		text = errors.ContextString(err, errors.KeyTail)
	}
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxDiagnosticLines {
		lines = lines[len(lines)-maxDiagnosticLines:]
	}
	return lines
}

func statusStyle(s BuildStatus) color.Color {
	switch s {
	case BuildStatusSuccess:
		return color.Green
	case BuildStatusPartial, BuildStatusCanceled:
		return color.Yellow
	default:
		return color.Red
	}
}

func platformStyle(s pipeline.Status) color.Color {
	switch s {
	case pipeline.StatusSucceeded:
		return color.Green
	case pipeline.StatusWarning, pipeline.StatusCanceled:
		return color.Yellow
	default:
		return color.Red
	}
}

// oneLine prefers the classified message over the full wrapped chain.
func oneLine(err error) string {
	if classified, ok := errors.AsClassified(err); ok {
		return classified.Message()
	}
	return strings.SplitN(err.Error(), "\n", 2)[0]
}

func rel(root, path string) string {
	if root == "" {
		return path
	}
	if r, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(r, "..") {
		return r
	}
	return path
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
