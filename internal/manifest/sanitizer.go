// Package manifest repairs the CocoaPods Podfile generated by the ios export.
//
// The engine's export can emit several "source" declarations and pods that were
// removed upstream, both of which break "pod install". Sanitize keeps the first
// source line, drops every later one, and drops declarations of deprecated pods.
// When duplicates were present the kept source URL is replaced with the
// canonical spec repository. Every other byte, line endings included, is
// preserved, and sanitizing an already clean file is a no-op.
package manifest

import (
	"bytes"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"lukechampine.com/blake3"

	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
)

// Removal reasons reported for dropped lines.
const (
	ReasonDuplicateSource = "duplicate_source"
	ReasonDeprecatedPod   = "deprecated_pod"
)

var (
	sourceLine = regexp.MustCompile(`^(\s*)source\s+['"]`)
	sourceURL  = regexp.MustCompile(`^(\s*source\s+)(['"])([^'"]*)(['"])`)
	podLine    = regexp.MustCompile(`^\s*pod\s+['"]([^'"/]+)(?:/[^'"]*)?['"]`)
)

// RemovedLine describes one dropped line.
type RemovedLine struct {
	Number int    // 1-based line number in the input
	Text   string // line without its terminator
	Reason string
}

// Report summarizes one sanitize pass.
type Report struct {
	Path                          string
	SourcesFound                  int
	RemovedDuplicateSources       int
	RemovedDeprecatedDeclarations int
	SourceRewritten               bool
	Changed                       bool
	DigestBefore                  string
	DigestAfter                   string
	Removed                       []RemovedLine
}

// Sanitizer applies the Podfile rules.
type Sanitizer struct {
	canonicalSource string
	deprecated      map[string]bool
}

// NewSanitizer creates a sanitizer for the given canonical source and
// deprecated pod names. An empty source keeps the first declaration verbatim.
func NewSanitizer(canonicalSource string, deprecatedPods []string) *Sanitizer {
	dep := make(map[string]bool, len(deprecatedPods))
	for _, p := range deprecatedPods {
		if p = strings.TrimSpace(p); p != "" {
			dep[p] = true
		}
	}
	return &Sanitizer{canonicalSource: canonicalSource, deprecated: dep}
}

// FromConfig creates a sanitizer from manifest configuration.
func FromConfig(cfg config.ManifestConfig) *Sanitizer {
	return NewSanitizer(cfg.CanonicalSource, cfg.DeprecatedPods)
}

// SanitizeBytes returns the sanitized content and a report. It never fails;
// callers decide what a manifest without any source declaration means.
func (s *Sanitizer) SanitizeBytes(data []byte) ([]byte, Report) {
	report := Report{DigestBefore: digest(data)}
	out := make([]byte, 0, len(data))
	rewrite := countSources(data) > 1

	lineNo := 0
	for rest := data; len(rest) > 0; {
		lineNo++
		var line []byte
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i+1], rest[i+1:]
		} else {
			line, rest = rest, nil
		}
		body, eol := splitEOL(line)

		if m := sourceLine.FindSubmatch(body); m != nil {
			report.SourcesFound++
			if report.SourcesFound == 1 {
				if !rewrite {
					out = append(out, line...)
					continue
				}
				rewritten := s.rewriteSource(body)
				if !bytes.Equal(rewritten, body) {
					report.SourceRewritten = true
				}
				out = append(out, rewritten...)
				out = append(out, eol...)
				continue
			}
			report.RemovedDuplicateSources++
			report.Removed = append(report.Removed, RemovedLine{Number: lineNo, Text: string(body), Reason: ReasonDuplicateSource})
			continue
		}

		if m := podLine.FindSubmatch(body); m != nil && s.deprecated[string(m[1])] {
			report.RemovedDeprecatedDeclarations++
			report.Removed = append(report.Removed, RemovedLine{Number: lineNo, Text: string(body), Reason: ReasonDeprecatedPod})
			continue
		}

		out = append(out, line...)
	}

	report.DigestAfter = digest(out)
	report.Changed = report.DigestAfter != report.DigestBefore
	for _, r := range report.Removed {
		slog.Info("Removed manifest line",
			slog.Int("line_number", r.Number),
			slog.String("reason", r.Reason),
			logfields.Line(r.Text))
	}
	return out, report
}

// rewriteSource replaces the quoted URL and keeps the rest of the line.
func (s *Sanitizer) rewriteSource(body []byte) []byte {
	loc := sourceURL.FindSubmatchIndex(body)
	if s.canonicalSource == "" || loc == nil {
		return body
	}
	out := make([]byte, 0, len(body)+len(s.canonicalSource))
	out = append(out, body[:loc[5]]...)
	out = append(out, s.canonicalSource...)
	return append(out, body[loc[8]:]...)
}

func countSources(data []byte) int {
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if sourceLine.Match(line) {
			n++
		}
	}
	return n
}

// Sanitize rewrites the manifest at path in place when it changes.
// Errors are sanitize-category ClassifiedErrors.
func (s *Sanitizer) Sanitize(path string) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{Path: path}, errors.WrapError(err, errors.CategorySanitize, "dependency manifest not found").
			Warning().
			WithContext("path", path).
			Build()
	}
	data, err := os.ReadFile(path) // #nosec G304 -- manifest inside the build output
	if err != nil {
		return Report{Path: path}, errors.WrapError(err, errors.CategorySanitize, "failed to read dependency manifest").
			Warning().
			WithContext("path", path).
			Build()
	}

	out, report := s.SanitizeBytes(data)
	report.Path = path
	if report.SourcesFound == 0 {
		return report, errors.SanitizeError("dependency manifest has no source declaration").
			WithContext("path", path).
			Build()
	}
	if !report.Changed {
		slog.Debug("Manifest already clean", logfields.Path(path))
		return report, nil
	}

	if err := writeAtomic(path, out, info.Mode().Perm()); err != nil {
		return report, errors.WrapError(err, errors.CategorySanitize, "failed to write dependency manifest").
			Warning().
			WithContext("path", path).
			Build()
	}
	slog.Info("Sanitized dependency manifest",
		logfields.Path(path),
		slog.Int("removed_sources", report.RemovedDuplicateSources),
		slog.Int("removed_deprecated", report.RemovedDeprecatedDeclarations))
	return report, nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func splitEOL(line []byte) (body, eol []byte) {
	switch {
	case bytes.HasSuffix(line, []byte("\r\n")):
		return line[:len(line)-2], line[len(line)-2:]
	case bytes.HasSuffix(line, []byte("\n")):
		return line[:len(line)-1], line[len(line)-1:]
	default:
		return line, nil
	}
}

func digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
