package toolchain

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// EnvVersion overrides the project version file when set.
const EnvVersion = "APPBUILDER_TOOLCHAIN_VERSION"

// versionKey is the line prefix holding the editor version in the project version file.
const versionKey = "m_EditorVersion:"

// VersionSource names where a requested version came from.
type VersionSource string

const (
	SourceOverride    VersionSource = "override"
	SourceEnvironment VersionSource = "environment"
	SourceVersionFile VersionSource = "version_file"
	SourceDefault     VersionSource = "default"
)

// ReadVersionFile extracts the editor version from a project version file.
// It returns an empty string without error when the file does not exist.
func ReadVersionFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- project-relative version file
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open version file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, versionKey); ok {
			return strings.TrimSpace(rest), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read version file: %w", err)
	}
	return "", nil
}

// MajorMinor returns the first two dot-separated components of version
// ("2022.3.10f1" -> "2022.3"). Versions with fewer components are returned unchanged.
func MajorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}
