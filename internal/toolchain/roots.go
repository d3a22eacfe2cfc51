package toolchain

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultRoots returns the conventional installation roots for goos.
func DefaultRoots(goos string) []string {
	home, _ := os.UserHomeDir()
	switch goos {
	case "darwin":
		return []string{"/Applications/Unity/Hub/Editor"}
	case "windows":
		return []string{`C:\Program Files\Unity\Hub\Editor`}
	default:
		roots := []string{"/opt/unity/editors"}
		if home != "" {
			roots = append([]string{filepath.Join(home, "Unity", "Hub", "Editor")}, roots...)
		}
		return roots
	}
}

// DefaultExecutable returns the editor binary path below <root>/<version> for goos.
func DefaultExecutable(goos string) string {
	switch goos {
	case "darwin":
		return filepath.Join("Unity.app", "Contents", "MacOS", "Unity")
	case "windows":
		return filepath.Join("Editor", "Unity.exe")
	default:
		return filepath.Join("Editor", "Unity")
	}
}

func expandRoots(roots []string) []string {
	if len(roots) == 0 {
		roots = DefaultRoots(runtime.GOOS)
	}
	home, _ := os.UserHomeDir()
	out := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if home != "" && (r == "~" || strings.HasPrefix(r, "~/")) {
			r = filepath.Join(home, strings.TrimPrefix(r, "~"))
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
