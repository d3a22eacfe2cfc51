// Package platform names the build targets appbuilder knows how to drive.
package platform

import (
	"fmt"
	"strings"
)

// Platform identifies a build target.
type Platform string

const (
	// IOS exports an Xcode project whose Podfile is sanitized after the build.
	IOS Platform = "ios"
	// Android produces an app bundle plus a symbols archive and supports --run.
	Android Platform = "android"
)

// All returns every known platform in canonical build order.
func All() []Platform {
	return []Platform{IOS, Android}
}

// String returns the platform identifier.
func (p Platform) String() string { return string(p) }

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == IOS || p == Android
}

// ProducesManifest reports whether the platform's build emits a dependency manifest.
func (p Platform) ProducesManifest() bool { return p == IOS }

// SupportsRun reports whether --run applies to the platform.
func (p Platform) SupportsRun() bool { return p == Android }

// Parse converts a user-supplied name into a platform.
// The historical aliases "A" and "B" map to ios and android.
func Parse(raw string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ios", "a":
		return IOS, nil
	case "android", "b":
		return Android, nil
	default:
		return "", fmt.Errorf("unknown platform %q (expected ios, android or both)", raw)
	}
}

// ParseSelection expands a --platform value ("ios", "android", "both", or a
// comma-separated list) into an ordered, de-duplicated platform list.
func ParseSelection(raw string) ([]Platform, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no platform selected")
	}
	if strings.EqualFold(raw, "both") || strings.EqualFold(raw, "all") {
		return All(), nil
	}

	seen := make(map[Platform]bool)
	for _, part := range strings.Split(raw, ",") {
		p, err := Parse(part)
		if err != nil {
			return nil, err
		}
		seen[p] = true
	}

	// Canonical order regardless of how the user listed them.
	out := make([]Platform, 0, len(seen))
	for _, p := range All() {
		if seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}
