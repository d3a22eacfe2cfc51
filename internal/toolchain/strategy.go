package toolchain

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Installation is a resolved editor installation.
type Installation struct {
	Path          string        // editor executable
	Version       string        // installed version (may differ from Requested)
	Requested     string        // version that was asked for
	VersionSource VersionSource // where Requested came from
	Root          string        // installation root the match was found under
	Strategy      string        // name of the strategy that matched
	Exact         bool
}

// Lookup carries the inputs shared by all strategies.
type Lookup struct {
	Version    string
	Roots      []string
	Executable string
}

func (l Lookup) executableIn(root, version string) (string, bool) {
	p := filepath.Join(root, version, l.Executable)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// Strategy finds an installation for a lookup.
type Strategy interface {
	// Find returns Found=false when the strategy cannot satisfy the lookup.
	Find(l Lookup) (Installation, bool)
	// Name identifies the strategy in logs and results.
	Name() string
}

// ExactStrategy matches <root>/<version>/<executable> in root priority order.
type ExactStrategy struct{}

func (ExactStrategy) Name() string { return "exact" }

func (s ExactStrategy) Find(l Lookup) (Installation, bool) {
	for _, root := range l.Roots {
		if p, ok := l.executableIn(root, l.Version); ok {
			return Installation{Path: p, Version: l.Version, Root: root, Strategy: s.Name(), Exact: true}, true
		}
	}
	return Installation{}, false
}

// NearestStrategy matches the lexicographically last installed version that
// shares the requested version's major.minor prefix, across all roots.
type NearestStrategy struct{}

func (NearestStrategy) Name() string { return "nearest" }

func (s NearestStrategy) Find(l Lookup) (Installation, bool) {
	prefix := MajorMinor(l.Version)
	if prefix == "" || !strings.Contains(prefix, ".") {
		return Installation{}, false
	}

	type candidate struct{ root, version, path string }
	var candidates []candidate
	for _, root := range l.Roots {
		matches, err := filepath.Glob(filepath.Join(root, globEscape(prefix)+".*"))
		if err != nil {
			continue
		}
		for _, m := range matches {
			version := filepath.Base(m)
			if p, ok := l.executableIn(root, version); ok {
				candidates = append(candidates, candidate{root: root, version: version, path: p})
			}
		}
	}
	if len(candidates) == 0 {
		return Installation{}, false
	}

	// Stable so that among equal versions the higher-priority root wins.
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].version > candidates[j].version })
	best := candidates[0]
	return Installation{
		Path:     best.path,
		Version:  best.version,
		Root:     best.root,
		Strategy: s.Name(),
		Exact:    best.version == l.Version,
	}, true
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// DefaultStrategies returns the standard resolution order.
func DefaultStrategies() []Strategy {
	return []Strategy{ExactStrategy{}, NearestStrategy{}}
}
