// Package lock models Package.lock: the persistent record pinning exact
// versions for every transitive indexed dependency, one version set per
// package name, at most one version per major line.
package lock

import (
	"os"
	"sort"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/manifest"
	"github.com/RogueMacro/grill/internal/semverx"
)

// FileName is the lockfile's canonical filename within a workspace root.
const FileName = "Package.lock"

// Lock pins, for every resolved package, the set of locked major-line
// versions.
type Lock struct {
	Packages map[string][]semverx.Version
}

// New returns an empty Lock.
func New() *Lock {
	return &Lock{Packages: make(map[string][]semverx.Version)}
}

// Add records version v as locked for name, maintaining ascending order.
// It does not enforce major-line uniqueness; callers that build a Lock
// from resolver output are expected to group by major line themselves.
func (l *Lock) Add(name string, v semverx.Version) {
	l.Packages[name] = append(l.Packages[name], v)
	semverx.SortAscending(l.Packages[name])
}

// MajorLineUnique reports whether no two versions of any single package
// share a major component.
func (l *Lock) MajorLineUnique() bool {
	for _, versions := range l.Packages {
		seen := make(map[int64]bool, len(versions))
		for _, v := range versions {
			if seen[v.Major()] {
				return false
			}
			seen[v.Major()] = true
		}
	}
	return true
}

// Matching returns the locked version of name that satisfies req, if any.
func (l *Lock) Matching(name string, req semverx.Requirement) (semverx.Version, bool) {
	for _, v := range l.Packages[name] {
		if req.Matches(v) {
			return v, true
		}
	}
	return semverx.Version{}, false
}

// Validate reports whether l is a valid lock for m: every index-resolved
// dependency (Simple or Advanced) has some locked version matching its
// requirement, and the major-line-uniqueness invariant holds throughout.
func Validate(m *manifest.Manifest, l *Lock) bool {
	if !l.MajorLineUnique() {
		return false
	}
	for name, dep := range m.Dependencies {
		if dep.Kind != manifest.Simple && dep.Kind != manifest.Advanced {
			continue
		}
		if _, ok := l.Matching(name, dep.Requirement); !ok {
			return false
		}
	}
	return true
}

// Read parses a lockfile from path.
func Read(path string) (*Lock, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &grillerr.IOFailure{Cause: err}
	}
	defer f.Close()

	tree, err := toml.LoadReader(f)
	if err != nil {
		return nil, &grillerr.Parse{SourcePath: path, Cause: err}
	}

	l := New()
	for _, name := range tree.Keys() {
		raw := tree.Get(name)
		items, ok := raw.([]interface{})
		if !ok {
			return nil, &grillerr.Parse{SourcePath: path, Cause: errors.Errorf("%s: expected an array of version strings", name)}
		}
		for _, it := range items {
			s, ok := it.(string)
			if !ok {
				return nil, &grillerr.Parse{SourcePath: path, Cause: errors.Errorf("%s: version entries must be strings", name)}
			}
			v, err := semverx.ParseVersion(s)
			if err != nil {
				return nil, &grillerr.Parse{SourcePath: path, Cause: err}
			}
			l.Packages[name] = append(l.Packages[name], v)
		}
		semverx.SortAscending(l.Packages[name])
	}
	return l, nil
}

// Write serializes l to path in deterministic, sorted canonical form:
// package names lexicographic at the top level, versions ascending
// within each package. Repeated generation over unchanged inputs
// therefore yields byte-identical output.
func Write(path string, l *Lock) error {
	names := make([]string, 0, len(l.Packages))
	for n := range l.Packages {
		names = append(names, n)
	}
	sort.Strings(names)

	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	for _, name := range names {
		versions := append([]semverx.Version(nil), l.Packages[name]...)
		semverx.SortAscending(versions)
		strs := make([]string, len(versions))
		for i, v := range versions {
			strs[i] = v.String()
		}
		tree.Set(name, strs)
	}

	if err := os.WriteFile(path, []byte(tree.String()), 0o644); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	return nil
}
