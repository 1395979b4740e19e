// Package semverx adapts github.com/Masterminds/semver/v3 to the two
// concepts the resolver needs: a totally ordered Version, and a
// Requirement that can test membership and whose default textual form,
// when auto-generated from a concrete version, is the caret form.
package semverx

import (
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a parsed SemVer version.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a SemVer version string.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	return Version{v: v}, nil
}

// MustParseVersion is ParseVersion, panicking on error. Intended for
// fixtures and tests that embed literal versions.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in canonical SemVer form.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Major returns the major component.
func (v Version) Major() int64 {
	return v.v.Major()
}

// Zero reports whether this is the zero Version (no version parsed).
func (v Version) Zero() bool {
	return v.v == nil
}

// SameMajor reports whether two versions share a major component. Two
// zero Versions are never considered to share a major.
func (v Version) SameMajor(o Version) bool {
	if v.Zero() || o.Zero() {
		return false
	}
	return v.Major() == o.Major()
}

// Equal reports value equality.
func (v Version) Equal(o Version) bool {
	if v.Zero() || o.Zero() {
		return v.Zero() == o.Zero()
	}
	return v.v.Equal(o.v)
}

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool {
	return v.v.LessThan(o.v)
}

// SortAscending sorts versions from lowest to highest, matching the
// resolver's convention that the greatest available version is always
// popped last off a slice (i.e. from its tail).
func SortAscending(vs []Version) {
	sort.Slice(vs, func(i, j int) bool {
		return vs[i].LessThan(vs[j])
	})
}

// Requirement is a SemVer constraint set, evaluated conjunctively.
type Requirement struct {
	raw string
	c   *semver.Constraints
}

// ParseRequirement parses a SemVer requirement (e.g. "^1.2.3", ">=1.0.0,
// <2.0.0").
func ParseRequirement(s string) (Requirement, error) {
	c, err := semver.NewConstraint(s)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "invalid requirement %q", s)
	}
	return Requirement{raw: s, c: c}, nil
}

// MustParseRequirement is ParseRequirement, panicking on error. Intended
// for fixtures and tests that embed literal requirements.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// Caret builds the default requirement auto-generated from a concrete
// version: the caret form "^x.y.z".
func Caret(v Version) Requirement {
	return MustParseRequirement("^" + v.String())
}

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	if r.c == nil {
		return false
	}
	return r.c.Check(v.v)
}

// String renders the original requirement text.
func (r Requirement) String() string {
	return r.raw
}
