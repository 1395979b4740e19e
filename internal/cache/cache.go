// Package cache models the per-workspace package cache layout described
// in spec.md §3: a pkg/ directory whose subdirectories, named
// <pkg>-<version> or <pkg>-<rev>, are the authoritative record of what's
// already installed.
package cache

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"

	"github.com/RogueMacro/grill/internal/atomicfs"
	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/semverx"
)

// DirName is the cache directory's name within a workspace root.
const DirName = "pkg"

// Dir returns the cache directory for a workspace root.
func Dir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, DirName)
}

// IdentForVersion builds the canonical identifier for an indexed or
// local package pinned at a SemVer version.
func IdentForVersion(name string, v semverx.Version) string {
	return name + "-" + v.String()
}

// IdentForRevision builds the canonical identifier for a direct-revision
// git dependency.
func IdentForRevision(name, rev string) string {
	return name + "-" + rev
}

// Path returns the on-disk cache slot for ident within workspaceRoot.
func Path(workspaceRoot, ident string) string {
	return filepath.Join(Dir(workspaceRoot), ident)
}

// Exists reports whether ident's cache slot is already populated.
// Presence of the directory is authoritative — spec.md §3.
func Exists(workspaceRoot, ident string) (bool, error) {
	ok, err := atomicfs.IsDir(Path(workspaceRoot, ident))
	if err != nil {
		return false, &grillerr.IOFailure{Cause: err}
	}
	return ok, nil
}

// List returns every identifier currently present in the cache, sorted
// lexicographically. Uses godirwalk's ReadDirnames, which skips the
// per-entry Lstat a plain os.ReadDir-based scan would pay for names we
// only need as strings.
func List(workspaceRoot string) ([]string, error) {
	names, err := godirwalk.ReadDirnames(Dir(workspaceRoot), nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &grillerr.IOFailure{Cause: err}
	}
	sort.Strings(names)
	return names, nil
}
