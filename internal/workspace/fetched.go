package workspace

import "github.com/RogueMacro/grill/internal/semverx"

// Fetched is the linker's view of where resolved and git-pinned packages
// landed on disk, keyed the way spec.md §4.F describes: by (name,
// version) for index-resolved packages and by (name, revision) for
// direct-revision git dependencies.
type Fetched struct {
	byVersion map[string][]versionSlot
	byRev     map[string]map[string]string
}

type versionSlot struct {
	version semverx.Version
	path    string
}

// NewFetched returns an empty registry.
func NewFetched() *Fetched {
	return &Fetched{
		byVersion: make(map[string][]versionSlot),
		byRev:     make(map[string]map[string]string),
	}
}

// AddVersion records where an index-resolved package's exact version was
// installed.
func (f *Fetched) AddVersion(name string, v semverx.Version, path string) {
	f.byVersion[name] = append(f.byVersion[name], versionSlot{version: v, path: path})
}

// AddRev records where a direct-revision git dependency was installed.
func (f *Fetched) AddRev(name, rev, path string) {
	if f.byRev[name] == nil {
		f.byRev[name] = make(map[string]string)
	}
	f.byRev[name][rev] = path
}

// FindVersion locates the fetched package whose name matches and whose
// installed version satisfies req.
func (f *Fetched) FindVersion(name string, req semverx.Requirement) (string, semverx.Version, bool) {
	for _, slot := range f.byVersion[name] {
		if req.Matches(slot.version) {
			return slot.path, slot.version, true
		}
	}
	return "", semverx.Version{}, false
}

// FindRev locates a fetched direct-revision git dependency by exact
// revision string.
func (f *Fetched) FindRev(name, rev string) (string, bool) {
	p, ok := f.byRev[name][rev]
	return p, ok
}
