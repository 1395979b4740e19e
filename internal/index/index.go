// Package index models the remote package index: a single TOML document
// mapping package name to its VCS URL and published versions.
package index

import (
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/semverx"
	"github.com/RogueMacro/grill/internal/tomldoc"
)

// FileName is the index's canonical filename within the config root.
const FileName = "index.toml"

// VersionMetadata is one published version of a package.
type VersionMetadata struct {
	Rev  string
	Deps map[string]semverx.Requirement
}

// Entry is one package's row in the index.
type Entry struct {
	URL      string
	Versions map[string]VersionMetadata // keyed by raw version string
}

// Index is the full remote package index.
type Index struct {
	Packages map[string]Entry
}

// Lookup returns the entry for name, or false if unpublished.
func (idx *Index) Lookup(name string) (Entry, bool) {
	e, ok := idx.Packages[name]
	return e, ok
}

// MatchingVersions returns every published version of name that
// satisfies req, sorted ascending — the resolver always pops the
// greatest first, off the tail.
func (idx *Index) MatchingVersions(name string, req semverx.Requirement) ([]semverx.Version, error) {
	entry, ok := idx.Lookup(name)
	if !ok {
		return nil, errors.Errorf("unknown package %q", name)
	}

	var out []semverx.Version
	for raw := range entry.Versions {
		v, err := semverx.ParseVersion(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "index entry %q has invalid version %q", name, raw)
		}
		if req.Matches(v) {
			out = append(out, v)
		}
	}
	semverx.SortAscending(out)
	return out, nil
}

// VersionMeta returns the metadata for name@version.
func (idx *Index) VersionMeta(name string, v semverx.Version) (VersionMetadata, bool) {
	entry, ok := idx.Lookup(name)
	if !ok {
		return VersionMetadata{}, false
	}
	vm, ok := entry.Versions[v.String()]
	return vm, ok
}

// Parse reads an index.toml document.
func Parse(r io.Reader) (*Index, error) {
	doc, err := tomldoc.Load(r)
	if err != nil {
		return nil, err
	}
	return fromDoc(doc)
}

func fromDoc(doc *tomldoc.Doc) (*Index, error) {
	idx := &Index{Packages: make(map[string]Entry)}

	top := doc.Tree()
	for _, name := range top.Keys() {
		raw := top.Get(name)
		t, ok := raw.(tomlTree)
		if !ok {
			return nil, errors.Errorf("index entry %q: expected a table", name)
		}

		url, _ := t.Get("url").(string)
		if url == "" {
			return nil, errors.Errorf("index entry %q: missing url", name)
		}

		entry := Entry{URL: url, Versions: make(map[string]VersionMetadata)}

		versionsRaw, ok := t.Get("versions").(tomlTree)
		if ok {
			for _, verStr := range versionsRaw.Keys() {
				// Version keys contain dots, so they are looked up as a
				// single path component rather than a dotted path.
				vt, ok := versionsRaw.GetPath([]string{verStr}).(tomlTree)
				if !ok {
					return nil, errors.Errorf("index entry %q version %q: expected a table", name, verStr)
				}
				rev, _ := vt.Get("rev").(string)
				vm := VersionMetadata{Rev: rev, Deps: make(map[string]semverx.Requirement)}

				depsRaw, ok := vt.Get("deps").(tomlTree)
				if ok {
					for _, depName := range depsRaw.Keys() {
						reqStr, _ := depsRaw.Get(depName).(string)
						req, err := semverx.ParseRequirement(reqStr)
						if err != nil {
							return nil, errors.Wrapf(err, "index entry %q version %q dep %q", name, verStr, depName)
						}
						vm.Deps[depName] = req
					}
				}
				entry.Versions[verStr] = vm
			}
		}

		idx.Packages[name] = entry
	}

	return idx, nil
}

type tomlTree interface {
	Get(string) interface{}
	GetPath([]string) interface{}
	Has(string) bool
	Keys() []string
}

// SortedNames returns package names in lexicographic order, useful for
// deterministic iteration in tests and diagnostics.
func (idx *Index) SortedNames() []string {
	names := make([]string, 0, len(idx.Packages))
	for n := range idx.Packages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
