// Package workspace is the linker (spec.md §4.F): it reconciles a root
// manifest, its resolved lock, any fetched local/git/index dependencies
// and a feature system into the build host's workspace and project
// descriptors, recursively connecting each package to its dependencies
// and breaking cycles via a visited-path map.
package workspace

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/descriptor"
	"github.com/RogueMacro/grill/internal/fetch"
	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/manifest"
)

// DefaultMaxDepth bounds the recursive connect's call depth. spec.md §9
// calls for a hard-coded recursion-depth safety valve but leaves the
// bound itself unspecified; 128 is deep enough for any real dependency
// graph while still catching a runaway local cycle quickly.
const DefaultMaxDepth = 128

// Linker performs one full workspace link.
type Linker struct {
	// WorkspaceRoot is the on-disk root the workspace descriptor and
	// every project's rel_path are resolved against.
	WorkspaceRoot string
	// BeefPath is the build toolchain root; <BeefPath>/BeefLibs/corlib
	// is the implicit core library project.
	BeefPath string
	// MaxDepth overrides DefaultMaxDepth when non-zero.
	MaxDepth int
	// Installer fetches git dependencies discovered during linking that
	// weren't already pinned by the resolver (spec.md's lock only covers
	// Simple/Advanced deps; Git deps are discovered package-by-package as
	// the linker walks manifests). May be nil, in which case an
	// unresolved Git dependency is a hard failure.
	Installer *fetch.Installer
}

type linkState struct {
	connects map[string]string // canonical abs path -> tentative identifier
	packages map[string]bool   // accumulated "Packages" workspace folder
	depth    int
}

// Link runs the full bootstrap-then-connect pipeline and persists the
// workspace descriptor and the root project descriptor.
func (l *Linker) Link(root *manifest.Manifest, fetched *Fetched) error {
	ws, err := descriptor.LoadWorkspace(l.WorkspaceRoot)
	if err != nil {
		return err
	}

	ws.ClearProjects()
	corlibPath, err := canonicalize(filepath.Join(l.BeefPath, "BeefLibs", "corlib"))
	if err != nil {
		return errors.Wrap(err, "locating corlib under BeefPath")
	}
	ws.AddProject("corlib", l.relPath(corlibPath), true)

	st := &linkState{connects: make(map[string]string), packages: make(map[string]bool)}

	rootCanon, err := canonicalize(root.Dir)
	if err != nil {
		return err
	}
	tentative := root.Name
	if _, err := l.connect(tentative, l.relPath(rootCanon), rootCanon, true, st, ws, fetched); err != nil {
		return err
	}

	ws.SetFolder("Packages", sortedSet(st.packages))
	return ws.Save(l.WorkspaceRoot)
}

func (l *Linker) maxDepth() int {
	if l.MaxDepth > 0 {
		return l.MaxDepth
	}
	return DefaultMaxDepth
}

func (l *Linker) relPath(absPath string) string {
	rel, err := filepath.Rel(l.WorkspaceRoot, absPath)
	if err != nil {
		return absPath
	}
	return filepath.ToSlash(rel)
}

// connect is the recursive core described in spec.md §4.F. tentative is
// the identifier this call was invoked under — computed by the caller,
// since its shape (plain name, qualified `<parent>/<name>`, versioned
// `<name>-<version>`, or feature `<owner>-<version>/<feature>`) depends
// on which caller is recursing and on the kind of dependency.
func (l *Linker) connect(tentative, relPath, absPath string, isPkg bool, st *linkState, ws *descriptor.Workspace, fetched *Fetched) (string, error) {
	canon, err := canonicalize(absPath)
	if err != nil {
		return "", &grillerr.IOFailure{Cause: err}
	}

	if existing, ok := st.connects[canon]; ok {
		return existing, nil
	}

	st.depth++
	if st.depth > l.maxDepth() {
		return "", &grillerr.CycleDepth{Limit: l.maxDepth()}
	}
	defer func() { st.depth-- }()

	// Record the tentative identifier before descending: this is the
	// cycle breaker a re-entrant connect() on the same path hits above.
	st.connects[canon] = tentative

	m, err := manifest.Load(canon)
	if err != nil {
		return "", err
	}
	proj, err := descriptor.LoadProject(canon)
	if err != nil {
		return "", &grillerr.Parse{SourcePath: canon, Cause: err}
	}

	isBinary := proj.IsBinary()
	proj.ClearDependenciesAndMacros()
	if m.Corlib {
		proj.AddDependency("corlib")
	}

	depNames := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)

	for _, depName := range depNames {
		dep := m.Dependencies[depName]
		if err := l.connectDependency(canon, tentative, isPkg, isBinary, depName, dep, st, ws, proj, fetched); err != nil {
			return "", err
		}
	}

	if isPkg {
		ws.AddProject(tentative, relPath, true)
		st.packages[tentative] = true
	} else {
		ws.AddProject(tentative, relPath, false)
	}

	if err := proj.Save(canon); err != nil {
		return "", err
	}
	return tentative, nil
}

func (l *Linker) connectDependency(
	ownerCanon, ownerTentative string,
	ownerIsPkg, ownerIsBinary bool,
	depName string, dep manifest.Dependency,
	st *linkState, ws *descriptor.Workspace, ownerProj *descriptor.Project,
	fetched *Fetched,
) error {
	var (
		depIdentTentative string
		depAbs            string
		depIsPkg          = true
		features          []string
		defaultFeatures   bool
	)

	switch dep.Kind {
	case manifest.Local:
		abs := filepath.Join(ownerCanon, dep.Path)
		canon, err := canonicalize(abs)
		if err != nil {
			return &grillerr.IOFailure{Cause: err}
		}
		switch {
		case isSubPath(canon, ownerCanon):
			// Case (i): the package currently being connected lives
			// inside the dependency's own tree — we are a child of it.
			depIdentTentative = ownerTentative + "/" + depName
		case isSubPath(ownerCanon, canon):
			// Case (ii): the dependency lives inside our own tree.
			depIdentTentative = depName
			depIsPkg = ownerIsPkg && !ownerIsBinary
		default:
			// Case (iii): external, unrelated to our own directory tree.
			depIdentTentative = depName
		}
		depAbs = canon
		features, defaultFeatures = dep.Features, dep.DefaultFeatures

	case manifest.Simple, manifest.Advanced:
		path, ver, ok := fetched.FindVersion(depName, dep.Requirement)
		if !ok {
			return &grillerr.UnknownPackage{Name: depName}
		}
		canon, err := canonicalize(path)
		if err != nil {
			return &grillerr.IOFailure{Cause: err}
		}
		depIdentTentative = identifierFor(depName, ver.String())
		depAbs = canon
		features, defaultFeatures = dep.Features, dep.DefaultFeatures

	case manifest.Git:
		path, ok := fetched.FindRev(depName, dep.GitRev)
		if !ok {
			fetchedPath, err := l.fetchGit(depName, dep)
			if err != nil {
				return err
			}
			fetched.AddRev(depName, dep.GitRev, fetchedPath)
			path = fetchedPath
		}
		canon, err := canonicalize(path)
		if err != nil {
			return &grillerr.IOFailure{Cause: err}
		}
		depIdentTentative = identifierFor(depName, dep.GitRev)
		depAbs = canon

	default:
		return errors.Errorf("dependency %q: unhandled kind %s", depName, dep.Kind)
	}

	depIdent, err := l.connect(depIdentTentative, l.relPath(depAbs), depAbs, depIsPkg, st, ws, fetched)
	if err != nil {
		return err
	}

	idToAdd := depIdent
	if ownerIsBinary || !ownerIsPkg {
		idToAdd = depName
	}
	ownerProj.AddDependency(idToAdd)

	if dep.Kind == manifest.Local || dep.Kind == manifest.Simple || dep.Kind == manifest.Advanced {
		if err := l.expandDependencyFeatures(depAbs, features, defaultFeatures, st, ws, fetched); err != nil {
			return err
		}
	}
	return nil
}

// expandDependencyFeatures enables the dependency's own requested (plus,
// if requested, default) features and records a FEATURE_<UPPER> macro
// for each on the dependency's own project descriptor.
func (l *Linker) expandDependencyFeatures(depAbs string, features []string, defaultFeatures bool, st *linkState, ws *descriptor.Workspace, fetched *Fetched) error {
	requested := append([]string{}, features...)
	if defaultFeatures {
		m, err := manifest.Load(depAbs)
		if err != nil {
			return err
		}
		requested = append(requested, m.Features.Default...)
	}
	if len(requested) == 0 {
		return nil
	}

	for _, fname := range requested {
		if _, err := l.enableFeature(depAbs, fname, st, ws, fetched); err != nil {
			return err
		}
	}

	depProj, err := descriptor.LoadProject(depAbs)
	if err != nil {
		return &grillerr.Parse{SourcePath: depAbs, Cause: err}
	}
	for _, fname := range requested {
		depProj.AddMacro("FEATURE_" + strings.ToUpper(fname))
	}
	return depProj.Save(depAbs)
}

// enableFeature is spec.md §4.F's enable_feature: List features recurse
// over their sub-feature names, Project features connect a sub-project.
func (l *Linker) enableFeature(ownerAbs, featureName string, st *linkState, ws *descriptor.Workspace, fetched *Fetched) ([]string, error) {
	m, err := manifest.Load(ownerAbs)
	if err != nil {
		return nil, err
	}
	feat, ok := m.Features.Optional[featureName]
	if !ok {
		return nil, &grillerr.UnknownFeature{Owner: m.Name, Name: featureName}
	}

	switch feat.Kind {
	case manifest.FeatureList:
		var created []string
		for _, sub := range feat.Names {
			idents, err := l.enableFeature(ownerAbs, sub, st, ws, fetched)
			if err != nil {
				return nil, err
			}
			created = append(created, idents...)
		}
		return created, nil

	case manifest.FeatureProject:
		featAbs, err := canonicalize(filepath.Join(ownerAbs, feat.Path))
		if err != nil {
			return nil, &grillerr.IOFailure{Cause: err}
		}
		// A feature project pointing back at its own owner would
		// otherwise re-enable the owner's own features forever; the
		// cross-package cycle case is already caught by the visited-path
		// map in connect.
		if featAbs == ownerAbs {
			return nil, nil
		}
		ident := identifierFor(m.Name, m.Version.String()) + "/" + featureName
		depIdent, err := l.connect(ident, l.relPath(featAbs), featAbs, true, st, ws, fetched)
		if err != nil {
			return nil, err
		}
		return []string{depIdent}, nil

	default:
		return nil, errors.Errorf("feature %q: unhandled kind", featureName)
	}
}

func (l *Linker) fetchGit(name string, dep manifest.Dependency) (string, error) {
	if l.Installer == nil {
		return "", &grillerr.FetchFailed{URL: dep.GitURL, Cause: errors.New("no installer configured for an unresolved git dependency")}
	}
	req := fetch.FromGit(name, dep.GitURL, dep.GitRev)
	path, _, err := l.Installer.Install(req)
	return path, err
}

func identifierFor(name, suffix string) string {
	return name + "-" + suffix
}

func isSubPath(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// canonicalize resolves path to an absolute form and, where the parent
// directory already exists, corrects its last path element's case to
// match what's actually on disk — the same case-folding concern the
// build host's filesystem access is sensitive to on case-insensitive
// volumes.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	parent := filepath.Dir(abs)
	base := filepath.Base(abs)

	names, err := godirwalk.ReadDirnames(parent, nil)
	if err != nil {
		return abs, nil
	}
	for _, n := range names {
		if strings.EqualFold(n, base) {
			return filepath.Join(parent, n), nil
		}
	}
	return abs, nil
}

// ListProjects returns the workspace's resolved project identifiers in
// sorted order, a read-only inspection used by `grill list` and by tests
// asserting the linker's output without re-parsing TOML by hand.
func ListProjects(ws *descriptor.Workspace) []string {
	out := make([]string, 0, len(ws.Projects))
	for id := range ws.Projects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
