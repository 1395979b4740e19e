// Package fetch is the fetch/cache engine: content-addressed package
// acquisition from version-controlled remotes, revision checkout, atomic
// placement into a per-workspace cache, and idempotent re-entry
// (spec.md §4.E).
package fetch

import (
	"os"
	"path/filepath"

	"github.com/theckman/go-flock"

	"github.com/RogueMacro/grill/internal/atomicfs"
	"github.com/RogueMacro/grill/internal/cache"
	"github.com/RogueMacro/grill/internal/descriptor"
	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/grilllog"
	"github.com/RogueMacro/grill/internal/index"
	"github.com/RogueMacro/grill/internal/manifest"
	"github.com/RogueMacro/grill/internal/semverx"
	"github.com/RogueMacro/grill/internal/vcsutil"
)

// Request describes one package to fetch: its canonical identifier, its
// clone URL, and the revision to check out (empty means "whatever HEAD
// of the default branch is").
type Request struct {
	Ident string
	URL   string
	Rev   string
}

// FromIndex builds a Request for a package resolved through the index.
func FromIndex(name string, v semverx.Version, entryURL string, meta index.VersionMetadata) Request {
	return Request{Ident: cache.IdentForVersion(name, v), URL: entryURL, Rev: meta.Rev}
}

// FromGit builds a Request for a direct-revision git dependency.
func FromGit(name, url, rev string) Request {
	return Request{Ident: cache.IdentForRevision(name, rev), URL: url, Rev: rev}
}

// Installer places requested packages into a workspace's package cache.
type Installer struct {
	WorkspaceRoot string
	ScratchDir    string
	Progress      vcsutil.ProgressFunc
	Log           *grilllog.Logger
}

// NewInstaller builds an Installer rooted at workspaceRoot, using
// scratchDir as the global process-wide scratch directory.
func NewInstaller(workspaceRoot, scratchDir string, log *grilllog.Logger) *Installer {
	return &Installer{WorkspaceRoot: workspaceRoot, ScratchDir: scratchDir, Log: log}
}

// scratchLockPath guards the scratch directory against concurrent grill
// invocations; the core itself is single-threaded and sequential
// (spec.md §5), but two separate process invocations racing on the same
// scratch path would otherwise corrupt each other's clone.
func (in *Installer) scratchLockPath() string {
	return in.ScratchDir + ".lock"
}

// Install fetches req into the cache if it isn't already present.
// Returns (path, fetched=false) immediately when the slot already
// exists — the idempotence property from spec.md §8.
func (in *Installer) Install(req Request) (string, bool, error) {
	target := cache.Path(in.WorkspaceRoot, req.Ident)

	exists, err := cache.Exists(in.WorkspaceRoot, req.Ident)
	if err != nil {
		return "", false, err
	}
	if exists {
		return target, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(in.ScratchDir), 0o755); err != nil {
		return "", false, &grillerr.IOFailure{Cause: err}
	}

	fl := flock.NewFlock(in.scratchLockPath())
	if err := fl.Lock(); err != nil {
		return "", false, &grillerr.IOFailure{Cause: err}
	}
	defer fl.Unlock()

	if err := os.MkdirAll(cache.Dir(in.WorkspaceRoot), 0o755); err != nil {
		return "", false, &grillerr.IOFailure{Cause: err}
	}

	if err := in.cloneAndPlace(req, target); err != nil {
		os.RemoveAll(in.ScratchDir)
		os.RemoveAll(target)
		return "", false, err
	}

	if err := preparePkg(target, req.Ident); err != nil {
		os.RemoveAll(target)
		return "", false, err
	}

	return target, true, nil
}

// Reinstall removes any existing cache slot for req and re-fetches it.
// The CLI-level confirmation prompt for a destructive reinstall is a
// caller concern; this is just the idempotent remove-then-add primitive.
func (in *Installer) Reinstall(req Request) (string, bool, error) {
	target := cache.Path(in.WorkspaceRoot, req.Ident)
	if err := os.RemoveAll(target); err != nil {
		return "", false, &grillerr.IOFailure{Cause: err}
	}
	return in.Install(req)
}

func (in *Installer) cloneAndPlace(req Request, target string) error {
	if err := vcsutil.CleanStart(in.ScratchDir); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	if in.Log != nil {
		in.Log.Verbosef("cloning %s\n", req.URL)
	}

	repo, err := vcsutil.Clone(req.URL, in.ScratchDir, in.Progress)
	if err != nil {
		return &grillerr.FetchFailed{URL: req.URL, Cause: err}
	}

	if req.Rev != "" {
		if err := repo.Checkout(req.Rev); err != nil {
			repo.Release()
			return &grillerr.FetchFailed{URL: req.URL, Cause: err}
		}
	}

	// Release the VCS handle before renaming: nothing may still hold the
	// scratch directory open at the point of the atomic move.
	repo.Release()

	if err := atomicfs.RenameWithFallback(in.ScratchDir, target); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	return nil
}

// preparePkg rewrites a freshly placed package's own project descriptor
// (canonical name, implicit corlib dependency) and, for every Project
// feature it declares, rewrites that feature's sub-project descriptor
// too: renamed to "<ident>/<feature>", dependencies reduced to corlib
// plus the feature manifest's own Local deps.
func preparePkg(pkgDir, ident string) error {
	proj, err := loadProjectOrNil(pkgDir)
	if err != nil {
		return err
	}
	if proj == nil {
		// Some packages carry no project descriptor of their own (pure
		// dependency bundles); nothing to prepare.
		return nil
	}

	proj.Name = ident
	proj.AddDependency("corlib")
	if err := proj.Save(pkgDir); err != nil {
		return err
	}

	m, err := manifest.Load(pkgDir)
	if err != nil {
		return err
	}

	for featureName, feat := range m.Features.Optional {
		if feat.Kind != manifest.FeatureProject {
			continue
		}
		if err := prepareFeatureProject(pkgDir, ident, featureName, feat); err != nil {
			return err
		}
	}
	return nil
}

func prepareFeatureProject(pkgDir, ident, featureName string, feat manifest.Feature) error {
	featDir := filepath.Join(pkgDir, feat.Path)
	featProj, err := descriptor.LoadProject(featDir)
	if err != nil {
		return &grillerr.Parse{SourcePath: featDir, Cause: err}
	}
	featProj.Name = ident + "/" + featureName

	featManifest, err := manifest.Load(featDir)
	if err != nil {
		return err
	}

	featProj.ClearDependenciesAndMacros()
	featProj.AddDependency("corlib")
	for _, dep := range featManifest.Dependencies {
		if dep.Kind != manifest.Local {
			continue
		}
		localDir := filepath.Join(featDir, dep.Path)
		localProj, err := descriptor.LoadProject(localDir)
		if err != nil {
			return &grillerr.Parse{SourcePath: localDir, Cause: err}
		}
		featProj.AddDependency(localProj.Name)
	}

	return featProj.Save(featDir)
}

func loadProjectOrNil(dir string) (*descriptor.Project, error) {
	if _, err := os.Stat(filepath.Join(dir, descriptor.ProjectFileName)); os.IsNotExist(err) {
		return nil, nil
	}
	proj, err := descriptor.LoadProject(dir)
	if err != nil {
		return nil, &grillerr.Parse{SourcePath: dir, Cause: err}
	}
	return proj, nil
}
