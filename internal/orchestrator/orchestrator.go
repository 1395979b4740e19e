// Package orchestrator runs the `make` pipeline (spec.md §2, component
// G): update the index, resolve dependencies, persist the lock, fetch
// every pinned package, and link the workspace — in that order, with
// cancellation observed only at the boundaries between stages.
package orchestrator

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/fetch"
	"github.com/RogueMacro/grill/internal/grillctx"
	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/grilllog"
	"github.com/RogueMacro/grill/internal/index"
	"github.com/RogueMacro/grill/internal/lock"
	"github.com/RogueMacro/grill/internal/manifest"
	"github.com/RogueMacro/grill/internal/resolve"
	"github.com/RogueMacro/grill/internal/vcsutil"
	"github.com/RogueMacro/grill/internal/workspace"
)

// Pipeline wires the five stages together against one Ctx.
type Pipeline struct {
	Ctx *grillctx.Ctx
	Log *grilllog.Logger

	// ForceIndexRefresh skips the "use local snapshot if present" shortcut.
	ForceIndexRefresh bool
	// Progress is forwarded to every package clone.
	Progress vcsutil.ProgressFunc
}

// Make runs the full pipeline for root, whose directory is the
// workspace root. Cancelling ctx is observed between stages, not during
// an in-flight clone (spec.md §5).
func (p *Pipeline) Make(ctx context.Context, root *manifest.Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := p.updateIndex()
	if err != nil {
		return errors.Wrap(err, "updating index")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	newLock, err := p.resolve(root, idx)
	if err != nil {
		return errors.Wrap(err, "resolving dependencies")
	}

	lockPath := filepath.Join(root.Dir, lock.FileName)
	if err := lock.Write(lockPath, newLock); err != nil {
		return errors.Wrap(err, "writing lock")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	installer := fetch.NewInstaller(root.Dir, p.Ctx.ScratchDir(), p.Log)
	installer.Progress = p.Progress
	fetched, err := p.fetchAll(idx, newLock, installer)
	if err != nil {
		return errors.Wrap(err, "fetching packages")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrap(p.link(root, fetched, installer), "linking workspace")
}

func (p *Pipeline) updateIndex() (*index.Index, error) {
	if p.Log != nil {
		p.Log.Stepf("updating index")
	}
	client := index.NewClient(p.Ctx.ConfigRoot, p.Ctx.ScratchDir())
	return client.Load(p.ForceIndexRefresh)
}

func (p *Pipeline) resolve(root *manifest.Manifest, idx *index.Index) (*lock.Lock, error) {
	lockPath := filepath.Join(root.Dir, lock.FileName)
	prev, err := lock.Read(lockPath)
	if err != nil {
		return nil, err
	}
	if prev != nil && lock.Validate(root, prev) {
		if p.Log != nil {
			p.Log.Verbosef("existing lock still satisfies %s, skipping resolution\n", manifest.FileName)
		}
		return prev, nil
	}

	if p.Log != nil {
		p.Log.Stepf("resolving dependencies")
	}
	return resolve.Resolve(root, idx, resolve.NewHint(prev))
}

func (p *Pipeline) fetchAll(idx *index.Index, l *lock.Lock, installer *fetch.Installer) (*workspace.Fetched, error) {
	if p.Log != nil {
		p.Log.Stepf("fetching packages")
	}

	names := make([]string, 0, len(l.Packages))
	for name := range l.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	fetched := workspace.NewFetched()
	for _, name := range names {
		entry, ok := idx.Lookup(name)
		if !ok {
			return nil, &grillerr.UnknownPackage{Name: name}
		}
		for _, v := range l.Packages[name] {
			meta, ok := idx.VersionMeta(name, v)
			if !ok {
				return nil, &grillerr.UnknownPackage{Name: name}
			}
			req := fetch.FromIndex(name, v, entry.URL, meta)
			path, newlyFetched, err := installer.Install(req)
			if err != nil {
				return nil, err
			}
			if p.Log != nil && newlyFetched {
				p.Log.Verbosef("fetched %s\n", req.Ident)
			}
			fetched.AddVersion(name, v, path)
		}
	}
	return fetched, nil
}

func (p *Pipeline) link(root *manifest.Manifest, fetched *workspace.Fetched, installer *fetch.Installer) error {
	if p.Log != nil {
		p.Log.Stepf("linking workspace")
	}
	beefPath, err := p.Ctx.RequireBeefPath()
	if err != nil {
		return err
	}
	linker := &workspace.Linker{
		WorkspaceRoot: root.Dir,
		BeefPath:      beefPath,
		Installer:     installer,
	}
	return linker.Link(root, fetched)
}
