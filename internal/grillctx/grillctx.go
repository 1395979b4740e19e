// Package grillctx resolves the supporting context a grill invocation
// runs in: the project root (walked up from a starting directory) and
// the per-user config root holding the cached index, scratch space and
// install-time state (spec.md §3, §6).
package grillctx

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/manifest"
)

// ConfigDirName is the per-user config root's directory name, created
// under the user's home directory.
const ConfigDirName = ".grill"

// Ctx carries the resolved roots a single invocation operates against.
type Ctx struct {
	// ProjectRoot is the directory holding Package.toml.
	ProjectRoot string
	// ConfigRoot is "<home>/.grill": index cache, scratch space.
	ConfigRoot string
	// BeefPath is the build toolchain root, read from the BeefPath
	// environment variable. Empty unless set — only the linker requires
	// it, and only at the point it needs to reference corlib.
	BeefPath string
}

// NewContext resolves ConfigRoot from the user's home directory. It does
// not require a project root; LoadProject resolves that separately.
func NewContext() (*Ctx, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.Wrap(err, "resolving home directory")
	}
	root := filepath.Join(home, ConfigDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating config root %s", root)
	}
	return &Ctx{ConfigRoot: root, BeefPath: os.Getenv("BeefPath")}, nil
}

// RequireBeefPath returns BeefPath or a ConfigMissing error describing
// what's absent — the linker's point of no return when it needs to wire
// up the implicit corlib project.
func (c *Ctx) RequireBeefPath() (string, error) {
	if c.BeefPath == "" {
		return "", &grillerr.ConfigMissing{Path: "$BeefPath"}
	}
	return c.BeefPath, nil
}

// ScratchDir is the single mutable scratch directory every clone reuses
// in turn — never more than one fetch is in flight at a time within a
// process, so one shared path is sufficient (spec.md §4.E).
func (c *Ctx) ScratchDir() string {
	return filepath.Join(c.ConfigRoot, "tmp", "fetch")
}

// LoadProject walks up from start looking for Package.toml and, on
// success, sets c.ProjectRoot and returns the parsed manifest. An empty
// start means "the current working directory".
func (c *Ctx) LoadProject(start string) (*manifest.Manifest, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "getting working directory")
		}
		start = wd
	}

	root, err := findProjectRoot(start)
	if err != nil {
		return nil, err
	}
	c.ProjectRoot = root

	m, err := manifest.Load(root)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// findProjectRoot searches from the starting directory upwards looking
// for Package.toml until it reaches the filesystem root.
func findProjectRoot(from string) (string, error) {
	from, err := filepath.Abs(from)
	if err != nil {
		return "", errors.Wrapf(err, "resolving absolute path of %s", from)
	}
	start := from

	for {
		mp := filepath.Join(from, manifest.FileName)
		if _, err := os.Stat(mp); err == nil {
			return from, nil
		} else if !os.IsNotExist(err) {
			return "", &grillerr.IOFailure{Cause: err}
		}

		parent := filepath.Dir(from)
		if parent == from {
			return "", &grillerr.ConfigMissing{Path: start}
		}
		from = parent
	}
}
