package index

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/vcsutil"
)

// RemoteURL is the fixed VCS URL hosting index.toml at its root.
const RemoteURL = "https://github.com/beefytech/BeefIndex"

// Client loads and refreshes the local index snapshot kept under a
// config root (<home>/.grill).
type Client struct {
	ConfigRoot string
	ScratchDir string
	RemoteURL  string
}

// NewClient builds a Client rooted at configRoot, using scratchDir as the
// global process-wide scratch directory for the refresh clone.
func NewClient(configRoot, scratchDir string) *Client {
	return &Client{ConfigRoot: configRoot, ScratchDir: scratchDir, RemoteURL: RemoteURL}
}

func (c *Client) path() string {
	return filepath.Join(c.ConfigRoot, FileName)
}

// Load returns the current local index, refreshing it first if
// forceRefresh is set or no local snapshot exists yet. If the local
// snapshot fails to parse, a single forced refresh is attempted before
// surfacing IndexUnavailable.
func (c *Client) Load(forceRefresh bool) (*Index, error) {
	if forceRefresh {
		if err := c.Refresh(); err != nil {
			return nil, &grillerr.IndexUnavailable{Cause: err}
		}
	} else if _, err := os.Stat(c.path()); err != nil {
		if err := c.Refresh(); err != nil {
			return nil, &grillerr.IndexUnavailable{Cause: err}
		}
	}

	idx, err := c.parseLocal()
	if err == nil {
		return idx, nil
	}

	// Recovery: parse failed, force one refresh and reparse. A second
	// failure surfaces as IndexUnavailable, per spec.md §7.
	if refreshErr := c.Refresh(); refreshErr != nil {
		return nil, &grillerr.IndexUnavailable{Cause: errors.Wrap(err, refreshErr.Error())}
	}
	idx, err = c.parseLocal()
	if err != nil {
		return nil, &grillerr.IndexUnavailable{Cause: err}
	}
	return idx, nil
}

func (c *Client) parseLocal() (*Index, error) {
	f, err := os.Open(c.path())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Refresh clones the index remote into the scratch directory and copies
// index.toml into the config root.
func (c *Client) Refresh() error {
	if err := vcsutil.CleanStart(c.ScratchDir); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	repo, err := vcsutil.Clone(c.RemoteURL, c.ScratchDir, nil)
	if err != nil {
		return &grillerr.FetchFailed{URL: c.RemoteURL, Cause: err}
	}
	repo.Release()
	defer os.RemoveAll(c.ScratchDir)

	if err := os.MkdirAll(c.ConfigRoot, 0o755); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	src := filepath.Join(c.ScratchDir, FileName)
	data, err := os.ReadFile(src)
	if err != nil {
		return &grillerr.IOFailure{Cause: errors.Wrap(err, "index repository has no index.toml at its root")}
	}
	if err := os.WriteFile(c.path(), data, 0o644); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	return nil
}
