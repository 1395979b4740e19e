// Package vcsutil wraps github.com/Masterminds/vcs with the clone,
// revision-resolution and checkout sequence the fetch/cache engine and
// the index client both need: clone into a scratch directory with
// streamed progress, resolve a revision to either a symbolic reference
// or an object id, checkout, then release the handle so nothing still
// holds the directory open when the caller renames it away.
//
// Grounded on the teacher's internal/gps/vcs_repo.go (ctxRepo, ref vs.
// object id handling) and cmd.go (activityBuffer-style progress sink).
package vcsutil

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// ProgressFunc is invoked synchronously, on the caller's goroutine, as
// clone output arrives. n is the cumulative byte count seen so far.
type ProgressFunc func(n int64)

// Repo is a cloned working copy, ready for revision resolution.
type Repo struct {
	vcsRepo vcs.Repo
	path    string
}

// progressSink is an io.Writer that reports cumulative bytes written to
// a ProgressFunc. It never returns an error: clone progress is
// best-effort narration, not a correctness signal.
type progressSink struct {
	total    int64
	progress ProgressFunc
}

func (s *progressSink) Write(p []byte) (int, error) {
	s.total += int64(len(p))
	if s.progress != nil {
		s.progress(s.total)
	}
	return len(p), nil
}

// Clone clones url into dest, a directory that must not already exist.
// progress may be nil.
func Clone(url, dest string, progress ProgressFunc) (*Repo, error) {
	vr, err := vcs.NewRepo(url, dest)
	if err != nil {
		return nil, errors.Wrapf(err, "detecting VCS type for %s", url)
	}

	if g, ok := vr.(*vcs.GitRepo); ok {
		if err := cloneGitWithProgress(url, dest, progress); err != nil {
			return nil, err
		}
		return &Repo{vcsRepo: g, path: dest}, nil
	}

	// Non-git remotes (bzr/hg/svn): Masterminds/vcs doesn't expose a
	// progress hook for these, so we fall back to a plain Get and report
	// the whole transfer as a single step once it completes.
	if err := vr.Get(); err != nil {
		return nil, errors.Wrapf(err, "cloning %s", url)
	}
	if progress != nil {
		progress(0)
	}
	return &Repo{vcsRepo: vr, path: dest}, nil
}

func cloneGitWithProgress(url, dest string, progress ProgressFunc) error {
	sink := &progressSink{progress: progress}
	var captured bytes.Buffer

	// git writes clone progress to stderr. Reading the pipe here, rather
	// than handing exec a writer, keeps every progress call on the
	// caller's goroutine.
	cmd := exec.Command("git", "clone", "--recursive", "--progress", url, dest)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrapf(err, "git clone %s", url)
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "git clone %s", url)
	}
	io.Copy(io.MultiWriter(sink, &captured), stderr)

	if err := cmd.Wait(); err != nil {
		return errors.Wrapf(err, "git clone %s: %s", url, strings.TrimSpace(captured.String()))
	}
	return nil
}

// Checkout resolves rev through the VCS's revparse. If rev names a
// symbolic reference (a branch or tag), HEAD is set to it; otherwise rev
// is treated as an object id and HEAD is detached there.
func (r *Repo) Checkout(rev string) error {
	if rev == "" {
		return nil
	}
	if g, ok := r.vcsRepo.(*vcs.GitRepo); ok {
		return checkoutGit(g, rev)
	}
	if err := r.vcsRepo.UpdateVersion(rev); err != nil {
		return errors.Wrapf(err, "checking out %s in %s", rev, r.path)
	}
	return nil
}

func checkoutGit(g *vcs.GitRepo, rev string) error {
	symbolic := isSymbolicRef(g, rev)

	var cmd *exec.Cmd
	if symbolic {
		// A plain checkout updates the working tree and points HEAD at a
		// branch, or detaches it at a tag's commit.
		cmd = g.CmdFromDir("git", "checkout", rev)
	} else {
		cmd = g.CmdFromDir("git", "checkout", "--detach", rev)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "checkout %s: %s", rev, strings.TrimSpace(out.String()))
	}
	return nil
}

// isSymbolicRef reports whether rev resolves to a branch or tag rather
// than a bare object id.
func isSymbolicRef(g *vcs.GitRepo, rev string) bool {
	if g.IsReference(rev) {
		return true
	}
	branches, _ := g.Branches()
	for _, b := range branches {
		if b == rev {
			return true
		}
	}
	tags, _ := g.Tags()
	for _, t := range tags {
		if t == rev {
			return true
		}
	}
	return false
}

// Path is the on-disk location of the working copy.
func (r *Repo) Path() string {
	return r.path
}

// Release lets go of the VCS handle. Masterminds/vcs holds no long-lived
// OS handle on the repo directory, so this is a documentation point: by
// the time the caller renames the directory away, nothing further should
// be done through r.
func (r *Repo) Release() {
	r.vcsRepo = nil
}

// CleanStart removes dest if present so a clone always starts from a
// known-empty directory.
func CleanStart(dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return os.RemoveAll(dest)
	}
	return nil
}
