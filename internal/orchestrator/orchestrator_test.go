package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RogueMacro/grill/internal/cache"
	"github.com/RogueMacro/grill/internal/fetch"
	"github.com/RogueMacro/grill/internal/index"
	"github.com/RogueMacro/grill/internal/lock"
	"github.com/RogueMacro/grill/internal/manifest"
	"github.com/RogueMacro/grill/internal/semverx"
)

func rootManifest(dir string, deps map[string]string) *manifest.Manifest {
	m := &manifest.Manifest{Dir: dir, Name: "app", Dependencies: make(map[string]manifest.Dependency)}
	for name, r := range deps {
		m.Dependencies[name] = manifest.Dependency{Kind: manifest.Simple, Requirement: semverx.MustParseRequirement(r)}
	}
	return m
}

func TestResolveSkipsWhenExistingLockStillValidates(t *testing.T) {
	dir := t.TempDir()
	root := rootManifest(dir, map[string]string{"foo": "^1.0.0"})

	prev := lock.New()
	prev.Add("foo", semverx.MustParseVersion("1.2.0"))
	if err := lock.Write(filepath.Join(dir, lock.FileName), prev); err != nil {
		t.Fatal(err)
	}

	idx := &index.Index{Packages: map[string]index.Entry{
		"foo": {URL: "https://example.com/foo.git", Versions: map[string]index.VersionMetadata{
			"1.2.0": {Rev: "rev1"},
			"9.0.0": {Rev: "rev2"},
		}},
	}}

	p := &Pipeline{}
	got, err := p.resolve(root, idx)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got.Matching("foo", semverx.MustParseRequirement("^1.0.0")); !ok || v.String() != "1.2.0" {
		t.Errorf("expected the still-valid existing lock (1.2.0) to be reused rather than re-resolved, got %v", got.Packages["foo"])
	}
}

func TestResolveReResolvesWhenLockNoLongerValidates(t *testing.T) {
	dir := t.TempDir()
	root := rootManifest(dir, map[string]string{"foo": "^2.0.0"})

	prev := lock.New()
	prev.Add("foo", semverx.MustParseVersion("1.2.0"))
	if err := lock.Write(filepath.Join(dir, lock.FileName), prev); err != nil {
		t.Fatal(err)
	}

	idx := &index.Index{Packages: map[string]index.Entry{
		"foo": {URL: "https://example.com/foo.git", Versions: map[string]index.VersionMetadata{
			"1.2.0": {Rev: "rev1"},
			"2.5.0": {Rev: "rev2"},
		}},
	}}

	p := &Pipeline{}
	got, err := p.resolve(root, idx)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := got.Matching("foo", semverx.MustParseRequirement("^2.0.0")); !ok || v.String() != "2.5.0" {
		t.Errorf("expected a fresh resolution satisfying ^2.0.0, got %v", got.Packages["foo"])
	}
}

func TestFetchAllSkipsAlreadyCachedPackages(t *testing.T) {
	workspace := t.TempDir()

	idx := &index.Index{Packages: map[string]index.Entry{
		"foo": {URL: "https://example.com/foo.git", Versions: map[string]index.VersionMetadata{
			"1.0.0": {Rev: "rev1"},
		}},
	}}
	l := lock.New()
	l.Add("foo", semverx.MustParseVersion("1.0.0"))

	if err := os.MkdirAll(cache.Path(workspace, "foo-1.0.0"), 0o755); err != nil {
		t.Fatal(err)
	}

	installer := fetch.NewInstaller(workspace, filepath.Join(t.TempDir(), "scratch"), nil)
	p := &Pipeline{}
	fetched, err := p.fetchAll(idx, l, installer)
	if err != nil {
		t.Fatal(err)
	}

	path, v, ok := fetched.FindVersion("foo", semverx.MustParseRequirement("^1.0.0"))
	if !ok || v.String() != "1.0.0" {
		t.Fatalf("expected foo 1.0.0 to be registered as fetched, got %v", fetched)
	}
	if path != cache.Path(workspace, "foo-1.0.0") {
		t.Errorf("expected the pre-populated cache path, got %s", path)
	}
}

func TestFetchAllUnknownPackageFails(t *testing.T) {
	workspace := t.TempDir()
	idx := &index.Index{Packages: map[string]index.Entry{}}
	l := lock.New()
	l.Add("missing", semverx.MustParseVersion("1.0.0"))

	installer := fetch.NewInstaller(workspace, filepath.Join(t.TempDir(), "scratch"), nil)
	p := &Pipeline{}
	if _, err := p.fetchAll(idx, l, installer); err == nil {
		t.Fatal("expected an error fetching a package no longer present in the index")
	}
}
