package fetch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RogueMacro/grill/internal/cache"
	"github.com/RogueMacro/grill/internal/descriptor"
	"github.com/RogueMacro/grill/internal/manifest"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInstallSkipsAlreadyPopulatedSlot(t *testing.T) {
	workspace := t.TempDir()
	ident := "foo-1.0.0"

	if err := os.MkdirAll(cache.Path(workspace, ident), 0o755); err != nil {
		t.Fatal(err)
	}

	in := NewInstaller(workspace, filepath.Join(t.TempDir(), "scratch"), nil)
	path, fetched, err := in.Install(Request{Ident: ident, URL: "https://example.com/foo.git"})
	if err != nil {
		t.Fatal(err)
	}
	if fetched {
		t.Error("expected Install to report fetched=false for an already populated slot")
	}
	if path != cache.Path(workspace, ident) {
		t.Errorf("expected the existing cache path to be returned, got %s", path)
	}
}

func TestLoadProjectOrNilMissingDescriptor(t *testing.T) {
	dir := t.TempDir()
	proj, err := loadProjectOrNil(dir)
	if err != nil {
		t.Fatal(err)
	}
	if proj != nil {
		t.Errorf("expected nil for a package with no project descriptor, got %+v", proj)
	}
}

func TestPreparePkgRenamesProjectAndAddsCorlib(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, filepath.Join(pkgDir, manifest.FileName), `
[Package]
Name = "foo"
Version = "1.0.0"
`)
	writeFile(t, filepath.Join(pkgDir, descriptor.ProjectFileName), `
[Project]
Name = "foo"
TargetType = "BeefLib"
`)

	if err := preparePkg(pkgDir, "foo-1.0.0"); err != nil {
		t.Fatal(err)
	}

	proj, err := descriptor.LoadProject(pkgDir)
	if err != nil {
		t.Fatal(err)
	}
	if proj.Name != "foo-1.0.0" {
		t.Errorf("expected the project name to be rewritten to foo-1.0.0, got %s", proj.Name)
	}
	if !proj.Dependencies["corlib"] {
		t.Errorf("expected corlib to be added as a dependency, got %v", proj.SortedDependencies())
	}
}

func TestPreparePkgRewritesFeatureProjects(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, filepath.Join(pkgDir, manifest.FileName), `
[Package]
Name = "foo"
Version = "1.0.0"

[Features]
net = "features/net"
`)
	writeFile(t, filepath.Join(pkgDir, descriptor.ProjectFileName), `
[Project]
Name = "foo"
TargetType = "BeefLib"
`)

	featDir := filepath.Join(pkgDir, "features", "net")
	writeFile(t, filepath.Join(featDir, manifest.FileName), `
[Package]
Name = "net"
Version = "1.0.0"
`)
	writeFile(t, filepath.Join(featDir, descriptor.ProjectFileName), `
[Project]
Name = "net"
TargetType = "BeefLib"
`)

	if err := preparePkg(pkgDir, "foo-1.0.0"); err != nil {
		t.Fatal(err)
	}

	featProj, err := descriptor.LoadProject(featDir)
	if err != nil {
		t.Fatal(err)
	}
	if featProj.Name != "foo-1.0.0/net" {
		t.Errorf("expected the feature project to be renamed to foo-1.0.0/net, got %s", featProj.Name)
	}
	if !featProj.Dependencies["corlib"] {
		t.Errorf("expected the feature project to also depend on corlib, got %v", featProj.SortedDependencies())
	}
}

func TestPreparePkgWithNoProjectDescriptorIsANoop(t *testing.T) {
	pkgDir := t.TempDir()
	writeFile(t, filepath.Join(pkgDir, manifest.FileName), `
[Package]
Name = "foo"
Version = "1.0.0"
`)

	if err := preparePkg(pkgDir, "foo-1.0.0"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(pkgDir, descriptor.ProjectFileName)); !os.IsNotExist(err) {
		t.Errorf("expected no project descriptor to be created for a package that never had one")
	}
}
