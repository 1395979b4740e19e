package workspace

import (
	"os"
	"path/filepath"
	"testing"

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

// buildFixture lays out a small workspace on disk:
//
//	app/                  root package, depends locally on pkgs/utils
//	app/pkgs/utils/       sub-package inside app's own tree (case ii)
//	                      with a feature "back" pointing back at app,
//	                      exercising the cross-package cycle the visited
//	                      path map must break.
func buildFixture(t *testing.T) (appDir, beefPath string) {
	t.Helper()
	root := t.TempDir()
	appDir = filepath.Join(root, "app")
	beefPath = filepath.Join(root, "beef")

	writeFile(t, filepath.Join(appDir, manifest.FileName), `
[Package]
Name = "app"
Version = "1.0.0"

[Dependencies.utils]
Path = "pkgs/utils"
Features = ["back"]
DefaultFeatures = false
`)
	writeFile(t, filepath.Join(appDir, descriptor.ProjectFileName), `
[Project]
Name = "app"
TargetType = "BeefLib"
`)

	utilsDir := filepath.Join(appDir, "pkgs", "utils")
	writeFile(t, filepath.Join(utilsDir, manifest.FileName), `
[Package]
Name = "utils"
Version = "1.0.0"

[Features]
back = "../.."
`)
	writeFile(t, filepath.Join(utilsDir, descriptor.ProjectFileName), `
[Project]
Name = "utils"
TargetType = "BeefLib"
`)

	return appDir, beefPath
}

func TestLinkRegistersEveryProjectOnce(t *testing.T) {
	appDir, beefPath := buildFixture(t)

	root, err := manifest.Load(appDir)
	if err != nil {
		t.Fatal(err)
	}

	l := &Linker{WorkspaceRoot: appDir, BeefPath: beefPath}
	if err := l.Link(root, NewFetched()); err != nil {
		t.Fatal(err)
	}

	ws, err := descriptor.LoadWorkspace(appDir)
	if err != nil {
		t.Fatal(err)
	}

	got := ListProjects(ws)
	want := []string{"app", "corlib", "utils"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: want %s, got %s", i, want[i], got[i])
		}
	}
}

func TestLinkBreaksFeatureCycleWithoutDuplicateRegistration(t *testing.T) {
	appDir, beefPath := buildFixture(t)

	root, err := manifest.Load(appDir)
	if err != nil {
		t.Fatal(err)
	}

	l := &Linker{WorkspaceRoot: appDir, BeefPath: beefPath}
	if err := l.Link(root, NewFetched()); err != nil {
		t.Fatal(err)
	}

	ws, err := descriptor.LoadWorkspace(appDir)
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range ListProjects(ws) {
		if id == "utils-1.0.0/back" {
			t.Errorf("the feature that cycles back to app should never register its own speculative identifier")
		}
	}
}

func TestLinkEnablesFeatureMacroOnDependency(t *testing.T) {
	appDir, beefPath := buildFixture(t)

	root, err := manifest.Load(appDir)
	if err != nil {
		t.Fatal(err)
	}

	l := &Linker{WorkspaceRoot: appDir, BeefPath: beefPath}
	if err := l.Link(root, NewFetched()); err != nil {
		t.Fatal(err)
	}

	utilsProj, err := descriptor.LoadProject(filepath.Join(appDir, "pkgs", "utils"))
	if err != nil {
		t.Fatal(err)
	}
	if !utilsProj.ProcessorMacros["FEATURE_BACK"] {
		t.Errorf("expected utils to carry a FEATURE_BACK macro after the back feature was requested, got %v", utilsProj.ProcessorMacros)
	}
}

func TestLinkAddsImplicitCorlibDependency(t *testing.T) {
	appDir, beefPath := buildFixture(t)

	root, err := manifest.Load(appDir)
	if err != nil {
		t.Fatal(err)
	}

	l := &Linker{WorkspaceRoot: appDir, BeefPath: beefPath}
	if err := l.Link(root, NewFetched()); err != nil {
		t.Fatal(err)
	}

	appProj, err := descriptor.LoadProject(appDir)
	if err != nil {
		t.Fatal(err)
	}
	if !appProj.Dependencies["corlib"] {
		t.Errorf("expected app to depend on corlib by default, got %v", appProj.SortedDependencies())
	}
	if !appProj.Dependencies["utils"] {
		t.Errorf("expected app to depend on utils under its plain identifier (case ii, library owner), got %v", appProj.SortedDependencies())
	}
}

func TestIsSubPath(t *testing.T) {
	if !isSubPath("/a", "/a/b") {
		t.Error("expected /a/b to be a sub-path of /a")
	}
	if isSubPath("/a/b", "/a") {
		t.Error("expected /a to not be a sub-path of /a/b")
	}
	if isSubPath("/a", "/a") {
		t.Error("expected a path to not be considered a sub-path of itself")
	}
	if isSubPath("/a", "/b") {
		t.Error("expected unrelated paths to not be sub-paths")
	}
}

func TestIdentifierFor(t *testing.T) {
	if got := identifierFor("foo", "1.0.0"); got != "foo-1.0.0" {
		t.Errorf("want foo-1.0.0, got %s", got)
	}
}
