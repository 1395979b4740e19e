package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSimpleAndAdvancedDependencies(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[Package]
Name = "app"
Version = "1.0.0"

[Dependencies]
simplelib = "^1.0.0"

[Dependencies.advancedlib]
Version = "^2.0.0"
Features = ["x", "y"]
DefaultFeatures = false
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	simple, ok := m.Dependencies["simplelib"]
	if !ok || simple.Kind != Simple {
		t.Fatalf("expected a Simple dependency named simplelib, got %+v", simple)
	}

	adv, ok := m.Dependencies["advancedlib"]
	if !ok || adv.Kind != Advanced {
		t.Fatalf("expected an Advanced dependency named advancedlib, got %+v", adv)
	}
	if adv.DefaultFeatures {
		t.Errorf("expected DefaultFeatures=false to be honored")
	}
	if len(adv.Features) != 2 {
		t.Errorf("expected 2 requested features, got %v", adv.Features)
	}
}

func TestLoadGitAndLocalDependencies(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[Package]
Name = "app"
Version = "1.0.0"

[Dependencies.gitlib]
Git = "https://example.com/gitlib.git"
Rev = "deadbeef"

[Dependencies.locallib]
Path = "../locallib"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	git, ok := m.Dependencies["gitlib"]
	if !ok || git.Kind != Git || git.GitRev != "deadbeef" {
		t.Fatalf("expected a Git dependency pinned at deadbeef, got %+v", git)
	}

	local, ok := m.Dependencies["locallib"]
	if !ok || local.Kind != Local || local.Path != "../locallib" {
		t.Fatalf("expected a Local dependency at ../locallib, got %+v", local)
	}
}

func TestGitDependencyRequiresRev(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[Package]
Name = "app"
Version = "1.0.0"

[Dependencies.gitlib]
Git = "https://example.com/gitlib.git"
`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a Git dependency missing Rev")
	}
}

func TestFeatureListAndProject(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[Package]
Name = "app"
Version = "1.0.0"

[Features]
Default = ["full"]
full = ["net", "fs"]
net = "features/net"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	full, ok := m.Features.Optional["full"]
	if !ok || full.Kind != FeatureList {
		t.Fatalf("expected a List feature named full, got %+v", full)
	}
	if len(full.Names) != 2 || full.Names[0] != "fs" || full.Names[1] != "net" {
		t.Errorf("expected sorted sub-feature names [fs net], got %v", full.Names)
	}

	net, ok := m.Features.Optional["net"]
	if !ok || net.Kind != FeatureProject || net.Path != "features/net" {
		t.Fatalf("expected a Project feature named net at features/net, got %+v", net)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error when Package.toml is absent")
	}
}
