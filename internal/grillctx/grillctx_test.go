package grillctx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindProjectRootWalksUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Package.toml"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := findProjectRoot(nested)
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.Abs(root)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestFindProjectRootStopsAtNearestAncestor(t *testing.T) {
	root := t.TempDir()
	outer := filepath.Join(root, "outer")
	inner := filepath.Join(outer, "inner")
	if err := os.MkdirAll(inner, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Package.toml"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outer, "Package.toml"), []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := findProjectRoot(inner)
	if err != nil {
		t.Fatal(err)
	}
	want, err := filepath.Abs(outer)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("expected the nearest ancestor %s to win, got %s", want, got)
	}
}

func TestFindProjectRootFailsWhenNoneExists(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := findProjectRoot(nested); err == nil {
		t.Fatal("expected an error when no ancestor directory has a Package.toml")
	}
}

func TestScratchDirUnderConfigRoot(t *testing.T) {
	c := &Ctx{ConfigRoot: "/home/user/.grill"}
	want := filepath.Join("/home/user/.grill", "tmp", "fetch")
	if got := c.ScratchDir(); got != want {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestRequireBeefPath(t *testing.T) {
	c := &Ctx{}
	if _, err := c.RequireBeefPath(); err == nil {
		t.Error("expected an error when BeefPath is unset")
	}

	c.BeefPath = "/opt/beef"
	got, err := c.RequireBeefPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/opt/beef" {
		t.Errorf("want /opt/beef, got %s", got)
	}
}
