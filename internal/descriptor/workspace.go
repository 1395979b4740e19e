// Package descriptor models the two TOML documents the build host
// consumes: the workspace descriptor (BeefSpace.toml) and the per-project
// descriptor (BeefProj.toml). Both preserve unknown keys on a round trip
// by mutating a tomldoc.Doc in place rather than decoding into, and
// re-encoding from, a rigid struct — this is how the build host's own
// private fields survive our rewrites (spec.md §9, "Unknown-field
// passthrough").
package descriptor

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/tomldoc"
)

// WorkspaceFileName is the workspace descriptor's canonical filename.
const WorkspaceFileName = "BeefSpace.toml"

// ProjectEntry is one row of the workspace's project table: the
// project's path, relative to the workspace root.
type ProjectEntry struct {
	Path string
}

// Workspace is a parsed/constructed BeefSpace.toml.
type Workspace struct {
	doc *tomldoc.Doc

	FileVersion    int64
	Locked         map[string]bool
	Projects       map[string]ProjectEntry
	Folders        map[string]map[string]bool // folder label -> project id set
	StartupProject string
}

// LoadWorkspace opens dir/BeefSpace.toml if present, or returns a fresh,
// empty Workspace otherwise (the linker always bootstraps from
// whatever's there, creating it on first run).
func LoadWorkspace(dir string) (*Workspace, error) {
	path := filepath.Join(dir, WorkspaceFileName)
	doc, err := tomldoc.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newWorkspace(), nil
		}
		return nil, &grillerr.Parse{SourcePath: path, Cause: err}
	}
	return workspaceFromDoc(doc), nil
}

func newWorkspace() *Workspace {
	return &Workspace{
		doc:         tomldoc.New(),
		FileVersion: 1,
		Locked:      make(map[string]bool),
		Projects:    make(map[string]ProjectEntry),
		Folders:     make(map[string]map[string]bool),
	}
}

func workspaceFromDoc(doc *tomldoc.Doc) *Workspace {
	w := &Workspace{
		doc:         doc,
		FileVersion: int64(intOr(doc.Tree().Get("FileVersion"), 1)),
		Locked:      make(map[string]bool),
		Projects:    make(map[string]ProjectEntry),
		Folders:     make(map[string]map[string]bool),
	}
	for _, id := range doc.GetStrings("Locked") {
		w.Locked[id] = true
	}
	if projects := doc.SubTree("Projects"); projects != nil {
		for _, id := range projects.Keys() {
			// Identifiers such as "foo-1.0.0" contain dots, so they are
			// looked up as a single path component.
			t, ok := projects.GetPath([]string{id}).(interface{ Get(string) interface{} })
			if !ok {
				continue
			}
			path, _ := t.Get("Path").(string)
			w.Projects[id] = ProjectEntry{Path: path}
		}
	}
	if folders := doc.SubTree("Folders"); folders != nil {
		for _, label := range folders.Keys() {
			items, _ := folders.Get(label).([]interface{})
			set := make(map[string]bool, len(items))
			for _, it := range items {
				if id, ok := it.(string); ok {
					set[id] = true
				}
			}
			w.Folders[label] = set
		}
	}
	w.StartupProject = doc.GetString("Workspace.StartupProject", "")
	return w
}

func intOr(v interface{}, def int64) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return def
	}
}

// ClearProjects empties the locked set and the project table, the
// linker's descriptor-bootstrap first step.
func (w *Workspace) ClearProjects() {
	w.Locked = make(map[string]bool)
	w.Projects = make(map[string]ProjectEntry)
}

// AddProject registers id at relPath, analogous to a `connect` call's
// "register as an independent workspace project" step. If locked is
// true, id also joins the Locked set.
func (w *Workspace) AddProject(id, relPath string, locked bool) {
	w.Projects[id] = ProjectEntry{Path: relPath}
	if locked {
		w.Locked[id] = true
	}
}

// SetFolder replaces the membership of a workspace folder (e.g.
// "Packages") with exactly the given id set.
func (w *Workspace) SetFolder(label string, ids []string) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	w.Folders[label] = set
}

// Save writes back every known key (leaving unrecognized top-level keys
// and tables untouched) and serializes the document to dir/BeefSpace.toml.
func (w *Workspace) Save(dir string) error {
	w.doc.Set("FileVersion", w.FileVersion)
	w.doc.Set("Locked", sortedKeys(w.Locked))

	projects := make(map[string]interface{}, len(w.Projects))
	for id, entry := range w.Projects {
		projects[id] = map[string]interface{}{"Path": filepath.ToSlash(entry.Path)}
	}
	if err := w.doc.SetMap("Projects", projects); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	folders := make(map[string]interface{}, len(w.Folders))
	for label, set := range w.Folders {
		ids := make([]interface{}, 0, len(set))
		for _, id := range sortedKeys(set) {
			ids = append(ids, id)
		}
		folders[label] = ids
	}
	if err := w.doc.SetMap("Folders", folders); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	if w.StartupProject != "" {
		w.doc.Set("Workspace.StartupProject", w.StartupProject)
	}

	path := filepath.Join(dir, WorkspaceFileName)
	if err := w.doc.WriteFile(path); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

