package descriptor

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/tomldoc"
)

// ProjectFileName is the per-project descriptor's canonical filename.
const ProjectFileName = "BeefProj.toml"

// TargetType is the closed set of project target kinds.
type TargetType string

const (
	TargetConsoleApp TargetType = "BeefConsoleApplication"
	TargetLibrary    TargetType = "BeefLib"
	TargetGUIApp     TargetType = "BeefGUIApplication"
)

// Project is a parsed/constructed BeefProj.toml.
type Project struct {
	doc *tomldoc.Doc

	FileVersion     int64
	Name            string
	TargetType      TargetType
	StartupObject   string
	ProcessorMacros map[string]bool
	Dependencies    map[string]bool // values are always literal "*"
}

// LoadProject opens dir/BeefProj.toml.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, ProjectFileName)
	doc, err := tomldoc.LoadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return newProject(), nil
		}
		return nil, &grillerr.Parse{SourcePath: path, Cause: err}
	}
	return projectFromDoc(doc), nil
}

func newProject() *Project {
	return &Project{
		doc:             tomldoc.New(),
		FileVersion:     1,
		TargetType:      TargetLibrary,
		ProcessorMacros: make(map[string]bool),
		Dependencies:    make(map[string]bool),
	}
}

func projectFromDoc(doc *tomldoc.Doc) *Project {
	p := &Project{
		doc:             doc,
		FileVersion:     int64(intOr(doc.Tree().Get("FileVersion"), 1)),
		Name:            doc.GetString("Project.Name", ""),
		TargetType:      TargetType(doc.GetString("Project.TargetType", string(TargetLibrary))),
		StartupObject:   doc.GetString("Project.StartupObject", ""),
		ProcessorMacros: make(map[string]bool),
		Dependencies:    make(map[string]bool),
	}
	for _, m := range doc.GetStrings("Project.ProcessorMacros") {
		p.ProcessorMacros[m] = true
	}
	if deps := doc.SubTree("Dependencies"); deps != nil {
		for _, name := range deps.Keys() {
			p.Dependencies[name] = true
		}
	}
	return p
}

// IsBinary reports whether this project builds an executable (console or
// GUI application) rather than a library.
func (p *Project) IsBinary() bool {
	return p.TargetType == TargetConsoleApp || p.TargetType == TargetGUIApp
}

// ClearDependenciesAndMacros resets both tables to empty, the first step
// the linker's `connect` takes on every visited project before rebuilding
// them from the manifest's dependency list.
func (p *Project) ClearDependenciesAndMacros() {
	p.Dependencies = make(map[string]bool)
	p.ProcessorMacros = make(map[string]bool)
}

// AddDependency records dep in the dependency table (always rendered as
// version "*", since the concrete version is carried structurally by the
// workspace's project table rather than by this string).
func (p *Project) AddDependency(id string) {
	p.Dependencies[id] = true
}

// AddMacro records a FEATURE_<UPPER> processor macro.
func (p *Project) AddMacro(macro string) {
	p.ProcessorMacros[macro] = true
}

// Save writes back every known key and serializes the document to
// dir/BeefProj.toml, leaving unrecognized keys (the build host's private
// fields) untouched.
func (p *Project) Save(dir string) error {
	p.doc.Set("FileVersion", p.FileVersion)
	p.doc.Set("Project.Name", p.Name)
	p.doc.Set("Project.TargetType", string(p.TargetType))
	p.doc.Set("Project.StartupObject", p.StartupObject)
	p.doc.Set("Project.ProcessorMacros", sortedKeys(p.ProcessorMacros))

	deps := make(map[string]interface{}, len(p.Dependencies))
	for name := range p.Dependencies {
		deps[name] = "*"
	}
	if err := p.doc.SetMap("Dependencies", deps); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}

	path := filepath.Join(dir, ProjectFileName)
	if err := p.doc.WriteFile(path); err != nil {
		return &grillerr.IOFailure{Cause: err}
	}
	return nil
}

// SortedDependencies returns dependency identifiers in lexicographic
// order, useful for deterministic test assertions.
func (p *Project) SortedDependencies() []string {
	out := make([]string, 0, len(p.Dependencies))
	for name := range p.Dependencies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
