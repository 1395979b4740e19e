// Package manifest models a per-package Package.toml: the human-authored
// description of a package's identity, dependencies and features.
//
// Manifests are read-only inputs (spec.md §3, "Lifecycles"): this package
// only ever parses them, it never rewrites one.
package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/RogueMacro/grill/internal/grillerr"
	"github.com/RogueMacro/grill/internal/semverx"
	"github.com/RogueMacro/grill/internal/tomldoc"
)

// FileName is the manifest's canonical filename within a package directory.
const FileName = "Package.toml"

// DependencyKind discriminates the Dependency sum type.
type DependencyKind int

const (
	// Simple is a SemVer requirement resolved via the index.
	Simple DependencyKind = iota
	// Advanced is a SemVer requirement plus a feature selection.
	Advanced
	// Git is a direct pin to a URL and revision, bypassing the index.
	Git
	// Local is a filesystem-relative path to another manifest, bypassing
	// the index.
	Local
)

func (k DependencyKind) String() string {
	switch k {
	case Simple:
		return "simple"
	case Advanced:
		return "advanced"
	case Git:
		return "git"
	case Local:
		return "local"
	default:
		return "unknown"
	}
}

// Dependency is the tagged union described in spec.md §3. Only the
// fields relevant to Kind are populated; callers must switch
// exhaustively on Kind rather than infer it from which fields are set.
type Dependency struct {
	Kind DependencyKind

	// Simple, Advanced
	Requirement semverx.Requirement

	// Advanced, Local
	Features        []string
	DefaultFeatures bool

	// Git
	GitURL string
	GitRev string

	// Local
	Path string
}

// FeatureKind discriminates the Feature sum type.
type FeatureKind int

const (
	// FeatureList expands to the union of named sub-features.
	FeatureList FeatureKind = iota
	// FeatureProject is a sub-project enabled as an additional workspace
	// project when the feature is requested.
	FeatureProject
)

// Feature is one entry of [Features], either a list of sub-feature names
// or a path to a sub-project manifest.
type Feature struct {
	Kind FeatureKind

	// FeatureList
	Names []string

	// FeatureProject
	Path string
}

// Features is the manifest's [Features] table.
type Features struct {
	Default  []string
	Optional map[string]Feature
}

// Manifest is a fully parsed Package.toml.
type Manifest struct {
	// Dir is the directory the manifest was loaded from.
	Dir string

	Name        string
	Version     semverx.Version
	Description string
	Corlib      bool

	Dependencies map[string]Dependency
	Features     Features
}

// Load parses the Package.toml in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &grillerr.ConfigMissing{Path: dir}
		}
		return nil, &grillerr.IOFailure{Cause: err}
	}
	defer f.Close()

	doc, err := tomldoc.Load(f)
	if err != nil {
		return nil, &grillerr.Parse{SourcePath: path, Cause: err}
	}

	m, err := fromDoc(doc)
	if err != nil {
		return nil, &grillerr.Parse{SourcePath: path, Cause: err}
	}
	m.Dir = dir
	return m, nil
}

func fromDoc(doc *tomldoc.Doc) (*Manifest, error) {
	name := doc.GetString("Package.Name", "")
	if name == "" {
		return nil, errors.New("[Package] missing required key Name")
	}
	verStr := doc.GetString("Package.Version", "")
	if verStr == "" {
		return nil, errors.Errorf("[Package] %s: missing required key Version", name)
	}
	ver, err := semverx.ParseVersion(verStr)
	if err != nil {
		return nil, errors.Wrapf(err, "[Package] %s: Version", name)
	}

	m := &Manifest{
		Name:        name,
		Version:     ver,
		Description: doc.GetString("Package.Description", ""),
		Corlib:      doc.GetBool("Package.Corlib", true),
		Dependencies: make(map[string]Dependency),
		Features: Features{
			Default:  doc.GetStrings("Features.Default"),
			Optional: make(map[string]Feature),
		},
	}

	deps := doc.SubTree("Dependencies")
	if deps != nil {
		for _, depName := range deps.Keys() {
			raw := deps.Get(depName)
			dep, err := parseDependency(depName, raw)
			if err != nil {
				return nil, errors.Wrapf(err, "[Dependencies] %s", depName)
			}
			if _, dup := m.Dependencies[depName]; dup {
				return nil, errors.Errorf("duplicate dependency name %q", depName)
			}
			m.Dependencies[depName] = dep
		}
	}

	feat := doc.SubTree("Features")
	if feat != nil {
		for _, featName := range feat.Keys() {
			if featName == "Default" {
				continue
			}
			raw := feat.Get(featName)
			f, err := parseFeature(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "[Features] %s", featName)
			}
			if _, dup := m.Features.Optional[featName]; dup {
				return nil, errors.Errorf("duplicate feature name %q", featName)
			}
			m.Features.Optional[featName] = f
		}
	}

	return m, nil
}

func parseDependency(name string, raw interface{}) (Dependency, error) {
	if v, ok := raw.(string); ok {
		req, err := semverx.ParseRequirement(v)
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: Simple, Requirement: req}, nil
	}
	// go-toml represents both inline tables and standard tables as
	// *toml.Tree; parseTableDependency asserts against the narrow
	// tomlTree interface rather than the concrete type.
	return parseTableDependency(name, raw)
}

type tomlTree interface {
	Get(string) interface{}
	Has(string) bool
	Keys() []string
}

func parseTableDependency(name string, raw interface{}) (Dependency, error) {
	t, ok := raw.(tomlTree)
	if !ok {
		return Dependency{}, errors.Errorf("dependency %q: expected a string or table, got %T", name, raw)
	}

	if t.Has("Git") {
		url, _ := t.Get("Git").(string)
		rev, _ := t.Get("Rev").(string)
		if url == "" || rev == "" {
			return Dependency{}, errors.Errorf("dependency %q: Git dependency requires both Git and Rev", name)
		}
		return Dependency{Kind: Git, GitURL: url, GitRev: rev}, nil
	}

	if t.Has("Path") {
		path, _ := t.Get("Path").(string)
		if path == "" {
			return Dependency{}, errors.Errorf("dependency %q: Local dependency requires Path", name)
		}
		return Dependency{
			Kind:            Local,
			Path:            path,
			Features:        getStringList(t, "Features"),
			DefaultFeatures: getBoolDefault(t, "DefaultFeatures", true),
		}, nil
	}

	verStr, _ := t.Get("Version").(string)
	if verStr == "" {
		return Dependency{}, errors.Errorf("dependency %q: table form requires Version, Git+Rev, or Path", name)
	}
	req, err := semverx.ParseRequirement(verStr)
	if err != nil {
		return Dependency{}, err
	}
	return Dependency{
		Kind:            Advanced,
		Requirement:     req,
		Features:        getStringList(t, "Features"),
		DefaultFeatures: getBoolDefault(t, "DefaultFeatures", true),
	}, nil
}

func getStringList(t tomlTree, key string) []string {
	v := t.Get(key)
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getBoolDefault(t tomlTree, key string, def bool) bool {
	v := t.Get(key)
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func parseFeature(raw interface{}) (Feature, error) {
	switch v := raw.(type) {
	case string:
		return Feature{Kind: FeatureProject, Path: v}, nil
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, it := range v {
			s, ok := it.(string)
			if !ok {
				return Feature{}, errors.Errorf("feature list entries must be strings, got %T", it)
			}
			names = append(names, s)
		}
		sort.Strings(names)
		return Feature{Kind: FeatureList, Names: names}, nil
	default:
		return Feature{}, errors.Errorf("feature entry must be a string (project path) or list of strings, got %T", raw)
	}
}
