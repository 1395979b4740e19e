// Package tomldoc is a thin helper around *toml.Tree that lets callers
// read and rewrite a handful of known keys while leaving every other key
// in the document untouched. This is how the manifest, index, workspace
// descriptor and project descriptor formats all satisfy the
// "unknown keys round-trip" requirement: we never decode into a rigid
// struct and re-encode it, we mutate the parse tree in place.
package tomldoc

import (
	"io"
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Doc wraps a parsed TOML document.
type Doc struct {
	tree *toml.Tree
}

// New returns an empty document.
func New() *Doc {
	t, _ := toml.TreeFromMap(map[string]interface{}{})
	return &Doc{tree: t}
}

// Load parses a TOML document from r.
func Load(r io.Reader) (*Doc, error) {
	t, err := toml.LoadReader(r)
	if err != nil {
		return nil, err
	}
	return &Doc{tree: t}, nil
}

// LoadFile parses a TOML document from disk.
func LoadFile(path string) (*Doc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return d, nil
}

// Tree exposes the underlying tree for callers that need raw
// table-of-tables access (dependencies, index entries, locked projects).
func (d *Doc) Tree() *toml.Tree {
	return d.tree
}

// GetString reads a string at a dotted path, returning def if absent or
// of the wrong type.
func (d *Doc) GetString(path string, def string) string {
	v := d.tree.Get(path)
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// GetBool reads a bool at a dotted path, returning def if absent or of
// the wrong type.
func (d *Doc) GetBool(path string, def bool) bool {
	v := d.tree.Get(path)
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// GetStrings reads a string list at a dotted path.
func (d *Doc) GetStrings(path string) []string {
	v := d.tree.Get(path)
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

// Has reports whether path is present.
func (d *Doc) Has(path string) bool {
	return d.tree.Has(path)
}

// Set writes a known key, leaving all other keys untouched.
func (d *Doc) Set(path string, value interface{}) {
	d.tree.Set(path, value)
}

// SetMap writes a nested table at path, built from a Go map (including
// nested maps, which become nested tables) via toml.TreeFromMap. This is
// the supported way to attach a sub-table when the caller has a
// map[string]interface{} rather than a *toml.Tree.
func (d *Doc) SetMap(path string, m map[string]interface{}) error {
	sub, err := toml.TreeFromMap(m)
	if err != nil {
		return errors.Wrapf(err, "building table for %s", path)
	}
	d.tree.Set(path, sub)
	return nil
}

// Delete removes a known key if present.
func (d *Doc) Delete(path string) {
	if d.tree.Has(path) {
		d.tree.Delete(path)
	}
}

// SubTables returns the array-of-tables at path, or nil.
func (d *Doc) SubTables(path string) []*toml.Tree {
	v := d.tree.Get(path)
	tables, _ := v.([]*toml.Tree)
	return tables
}

// SubTree returns the table at path, or nil if absent / not a table.
func (d *Doc) SubTree(path string) *toml.Tree {
	v := d.tree.Get(path)
	t, _ := v.(*toml.Tree)
	return t
}

// String renders the document back to canonical TOML text.
func (d *Doc) String() string {
	return d.tree.String()
}

// WriteFile renders and writes the document to path.
func (d *Doc) WriteFile(path string) error {
	s := d.tree.String()
	return os.WriteFile(path, []byte(s), 0o644)
}
