// Package notes reads and writes the per-directory record files of a
// workspace and assembles them into a types.Table.
//
// Records are parsed into yaml.Node documents rather than plain maps so
// that key order and comments survive a rewrite.
package notes

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/notesync/internal/literal"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// LoadRecord parses the record file at path. It fails with
// types.ErrMalformedRecord on invalid YAML or a non-mapping document, with
// types.ErrEmptyRecord when the document holds no keys, and with
// types.ErrIdentityMismatch when the id key is missing or differs from the
// name of the directory containing path.
func LoadRecord(fs afero.Fs, path string) (*types.Record, error) {
	doc, err := readDocument(fs, path)
	if err != nil {
		return nil, err
	}
	m := doc.Content[0]

	rec := &types.Record{
		Path:   path,
		Values: make(map[string]string, len(m.Content)/2),
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := m.Content[i].Value
		if _, seen := rec.Values[key]; !seen {
			rec.Keys = append(rec.Keys, key)
		}
		rec.Values[key] = literal.Canonical(m.Content[i+1])
	}

	dir := filepath.Base(filepath.Dir(path))
	id, ok := rec.Values[types.IDColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q key (directory %s)", types.ErrIdentityMismatch, path, types.IDColumn, dir)
	}
	if id != dir {
		return nil, fmt.Errorf("%w: id %q in %s, directory is %s", types.ErrIdentityMismatch, id, path, dir)
	}
	rec.ID = id
	return rec, nil
}

// readDocument parses path into a document node whose single child is a
// non-empty mapping.
func readDocument(fs afero.Fs, path string) (*yaml.Node, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrMalformedRecord, path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrEmptyRecord, path)
	}

	root := doc.Content[0]
	switch {
	case root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null":
		return nil, fmt.Errorf("%w: %s", types.ErrEmptyRecord, path)
	case root.Kind != yaml.MappingNode:
		return nil, fmt.Errorf("%w: %s: top level is not a mapping", types.ErrMalformedRecord, path)
	case len(root.Content) == 0:
		return nil, fmt.Errorf("%w: %s", types.ErrEmptyRecord, path)
	}
	return &doc, nil
}
