package notes

import (
	"bytes"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/notesync/internal/backup"
	"github.com/mesh-intelligence/notesync/internal/literal"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// indent is the mapping and sequence indentation of rewritten records.
const indent = 2

// Written describes one rewritten record file.
type Written struct {
	ID     string
	Path   string
	Backup string
}

// ApplyChanges rewrites the record file of every id in changes. For each
// file it writes a backup, reloads the live document, applies the column
// changes, reorders keys to follow order and writes the file back.
//
// A types.AbsentKey value deletes the key, types.ExplicitNull sets it to
// null, a literal (see literal.Parse) is stored typed and any other value
// is stored as a string.
func (w *Workspace) ApplyChanges(changes map[string]map[string]string, order []string) ([]Written, error) {
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	written := make([]Written, 0, len(ids))
	for _, id := range ids {
		path := w.RecordPath(id)
		bk, err := backup.Copy(w.fs, path)
		if err != nil {
			return written, fmt.Errorf("backing up %s: %w", path, err)
		}
		if err := rewrite(w.fs, path, func(m *yaml.Node) {
			for _, col := range orderedColumns(changes[id], order) {
				setKey(m, col, changes[id][col])
			}
			ReorderKeys(m, order)
		}); err != nil {
			return written, err
		}

		w.log.WithFields(log.Fields{
			"record":  id,
			"path":    path,
			"backup":  bk,
			"columns": len(changes[id]),
		}).Info("updated record")
		written = append(written, Written{ID: id, Path: path, Backup: bk})
	}
	return written, nil
}

// SetIdentity sets the id key of the record file at path, keeping the rest
// of the document intact. No backup is written.
func SetIdentity(fs afero.Fs, path, id string) error {
	return rewrite(fs, path, func(m *yaml.Node) {
		setKey(m, types.IDColumn, id)
	})
}

// rewrite loads path, lets edit modify its top-level mapping and writes the
// document back with the file's permissions.
func rewrite(fs afero.Fs, path string, edit func(m *yaml.Node)) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	doc, err := readDocument(fs, path)
	if err != nil {
		return err
	}

	edit(doc.Content[0])

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// orderedColumns returns the keys of cols, those named in order first.
func orderedColumns(cols map[string]string, order []string) []string {
	out := make([]string, 0, len(cols))
	placed := make(map[string]bool, len(cols))
	for _, c := range order {
		if _, ok := cols[c]; ok && !placed[c] {
			placed[c] = true
			out = append(out, c)
		}
	}
	var rest []string
	for c := range cols {
		if !placed[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// findKey returns the index of key's key node in mapping m, or -1.
func findKey(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// setKey applies one table value to mapping m.
func setKey(m *yaml.Node, key, value string) {
	idx := findKey(m, key)

	var n *yaml.Node
	switch value {
	case types.AbsentKey:
		if idx >= 0 {
			m.Content = append(m.Content[:idx], m.Content[idx+2:]...)
		}
		return
	case types.ExplicitNull:
		n = literal.NullNode()
	default:
		// A plain null word stays a string; explicit nulls use ExplicitNull.
		if v, err := literal.Parse(value); err == nil && v.Kind() != literal.KindNull {
			n = v.Node()
		} else {
			n = literal.StringNode(value)
		}
	}

	if idx < 0 {
		m.Content = append(m.Content, literal.StringNode(key), n)
		return
	}
	old := m.Content[idx+1]
	n.HeadComment = old.HeadComment
	n.LineComment = old.LineComment
	n.FootComment = old.FootComment
	if old.Style&yaml.FlowStyle != 0 && (n.Kind == yaml.SequenceNode || n.Kind == yaml.MappingNode) {
		n.Style |= yaml.FlowStyle
	}
	m.Content[idx+1] = n
}

// ReorderKeys reorders the pairs of mapping m: keys named in order come
// first, in that order, followed by the remaining keys in their current
// relative order. Comments stay attached to their key and value nodes.
func ReorderKeys(m *yaml.Node, order []string) {
	pairs := len(m.Content) / 2
	out := make([]*yaml.Node, 0, len(m.Content))
	placed := make([]bool, pairs)

	for _, key := range order {
		for p := 0; p < pairs; p++ {
			if !placed[p] && m.Content[2*p].Value == key {
				placed[p] = true
				out = append(out, m.Content[2*p], m.Content[2*p+1])
				break
			}
		}
	}
	for p := 0; p < pairs; p++ {
		if !placed[p] {
			out = append(out, m.Content[2*p], m.Content[2*p+1])
		}
	}
	m.Content = out
}
