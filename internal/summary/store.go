// Package summary reads and writes the flat summary file, a CSV table with
// one row per record id.
package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/notesync/internal/backup"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Store is the summary file at a fixed path.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a Store for the summary file at path.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the summary file path.
func (s *Store) Path() string { return s.path }

// Exists reports whether the summary file exists.
func (s *Store) Exists() (bool, error) {
	ok, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", s.path, err)
	}
	return ok, nil
}

// Read loads the summary file. Every cell is kept as trimmed text and blank
// cells read as types.AbsentKey. Returns types.ErrSummaryNotFound when the
// file does not exist.
func (s *Store) Read() (*types.Table, error) {
	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", s.path, types.ErrSummaryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	t, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return t, nil
}

// ReadOrEmpty is Read, but a missing file yields an empty table holding only
// the id column. found reports whether the file existed.
func (s *Store) ReadOrEmpty() (t *types.Table, found bool, err error) {
	t, err = s.Read()
	if errors.Is(err, types.ErrSummaryNotFound) {
		return types.NewTable(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// Write replaces the summary file with t. An existing file is first copied
// to its backup path. types.AbsentKey cells are written blank.
// Returns the backup path, or "" when there was no previous file.
func (s *Store) Write(t *types.Table) (string, error) {
	exists, err := s.Exists()
	if err != nil {
		return "", err
	}
	var bk string
	if exists {
		if bk, err = backup.Copy(s.fs, s.path); err != nil {
			return "", err
		}
	}

	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", s.path, err)
	}
	if err := encode(f, t); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", s.path, err)
	}
	return bk, nil
}

func decode(r io.Reader) (*types.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, types.ErrMissingIDColumn
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(header))
	idCol := -1
	for i, h := range header {
		h = strings.TrimSpace(h)
		if seen[h] {
			return nil, fmt.Errorf("%w: %q", types.ErrDuplicateColumn, h)
		}
		seen[h] = true
		header[i] = h
		if h == types.IDColumn {
			idCol = i
		}
	}
	if idCol < 0 {
		return nil, types.ErrMissingIDColumn
	}

	t := types.NewTable(header...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
		}

		cells := make(map[string]string, len(header))
		for i, col := range header {
			v := ""
			if i < len(rec) {
				v = strings.TrimSpace(rec[i])
			}
			if v == "" {
				v = types.AbsentKey
			}
			cells[col] = v
		}
		id := cells[types.IDColumn]
		if err := t.AddRow(id, cells, header...); err != nil {
			return nil, fmt.Errorf("line %d: %w: %q", line, err, id)
		}
	}
	return t, nil
}

func encode(w io.Writer, t *types.Table) error {
	cw := csv.NewWriter(w)
	columns := t.Columns()
	if err := cw.Write(columns); err != nil {
		return err
	}

	rec := make([]string, len(columns))
	for _, id := range t.IDs() {
		for i, col := range columns {
			v := t.Get(id, col)
			if v == types.AbsentKey {
				v = ""
			}
			rec[i] = v
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
