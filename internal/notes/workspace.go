package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Directory name patterns for record-bearing directories. Run directories
// must additionally be "run" followed only by digits.
const (
	RunPrefix       = "run"
	TemplatePrefix  = "template"
	runPattern      = RunPrefix + "[0-9]*"
	templatePattern = TemplatePrefix + "*"
)

// Workspace is a directory holding run and template directories, each with
// one record file.
type Workspace struct {
	fs         afero.Fs
	root       string
	recordFile string
	log        *log.Entry
}

// NewWorkspace returns a Workspace rooted at root. recordFile is the name of
// the record file inside each directory, usually types.DefaultRecordFile.
// A nil logger uses the standard logrus logger.
func NewWorkspace(fs afero.Fs, root, recordFile string, logger *log.Entry) *Workspace {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Workspace{
		fs:         fs,
		root:       root,
		recordFile: recordFile,
		log:        logger,
	}
}

// Fs returns the workspace file system.
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// RecordPath returns the record file path for the directory named id.
func (w *Workspace) RecordPath(id string) string {
	return filepath.Join(w.root, id, w.recordFile)
}

// IsRunDir reports whether name is "run" followed by a non-negative integer.
func IsRunDir(name string) bool {
	ok, _ := doublestar.Match(runPattern, name)
	if !ok {
		return false
	}
	digits := strings.TrimPrefix(name, RunPrefix)
	return strings.Trim(digits, "0123456789") == ""
}

// IsTemplateDir reports whether name starts with "template".
func IsTemplateDir(name string) bool {
	ok, _ := doublestar.Match(templatePattern, name)
	return ok
}

// Discover returns the names of the run and template directories directly
// under the root that contain a record file, in lexicographic order.
func (w *Workspace) Discover() ([]string, error) {
	entries, err := afero.ReadDir(w.fs, w.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", w.root, err)
	}

	var dirs []string
	for _, e := range entries {
		name := e.Name()
		if !IsRunDir(name) && !IsTemplateDir(name) {
			continue
		}
		if !w.isDir(e) {
			continue
		}
		ok, err := afero.Exists(w.fs, w.RecordPath(name))
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", w.RecordPath(name), err)
		}
		if !ok {
			w.log.WithField("dir", name).Debug("no record file, skipping")
			continue
		}
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// isDir follows symlinks so linked run directories are discovered.
func (w *Workspace) isDir(e os.FileInfo) bool {
	if e.Mode()&os.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := w.fs.Stat(filepath.Join(w.root, e.Name()))
	return err == nil && info.IsDir()
}

// Records loads every discovered record. The first load error aborts.
func (w *Workspace) Records() ([]*types.Record, error) {
	dirs, err := w.Discover()
	if err != nil {
		return nil, err
	}
	records := make([]*types.Record, 0, len(dirs))
	for _, dir := range dirs {
		rec, err := LoadRecord(w.fs, w.RecordPath(dir))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	w.log.WithField("records", len(records)).Debug("loaded records")
	return records, nil
}

// Table loads every record and assembles the folder table.
func (w *Workspace) Table() (*types.Table, error) {
	records, err := w.Records()
	if err != nil {
		return nil, err
	}
	return BuildTable(records)
}

// BuildTable assembles records into a table keyed by record id. Columns are
// the union of record keys in first-seen order; cells a record lacks read as
// types.AbsentKey.
func BuildTable(records []*types.Record) (*types.Table, error) {
	var columns []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, k := range rec.Keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	t := types.NewTable(columns...)
	for _, rec := range records {
		if err := t.AddRow(rec.ID, rec.Values, rec.Keys...); err != nil {
			return nil, fmt.Errorf("adding %s: %w", rec.Path, err)
		}
	}
	return t, nil
}
