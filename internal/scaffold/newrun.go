// Package scaffold creates new run directories from a template directory.
package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// NextRunIndex returns one more than the highest run<N> directory index
// under ws's root, or 0 when there is none.
func NextRunIndex(ws *notes.Workspace) (int, error) {
	entries, err := afero.ReadDir(ws.Fs(), ws.Root())
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", ws.Root(), err)
	}
	next := 0
	for _, e := range entries {
		name := e.Name()
		if !notes.IsRunDir(name) {
			continue
		}
		info, err := ws.Fs().Stat(filepath.Join(ws.Root(), name))
		if err != nil || !info.IsDir() {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, notes.RunPrefix))
		if err != nil {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// NewRun copies templateDir to the next free run<N> directory under ws's
// root and sets the id of its record file to the new directory name.
// templateDir is taken relative to the root unless it is absolute.
// Symbolic links are copied as links when the file system supports them.
// Returns the new directory name.
func NewRun(ws *notes.Workspace, templateDir string) (string, error) {
	fs := ws.Fs()
	src := templateDir
	if !filepath.IsAbs(src) {
		src = filepath.Join(ws.Root(), src)
	}
	info, err := fs.Stat(src)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%s: %w", templateDir, types.ErrTemplateNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", templateDir, types.ErrTemplateNotFound)
	}

	next, err := NextRunIndex(ws)
	if err != nil {
		return "", err
	}
	name := notes.RunPrefix + strconv.Itoa(next)
	dst := filepath.Join(ws.Root(), name)

	if err := copyTree(fs, src, dst); err != nil {
		return "", fmt.Errorf("copying %s to %s: %w", templateDir, name, err)
	}

	record := ws.RecordPath(name)
	ok, err := afero.Exists(fs, record)
	if err != nil {
		return "", fmt.Errorf("checking %s: %w", record, err)
	}
	if ok {
		if err := notes.SetIdentity(fs, record, name); err != nil {
			return "", err
		}
	}

	log.WithFields(log.Fields{
		"template": templateDir,
		"run":      name,
	}).Info("created run directory")
	return name, nil
}

// copyTree copies the directory src to dst, which must not exist.
func copyTree(fs afero.Fs, src, dst string) error {
	if _, err := fs.Stat(dst); err == nil {
		return fmt.Errorf("%s already exists", dst)
	}
	return afero.Walk(fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			return copyLink(fs, path, target)
		case info.IsDir():
			return fs.MkdirAll(target, info.Mode().Perm())
		default:
			return copyFile(fs, path, target, info)
		}
	})
}

func copyLink(fs afero.Fs, path, target string) error {
	reader, ok := fs.(afero.LinkReader)
	linker, ok2 := fs.(afero.Linker)
	if !ok || !ok2 {
		return fmt.Errorf("%s: symbolic links not supported", path)
	}
	dest, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(dest, target)
}

func copyFile(fs afero.Fs, path, target string, info os.FileInfo) error {
	in, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	_ = fs.Chtimes(target, info.ModTime(), info.ModTime())
	return nil
}
