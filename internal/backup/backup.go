// Package backup makes the single-generation side copies written before a
// record or summary file is overwritten.
package backup

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Suffix is appended to a file path to name its backup.
const Suffix = ".bk"

// Path returns the backup path for path.
func Path(path string) string {
	return path + Suffix
}

// Copy copies path to Path(path), replacing any previous backup. The
// backup keeps the source's permission bits and modification time.
// Returns the backup path.
func Copy(fs afero.Fs, path string) (string, error) {
	dst := Path(path)

	src, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("copying %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", dst, err)
	}

	// Best effort, like a metadata-preserving copy on file systems that
	// track times.
	_ = fs.Chmod(dst, info.Mode().Perm())
	_ = fs.Chtimes(dst, info.ModTime(), info.ModTime())
	return dst, nil
}
