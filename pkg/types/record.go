package types

import "errors"

// Record is one directory's metadata document reduced to canonical strings.
type Record struct {
	// ID is the value of the id key; it equals the containing directory name.
	ID string
	// Path is the backing record file.
	Path string
	// Keys lists the document's top-level keys in file order.
	Keys []string
	// Values maps each key to its canonical string form.
	Values map[string]string
}

// Record load errors. Any of them aborts the whole operation.
var (
	ErrMalformedRecord  = errors.New("malformed record file")
	ErrEmptyRecord      = errors.New("record file is empty")
	ErrIdentityMismatch = errors.New("record id does not match directory name")
)

// Summary file errors.
var (
	ErrSummaryNotFound = errors.New("summary file not found")
)

// Scaffold errors.
var (
	ErrTemplateNotFound = errors.New("template directory not found")
)
