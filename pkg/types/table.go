package types

import (
	"errors"
	"slices"
	"strings"
)

// IDColumn is the record key whose value identifies a record. It is both the
// row key of a Table and an ordinary column.
const IDColumn = "id"

// Reserved cell tokens. Real data must never contain these strings.
const (
	// AbsentKey marks a cell whose column does not exist for the row.
	AbsentKey = "yaml_no_key"
	// ExplicitNull marks a cell whose key exists with a null value.
	ExplicitNull = "yaml_empty"
)

// Table errors.
var (
	ErrDuplicateID        = errors.New("duplicate record id")
	ErrDuplicateColumn    = errors.New("duplicate column")
	ErrMissingID          = errors.New("record id must not be empty")
	ErrMissingIDColumn    = errors.New("id column not found")
	ErrIdentitySetChanged = errors.New("row identities changed")
)

// Table is a sparse two-dimensional table of canonical strings. Rows are
// keyed by record id and keep insertion order; columns keep first-seen
// order. Cells that were never set read as AbsentKey.
type Table struct {
	columns []string
	colSet  map[string]bool
	ids     []string
	rows    map[string]map[string]string
}

// NewTable returns an empty table with the given columns. The id column is
// put first unless columns already name it.
func NewTable(columns ...string) *Table {
	t := &Table{
		colSet: make(map[string]bool),
		rows:   make(map[string]map[string]string),
	}
	if !slices.Contains(columns, IDColumn) {
		t.AddColumn(IDColumn)
	}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return slices.Clone(t.columns)
}

// IDs returns the row ids in insertion order.
func (t *Table) IDs() []string {
	return slices.Clone(t.ids)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.ids)
}

// HasColumn reports whether col is one of the table's columns.
func (t *Table) HasColumn(col string) bool {
	return t.colSet[col]
}

// Has reports whether a row with the given id exists.
func (t *Table) Has(id string) bool {
	_, ok := t.rows[id]
	return ok
}

// AddColumn appends col if it is not already present.
func (t *Table) AddColumn(col string) {
	if t.colSet[col] {
		return
	}
	t.colSet[col] = true
	t.columns = append(t.columns, col)
}

// AddRow appends a row. Cell values are trimmed, unknown columns are
// appended to the column list and the id column is set to id.
// Returns ErrMissingID or ErrDuplicateID.
func (t *Table) AddRow(id string, cells map[string]string, order ...string) error {
	id = strings.TrimSpace(id)
	if id == "" || id == AbsentKey {
		return ErrMissingID
	}
	if t.Has(id) {
		return ErrDuplicateID
	}

	row := make(map[string]string, len(cells)+1)
	for _, col := range order {
		if _, ok := cells[col]; ok {
			t.AddColumn(col)
		}
	}
	// Cells not named in order are added in sorted order so that the
	// resulting column list is deterministic.
	rest := make([]string, 0, len(cells))
	for col := range cells {
		if !t.colSet[col] {
			rest = append(rest, col)
		}
	}
	slices.Sort(rest)
	for _, col := range rest {
		t.AddColumn(col)
	}
	for col, v := range cells {
		row[col] = strings.TrimSpace(v)
	}
	row[IDColumn] = id

	t.ids = append(t.ids, id)
	t.rows[id] = row
	return nil
}

// Get returns the cell at (id, col), or AbsentKey when the row, the column
// or the cell does not exist.
func (t *Table) Get(id, col string) string {
	row, ok := t.rows[id]
	if !ok {
		return AbsentKey
	}
	v, ok := row[col]
	if !ok {
		return AbsentKey
	}
	return v
}

// Set stores value at (id, col), adding the column when needed. The row must
// exist; Set reports whether it did.
func (t *Table) Set(id, col, value string) bool {
	row, ok := t.rows[id]
	if !ok {
		return false
	}
	t.AddColumn(col)
	row[col] = strings.TrimSpace(value)
	return true
}

// Row returns a copy of the row with every table column filled in.
func (t *Table) Row(id string) map[string]string {
	if !t.Has(id) {
		return nil
	}
	out := make(map[string]string, len(t.columns))
	for _, col := range t.columns {
		out[col] = t.Get(id, col)
	}
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	c := NewTable(t.columns...)
	for _, id := range t.ids {
		row := make(map[string]string, len(t.rows[id]))
		for k, v := range t.rows[id] {
			row[k] = v
		}
		c.ids = append(c.ids, id)
		c.rows[id] = row
	}
	return c
}

// Select returns a new table holding only the given rows, in the given
// order, with every column of t. Unknown ids are skipped.
func (t *Table) Select(ids []string) *Table {
	c := NewTable(t.columns...)
	for _, id := range ids {
		if !t.Has(id) || c.Has(id) {
			continue
		}
		row := make(map[string]string, len(t.rows[id]))
		for k, v := range t.rows[id] {
			row[k] = v
		}
		c.ids = append(c.ids, id)
		c.rows[id] = row
	}
	return c
}

// Drop returns a copy of t without the rows whose id satisfies fn.
func (t *Table) Drop(fn func(id string) bool) *Table {
	keep := make([]string, 0, len(t.ids))
	for _, id := range t.ids {
		if !fn(id) {
			keep = append(keep, id)
		}
	}
	return t.Select(keep)
}

// Concat returns a table with the rows of t followed by the rows of other
// whose ids are not already in t. Columns are the union, t's first.
func (t *Table) Concat(other *Table) *Table {
	c := t.Clone()
	for _, col := range other.columns {
		c.AddColumn(col)
	}
	for _, id := range other.ids {
		if c.Has(id) {
			continue
		}
		row := make(map[string]string, len(other.rows[id]))
		for k, v := range other.rows[id] {
			row[k] = v
		}
		c.ids = append(c.ids, id)
		c.rows[id] = row
	}
	return c
}

// Equal reports whether t and o have the same rows and the same cell values
// over the union of their columns. Row and column order are ignored; a
// missing column compares as AbsentKey.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() {
		return false
	}
	cols := slices.Clone(t.columns)
	for _, c := range o.columns {
		if !t.colSet[c] {
			cols = append(cols, c)
		}
	}
	for _, id := range t.ids {
		if !o.Has(id) {
			return false
		}
		for _, col := range cols {
			if t.Get(id, col) != o.Get(id, col) {
				return false
			}
		}
	}
	return true
}
