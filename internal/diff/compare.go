// Package diff compares two types.Table values cell by cell and narrows the
// result with an optional numeric tolerance.
package diff

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Diff is the result of Compare(a, b).
type Diff struct {
	// OnlyInA and OnlyInB are the sorted ids present on one side only.
	OnlyInA []string `json:"only_in_a"`
	OnlyInB []string `json:"only_in_b"`
	// ChangedA and ChangedB map each shared id with at least one differing
	// cell to the differing columns and their value on that side.
	ChangedA map[string]map[string]string `json:"changed_a"`
	ChangedB map[string]map[string]string `json:"changed_b"`
	// Columns is the union of both tables' columns, a's first.
	Columns []string `json:"columns"`
}

// Compare diffs table a against table b. Both tables are viewed over the
// union of their columns, so a column missing from one table compares as
// types.AbsentKey. Cell values are compared as exact strings.
func Compare(a, b *types.Table) *Diff {
	columns := a.Columns()
	for _, c := range b.Columns() {
		if !a.HasColumn(c) {
			columns = append(columns, c)
		}
	}

	d := &Diff{
		OnlyInA:  []string{},
		OnlyInB:  []string{},
		ChangedA: make(map[string]map[string]string),
		ChangedB: make(map[string]map[string]string),
		Columns:  columns,
	}

	var common []string
	for _, id := range a.IDs() {
		if b.Has(id) {
			common = append(common, id)
		} else {
			d.OnlyInA = append(d.OnlyInA, id)
		}
	}
	for _, id := range b.IDs() {
		if !a.Has(id) {
			d.OnlyInB = append(d.OnlyInB, id)
		}
	}
	sort.Strings(d.OnlyInA)
	sort.Strings(d.OnlyInB)
	sort.Strings(common)

	for _, id := range common {
		var ca, cb map[string]string
		for _, col := range columns {
			va, vb := a.Get(id, col), b.Get(id, col)
			if va == vb {
				continue
			}
			if ca == nil {
				ca = make(map[string]string)
				cb = make(map[string]string)
			}
			ca[col] = va
			cb[col] = vb
		}
		if ca != nil {
			d.ChangedA[id] = ca
			d.ChangedB[id] = cb
		}
	}
	return d
}

// HasChanges reports whether any shared id has a differing cell.
func (d *Diff) HasChanges() bool {
	return len(d.ChangedA) > 0
}

// ChangedIDs returns the ids with differing cells, sorted.
func (d *Diff) ChangedIDs() []string {
	ids := make([]string, 0, len(d.ChangedA))
	for id := range d.ChangedA {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ChangedColumns returns the differing columns of id in table column order.
func (d *Diff) ChangedColumns(id string) []string {
	cols := d.ChangedA[id]
	out := make([]string, 0, len(cols))
	for _, c := range d.Columns {
		if _, ok := cols[c]; ok {
			out = append(out, c)
		}
	}
	// Columns absent from d.Columns can only appear in hand-built diffs.
	if len(out) < len(cols) {
		var rest []string
		for c := range cols {
			if !slices.Contains(out, c) {
				rest = append(rest, c)
			}
		}
		sort.Strings(rest)
		out = append(out, rest...)
	}
	return out
}

// Swap returns the diff as Compare(b, a) would report it.
func (d *Diff) Swap() *Diff {
	return &Diff{
		OnlyInA:  d.OnlyInB,
		OnlyInB:  d.OnlyInA,
		ChangedA: d.ChangedB,
		ChangedB: d.ChangedA,
		Columns:  d.Columns,
	}
}

// Clone returns a deep copy of d.
func (d *Diff) Clone() *Diff {
	return &Diff{
		OnlyInA:  append([]string{}, d.OnlyInA...),
		OnlyInB:  append([]string{}, d.OnlyInB...),
		ChangedA: cloneChanges(d.ChangedA),
		ChangedB: cloneChanges(d.ChangedB),
		Columns:  append([]string{}, d.Columns...),
	}
}

// Verify checks the pairing invariant: both sides name the same ids and,
// per id, the same columns, and every pair of values differs.
func (d *Diff) Verify() error {
	if len(d.ChangedA) != len(d.ChangedB) {
		return fmt.Errorf("changed ids differ: %d on a, %d on b", len(d.ChangedA), len(d.ChangedB))
	}
	for id, ca := range d.ChangedA {
		cb, ok := d.ChangedB[id]
		if !ok {
			return fmt.Errorf("id %q changed on a only", id)
		}
		if len(ca) != len(cb) {
			return fmt.Errorf("id %q: %d columns on a, %d on b", id, len(ca), len(cb))
		}
		for col, va := range ca {
			vb, ok := cb[col]
			if !ok {
				return fmt.Errorf("id %q: column %q changed on a only", id, col)
			}
			if va == vb {
				return fmt.Errorf("id %q: column %q has equal values %q", id, col, va)
			}
		}
	}
	return nil
}

func cloneChanges(in map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(in))
	for id, cols := range in {
		c := make(map[string]string, len(cols))
		for k, v := range cols {
			c[k] = v
		}
		out[id] = c
	}
	return out
}
