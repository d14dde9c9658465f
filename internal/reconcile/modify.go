package reconcile

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// TransformFunc returns an edited table. It receives a copy and may modify
// it in place; the returned table must hold the same ids.
type TransformFunc func(t *types.Table) (*types.Table, error)

// ModifyResult reports a Modify call.
type ModifyResult struct {
	// Diff compares the transformed table (A) with the folder table (B).
	Diff    *diff.Diff
	Written []notes.Written
	RunID   string
}

// HasChanges reports whether the transform changed any record.
func (r *ModifyResult) HasChanges() bool {
	return r.Diff.HasChanges()
}

// Changes lists the record cells the transform changes, as old -> new.
func (r *ModifyResult) Changes() []types.Change {
	return cellChanges(r.Diff, r.Diff.ChangedB, r.Diff.ChangedA)
}

// Modify applies fn to the folder table and writes the changed cells back
// into the record files. Template rows are left out unless
// includeTemplates is set. Returns types.ErrIdentitySetChanged when fn adds
// or removes rows.
func (e *Engine) Modify(fn TransformFunc, includeTemplates bool, opts Options) (*ModifyResult, error) {
	folder, err := e.ws.Table()
	if err != nil {
		return nil, loadError("records", err)
	}
	if !includeTemplates {
		folder = folder.Drop(notes.IsTemplateDir)
	}

	modified, err := fn(folder.Clone())
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if modified == nil || !sameIDs(modified.IDs(), folder.IDs()) {
		return nil, types.ErrIdentitySetChanged
	}
	for _, id := range modified.IDs() {
		if got := modified.Get(id, types.IDColumn); got != id {
			return nil, fmt.Errorf("%w: %s has id %q", types.ErrIdentitySetChanged, id, got)
		}
	}

	d := e.filter(diff.Compare(modified, folder), opts)
	res := &ModifyResult{Diff: d}
	if !opts.Write || !res.HasChanges() {
		return res, nil
	}

	written, err := e.ws.ApplyChanges(d.ChangedA, modified.Columns())
	res.Written = written
	if err != nil {
		return res, err
	}

	res.RunID = e.record(&types.Run{
		Direction: types.DirectionModify,
		Target:    e.ws.Root(),
		Changes:   res.Changes(),
	})
	return res, nil
}

func sameIDs(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
