package reconcile

import (
	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// CollectResult reports a Collect call.
type CollectResult struct {
	// Diff compares the summary table (A) with the folder table (B).
	Diff *diff.Diff
	// Found reports whether the summary file existed.
	Found bool
	// Added lists the ids found only in the folders.
	Added []string
	// Kept lists the ids found only in the summary; their rows are kept.
	Kept []string
	// Table is the summary table that is, or would be, written.
	Table *types.Table
	// Written reports whether the summary file was written.
	Written bool
	// Backup is the backup of the previous summary file, if any.
	Backup string
	// RunID is the history run id of the write, if recorded.
	RunID string
}

// HasChanges reports whether collecting would change the summary file.
func (r *CollectResult) HasChanges() bool {
	return len(r.Added) > 0 || r.Diff.HasChanges()
}

// Changes lists the summary cells collecting writes: one IDColumn change
// per added row, then every changed cell as summary -> folder.
func (r *CollectResult) Changes() []types.Change {
	changes := make([]types.Change, 0, len(r.Added))
	for _, id := range r.Added {
		changes = append(changes, types.Change{
			RecordID: id,
			Column:   types.IDColumn,
			Old:      types.AbsentKey,
			New:      id,
		})
	}
	return append(changes, cellChanges(r.Diff, r.Diff.ChangedA, r.Diff.ChangedB)...)
}

// Collect gathers the folder records into the summary table. The written
// table holds every folder row followed by the summary rows whose folders
// no longer exist; no summary row is ever removed.
func (e *Engine) Collect(opts Options) (*CollectResult, error) {
	folder, err := e.ws.Table()
	if err != nil {
		return nil, loadError("records", err)
	}
	csv, found, err := e.store.ReadOrEmpty()
	if err != nil {
		return nil, loadError("summary", err)
	}

	d := e.filter(diff.Compare(csv, folder), opts)
	res := &CollectResult{
		Diff:  d,
		Found: found,
		Added: d.OnlyInB,
		Kept:  d.OnlyInA,
		Table: folder.Concat(csv.Select(d.OnlyInA)),
	}

	e.log.WithFields(log.Fields{
		"records": folder.Len(),
		"summary": csv.Len(),
		"added":   len(res.Added),
		"kept":    len(res.Kept),
		"changed": len(d.ChangedA),
	}).Debug("collected")

	if !opts.Write || !res.HasChanges() {
		return res, nil
	}

	bk, err := e.store.Write(res.Table)
	if err != nil {
		return res, err
	}
	res.Written = true
	res.Backup = bk
	e.log.WithFields(log.Fields{
		"path":   e.store.Path(),
		"backup": bk,
		"rows":   res.Table.Len(),
	}).Info("wrote summary")

	res.RunID = e.record(&types.Run{
		Direction: types.DirectionCollect,
		Target:    e.store.Path(),
		Changes:   res.Changes(),
	})
	return res, nil
}
