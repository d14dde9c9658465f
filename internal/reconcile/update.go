package reconcile

import (
	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// UpdateResult reports an Update call.
type UpdateResult struct {
	// Diff compares the summary table (A) with the folder table (B).
	Diff *diff.Diff
	// OnlyInSummary and OnlyInFolders are ignored ids.
	OnlyInSummary []string
	OnlyInFolders []string
	// Written lists the rewritten record files.
	Written []notes.Written
	RunID   string
}

// HasChanges reports whether updating would rewrite any record file.
func (r *UpdateResult) HasChanges() bool {
	return r.Diff.HasChanges()
}

// Changes lists the record cells updating writes, as record -> summary.
func (r *UpdateResult) Changes() []types.Change {
	return cellChanges(r.Diff, r.Diff.ChangedB, r.Diff.ChangedA)
}

// Update writes summary cells that differ from the folder records back into
// the record files. Only ids present on both sides are touched; record
// files are never created or deleted. The summary file must exist.
func (e *Engine) Update(opts Options) (*UpdateResult, error) {
	csv, err := e.store.Read()
	if err != nil {
		return nil, loadError("summary", err)
	}
	folder, err := e.ws.Table()
	if err != nil {
		return nil, loadError("records", err)
	}

	d := e.filter(diff.Compare(csv, folder), opts)
	res := &UpdateResult{
		Diff:          d,
		OnlyInSummary: d.OnlyInA,
		OnlyInFolders: d.OnlyInB,
	}

	e.log.WithFields(log.Fields{
		"records":      folder.Len(),
		"summary":      csv.Len(),
		"only_summary": len(d.OnlyInA),
		"only_folders": len(d.OnlyInB),
		"changed":      len(d.ChangedA),
	}).Debug("compared summary with records")

	if !opts.Write || !res.HasChanges() {
		return res, nil
	}

	written, err := e.ws.ApplyChanges(d.ChangedA, csv.Columns())
	res.Written = written
	if err != nil {
		return res, err
	}

	res.RunID = e.record(&types.Run{
		Direction: types.DirectionUpdate,
		Target:    e.ws.Root(),
		Changes:   res.Changes(),
	})
	return res, nil
}
