// Package reconcile compares the folder table with the summary table and
// writes the result in either direction.
//
// Collect writes the folder records into the summary file, Update writes
// summary edits back into the record files and Modify applies a table
// transform to the record files. Every direction is a dry run unless
// Options.Write is set.
package reconcile

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/internal/summary"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// Ledger stores applied runs. RecordRun assigns run.RunID.
type Ledger interface {
	RecordRun(run *types.Run) error
}

// Options control a single reconcile call.
type Options struct {
	// Write applies the changes; otherwise they are only reported.
	Write bool
	// IgnoreFloatError drops numeric differences within Tolerance.
	IgnoreFloatError bool
	Tolerance        diff.Tolerance
}

// Engine reconciles one workspace with its summary file.
type Engine struct {
	ws     *notes.Workspace
	store  *summary.Store
	ledger Ledger
	log    *log.Entry
}

// NewEngine returns an Engine. ledger may be nil to skip history recording;
// a nil logger uses the standard logrus logger.
func NewEngine(ws *notes.Workspace, store *summary.Store, ledger Ledger, logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Engine{ws: ws, store: store, ledger: ledger, log: logger}
}

// Workspace returns the engine's workspace.
func (e *Engine) Workspace() *notes.Workspace { return e.ws }

// Store returns the engine's summary store.
func (e *Engine) Store() *summary.Store { return e.store }

func (e *Engine) filter(d *diff.Diff, opts Options) *diff.Diff {
	if !opts.IgnoreFloatError {
		return d
	}
	filtered := diff.IgnoreFloatError(d, opts.Tolerance)
	e.log.WithFields(log.Fields{
		"before": len(d.ChangedA),
		"after":  len(filtered.ChangedA),
	}).Debug("ignored float error")
	return filtered
}

// record stores run in the ledger. A ledger failure does not undo the
// write that already happened, so it is logged rather than returned.
func (e *Engine) record(run *types.Run) string {
	if e.ledger == nil || len(run.Changes) == 0 {
		return ""
	}
	run.Root = e.ws.Root()
	if err := e.ledger.RecordRun(run); err != nil {
		e.log.WithError(err).Warn("recording history failed")
		return ""
	}
	e.log.WithFields(log.Fields{
		"run":       run.RunID,
		"direction": run.Direction,
		"changes":   len(run.Changes),
	}).Debug("recorded history")
	return run.RunID
}

// cellChanges lists every changed cell of d as a transition from the
// from side to the to side, in id and column order.
func cellChanges(d *diff.Diff, from, to map[string]map[string]string) []types.Change {
	var out []types.Change
	for _, id := range d.ChangedIDs() {
		for _, col := range d.ChangedColumns(id) {
			out = append(out, types.Change{
				RecordID: id,
				Column:   col,
				Old:      from[id][col],
				New:      to[id][col],
			})
		}
	}
	return out
}

func loadError(what string, err error) error {
	return fmt.Errorf("loading %s: %w", what, err)
}
