package cli

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/internal/paths"
	"github.com/mesh-intelligence/notesync/internal/reconcile"
	"github.com/mesh-intelligence/notesync/internal/sqlite"
	"github.com/mesh-intelligence/notesync/internal/summary"
)

// env is the workspace of one command with its summary store and, when
// history is enabled, the attached ledger.
type env struct {
	ws     *notes.Workspace
	store  *summary.Store
	ledger *sqlite.Backend
	log    *log.Entry
}

// openEnv resolves the workspace directory and opens its summary store.
// With withLedger set and history enabled the ledger is attached; a ledger
// that cannot be attached is logged and skipped.
func (a *app) openEnv(withLedger bool) (*env, error) {
	root, err := paths.ResolveWorkspace(a.flags.dir)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve workspace: %w", err))
	}
	logger := log.WithField("workspace", root)

	fs := afero.NewOsFs()
	e := &env{
		ws:    notes.NewWorkspace(fs, root, a.cfg.RecordFile, logger),
		store: summary.NewStore(fs, filepath.Join(root, a.cfg.SummaryFile)),
		log:   logger,
	}
	if !withLedger || !a.cfg.History {
		return e, nil
	}

	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.DataDir, root)
	if err != nil {
		return nil, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	backend := sqlite.NewBackend()
	if err := backend.Attach(dataDir); err != nil {
		logger.WithError(err).WithField("data_dir", dataDir).Warn("history disabled")
		return e, nil
	}
	e.ledger = backend
	return e, nil
}

// engine returns a reconcile engine over e. A nil ledger disables history.
func (e *env) engine() *reconcile.Engine {
	if e.ledger == nil {
		return reconcile.NewEngine(e.ws, e.store, nil, e.log)
	}
	return reconcile.NewEngine(e.ws, e.store, e.ledger, e.log)
}

// close detaches the ledger if attached.
func (e *env) close() {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.Detach(); err != nil {
		e.log.WithError(err).Warn("detaching history ledger")
	}
}
