// Package sqlite provides the public API for the SQLite history ledger.
// This package exposes the factory function while keeping implementation
// details internal.
package sqlite

import (
	"github.com/mesh-intelligence/notesync/internal/sqlite"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

// NewLedger creates a new SQLite history ledger.
// The ledger is not attached; call Attach with a data directory first.
//
// Example:
//
//	ledger := sqlite.NewLedger()
//	if err := ledger.Attach(".notesync"); err != nil {
//	    return err
//	}
//	defer ledger.Detach()
//	runs, err := ledger.ListRuns(types.RunFilter{Limit: 10})
func NewLedger() types.Ledger {
	return sqlite.NewBackend()
}
