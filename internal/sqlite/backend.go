// Package sqlite implements the history ledger on SQLite. Every applied
// collect, update or modify write is stored as a run with its cell changes
// in <data dir>/history.db and appended to <data dir>/history.jsonl. The
// journal is the durable copy: on Attach every journal run missing from
// history.db is loaded into it.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// DatabaseFile is the ledger file name inside the data directory.
const DatabaseFile = "history.db"

// Backend is the SQLite history ledger. It is not attached until Attach
// succeeds; operations on a detached backend return types.ErrLedgerDetached.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	path     string
	journal  string
	db       *sql.DB
}

var _ types.Ledger = (*Backend)(nil)

// NewBackend creates a detached backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the ledger in dataDir, creating the directory and the schema
// when needed. Existing history is kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(dataDir string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	// A single connection keeps foreign_keys and transactions on one handle.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}

	journal := filepath.Join(dataDir, JournalFile)
	n, err := replayJournal(db, journal)
	if err != nil {
		db.Close()
		return fmt.Errorf("replaying %s: %w", journal, err)
	}
	if n > 0 {
		log.WithFields(log.Fields{
			"journal": journal,
			"runs":    n,
		}).Info("rebuilt history from journal")
	}

	b.db = db
	b.path = dbPath
	b.journal = journal
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return err
	}
	b.db = nil
	b.attached = false
	return nil
}

// Path returns the database file path of an attached backend.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

func createSchema(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	for _, ddl := range schemaDDL {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

// generateUUID generates a new UUID v7 for run IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
