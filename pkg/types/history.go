package types

import (
	"errors"
	"time"
)

// Sync directions recorded in the history ledger.
const (
	DirectionCollect = "collect"
	DirectionUpdate  = "update"
	DirectionModify  = "modify"
)

// Run is one applied write, as stored in the history ledger.
type Run struct {
	RunID     string    `json:"run_id"`
	Direction string    `json:"direction"`
	Root      string    `json:"root"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`

	// ChangeCount is the number of changes stored for the run. Listings
	// fill it without loading Changes.
	ChangeCount int      `json:"change_count"`
	Changes     []Change `json:"changes,omitempty"`
}

// Change is a single cell transition within a Run. Added rows are recorded
// with Column set to IDColumn and Old set to AbsentKey.
type Change struct {
	RecordID string `json:"record_id"`
	Column   string `json:"column"`
	Old      string `json:"old"`
	New      string `json:"new"`
}

// RunFilter narrows Ledger.ListRuns.
type RunFilter struct {
	// RecordID keeps runs that changed this record.
	RecordID string
	// Direction keeps runs of one direction.
	Direction string
	// Limit caps the number of runs; 0 means no limit.
	Limit int
}

// Ledger stores applied runs. Operations other than Attach return
// ErrLedgerDetached until Attach succeeds.
type Ledger interface {
	// Attach opens the ledger in dataDir.
	Attach(dataDir string) error
	// Detach closes the ledger. Detach is idempotent.
	Detach() error
	// RecordRun stores run and assigns its RunID and CreatedAt when empty.
	RecordRun(run *Run) error
	// ListRuns returns runs newest first without their changes.
	ListRuns(filter RunFilter) ([]*Run, error)
	// GetRun returns one run with its changes by id or unique id prefix.
	GetRun(runID string) (*Run, error)
}

// History ledger errors.
var (
	ErrLedgerDetached  = errors.New("history ledger is detached")
	ErrAlreadyAttached = errors.New("history ledger is already attached")
	ErrRunNotFound     = errors.New("run not found")
)
