package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// replayJournal loads the journal runs missing from the database, so an
// empty database is rebuilt and one that fell behind the journal catches
// up. Malformed lines are skipped. Loading is transactional.
func replayJournal(db *sql.DB, path string) (int, error) {
	records, err := readJSONL(path)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning replay transaction: %w", err)
	}
	defer tx.Rollback()

	loaded := 0
	for i, rec := range records {
		var run types.Run
		if err := json.Unmarshal(rec, &run); err != nil || run.RunID == "" {
			log.WithField("line", i+1).Warn("skipping malformed journal record")
			continue
		}
		var n int
		if err := tx.QueryRow("SELECT COUNT(*) FROM runs WHERE run_id = ?", run.RunID).Scan(&n); err != nil {
			return 0, fmt.Errorf("looking up run %s: %w", run.RunID, err)
		}
		if n > 0 {
			continue
		}
		if err := insertRun(tx, &run); err != nil {
			log.WithError(err).WithField("run", run.RunID).Warn("skipping journal record")
			continue
		}
		loaded++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replay: %w", err)
	}
	return loaded, nil
}
