package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

// timeFormat is fixed width so created_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun stores run and its changes in one transaction and appends the
// committed run to the journal. An empty RunID
// is replaced by a UUID v7 and a zero CreatedAt by the current time; both
// are written back to run.
func (b *Backend) RecordRun(run *types.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrLedgerDetached
	}

	if run.RunID == "" {
		run.RunID = generateUUID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	run.ChangeCount = len(run.Changes)

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.RunID, err)
	}
	if err := appendJSONL(b.journal, run); err != nil {
		return fmt.Errorf("journaling run %s: %w", run.RunID, err)
	}
	return nil
}

// insertRun inserts run and its changes within tx.
func insertRun(tx *sql.Tx, run *types.Run) error {
	if _, err := tx.Exec(
		"INSERT INTO runs (run_id, direction, root, target, created_at) VALUES (?, ?, ?, ?, ?)",
		run.RunID, run.Direction, run.Root, run.Target, run.CreatedAt.UTC().Format(timeFormat),
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO changes (run_id, seq, record_id, column_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing change insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Changes {
		if _, err := stmt.Exec(run.RunID, i, c.RecordID, c.Column, c.Old, c.New); err != nil {
			return fmt.Errorf("inserting change %d of run %s: %w", i, run.RunID, err)
		}
	}
	return nil
}

// ListRuns returns runs newest first, without their changes.
func (b *Backend) ListRuns(filter types.RunFilter) ([]*types.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrLedgerDetached
	}

	query := `SELECT r.run_id, r.direction, r.root, r.target, r.created_at,
    (SELECT COUNT(*) FROM changes c WHERE c.run_id = r.run_id)
FROM runs r`
	var where []string
	var args []any
	if filter.RecordID != "" {
		where = append(where, "EXISTS (SELECT 1 FROM changes c WHERE c.run_id = r.run_id AND c.record_id = ?)")
		args = append(args, filter.RecordID)
	}
	if filter.Direction != "" {
		where = append(where, "r.direction = ?")
		args = append(args, filter.Direction)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.run_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.Run
	for rows.Next() {
		run, err := hydrateRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id and its changes in the order
// they were recorded. A unique id prefix is accepted.
// Returns ErrRunNotFound if no run matches.
func (b *Backend) GetRun(runID string) (*types.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrLedgerDetached
	}
	if runID == "" {
		return nil, types.ErrRunNotFound
	}

	rows, err := b.db.Query(
		`SELECT r.run_id, r.direction, r.root, r.target, r.created_at,
    (SELECT COUNT(*) FROM changes c WHERE c.run_id = r.run_id)
FROM runs r WHERE r.run_id LIKE ? ESCAPE '\'
ORDER BY r.run_id = ? DESC LIMIT 2`,
		escapeLike(runID)+"%", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	var matches []*types.Run
	for rows.Next() {
		run, err := hydrateRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}

	var run *types.Run
	for _, m := range matches {
		if m.RunID == runID {
			run = m
		}
	}
	if run == nil {
		if len(matches) != 1 {
			return nil, fmt.Errorf("%s: %w", runID, types.ErrRunNotFound)
		}
		run = matches[0]
	}

	changes, err := b.db.Query(
		"SELECT record_id, column_name, old_value, new_value FROM changes WHERE run_id = ? ORDER BY seq",
		run.RunID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying changes of run %s: %w", run.RunID, err)
	}
	defer changes.Close()

	for changes.Next() {
		var c types.Change
		if err := changes.Scan(&c.RecordID, &c.Column, &c.Old, &c.New); err != nil {
			return nil, fmt.Errorf("scanning change: %w", err)
		}
		run.Changes = append(run.Changes, c)
	}
	if err := changes.Err(); err != nil {
		return nil, fmt.Errorf("iterating changes of run %s: %w", run.RunID, err)
	}
	return run, nil
}

// hydrateRun scans a run row selected with its change count.
func hydrateRun(rows *sql.Rows) (*types.Run, error) {
	var run types.Run
	var createdAt string
	if err := rows.Scan(&run.RunID, &run.Direction, &run.Root, &run.Target, &createdAt, &run.ChangeCount); err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of run %s: %w", run.RunID, err)
	}
	run.CreatedAt = t
	return &run, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
