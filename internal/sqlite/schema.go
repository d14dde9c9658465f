package sqlite

// Schema DDL for the ledger tables.
const (
	createRuns = `CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    direction TEXT NOT NULL,
    root TEXT NOT NULL,
    target TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createChanges = `CREATE TABLE IF NOT EXISTS changes (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    record_id TEXT NOT NULL,
    column_name TEXT NOT NULL,
    old_value TEXT NOT NULL,
    new_value TEXT NOT NULL,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);`
)

// Index DDL for history queries.
const (
	idxRunsCreated   = `CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`
	idxChangesRecord = `CREATE INDEX IF NOT EXISTS idx_changes_record ON changes(record_id);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createRuns,
	createChanges,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxRunsCreated,
	idxChangesRecord,
}
