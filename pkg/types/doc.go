// Package types defines the record and table model shared by the notesync
// packages: the sparse string Table, per-directory Records, the reserved
// marker tokens, configuration, history ledger entries and the standard
// error values.
package types
