// Tests for the SQLite history ledger.
package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

func attach(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend()
	if err := b.Attach(dir); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "data")

	b := NewBackend()
	if err := b.Attach(tmpDir); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	defer b.Detach()

	// Verify database file created
	dbPath := filepath.Join(tmpDir, DatabaseFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("history.db not created")
	}
	if b.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", b.Path(), dbPath)
	}

	// Verify double attach fails
	if err := b.Attach(tmpDir); err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b, _ := attach(t)

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// Verify idempotent
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}

	// Verify operations fail after detach
	if err := b.RecordRun(&types.Run{}); err != types.ErrLedgerDetached {
		t.Errorf("RecordRun: expected ErrLedgerDetached, got %v", err)
	}
	if _, err := b.ListRuns(types.RunFilter{}); err != types.ErrLedgerDetached {
		t.Errorf("ListRuns: expected ErrLedgerDetached, got %v", err)
	}
	if _, err := b.GetRun("x"); err != types.ErrLedgerDetached {
		t.Errorf("GetRun: expected ErrLedgerDetached, got %v", err)
	}
}

func TestBackend_RecordAndGetRun(t *testing.T) {
	b, _ := attach(t)

	run := &types.Run{
		Direction: types.DirectionUpdate,
		Root:      "/ws",
		Target:    "/ws",
		Changes: []types.Change{
			{RecordID: "run0", Column: "score", Old: "0.0", New: "0.5"},
			{RecordID: "run0", Column: "note", Old: "hi", New: types.AbsentKey},
			{RecordID: "run1", Column: "lr", Old: types.AbsentKey, New: types.ExplicitNull},
		},
	}
	if err := b.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.RunID == "" {
		t.Fatal("RecordRun did not assign a run id")
	}
	if run.CreatedAt.IsZero() {
		t.Error("RecordRun did not set CreatedAt")
	}
	if run.ChangeCount != 3 {
		t.Errorf("ChangeCount = %d, want 3", run.ChangeCount)
	}

	got, err := b.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.RunID != run.RunID || got.Direction != run.Direction || got.Root != "/ws" || got.Target != "/ws" {
		t.Errorf("GetRun = %+v, want %+v", got, run)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, run.CreatedAt)
	}
	if got.ChangeCount != 3 || len(got.Changes) != 3 {
		t.Fatalf("got %d changes (count %d), want 3", len(got.Changes), got.ChangeCount)
	}
	for i, c := range run.Changes {
		if got.Changes[i] != c {
			t.Errorf("change %d = %+v, want %+v", i, got.Changes[i], c)
		}
	}
}

func TestBackend_GetRunByPrefix(t *testing.T) {
	b, _ := attach(t)

	for _, id := range []string{"aaa-111", "aaa-222", "bbb-333"} {
		if err := b.RecordRun(&types.Run{RunID: id, Direction: types.DirectionCollect}); err != nil {
			t.Fatalf("RecordRun %s: %v", id, err)
		}
	}

	got, err := b.GetRun("bbb")
	if err != nil {
		t.Fatalf("GetRun(bbb) failed: %v", err)
	}
	if got.RunID != "bbb-333" {
		t.Errorf("GetRun(bbb) = %s, want bbb-333", got.RunID)
	}

	if _, err := b.GetRun("aaa"); !errors.Is(err, types.ErrRunNotFound) {
		t.Errorf("ambiguous prefix: expected ErrRunNotFound, got %v", err)
	}
	if _, err := b.GetRun("zzz"); !errors.Is(err, types.ErrRunNotFound) {
		t.Errorf("unknown id: expected ErrRunNotFound, got %v", err)
	}
	if _, err := b.GetRun("aaa_"); !errors.Is(err, types.ErrRunNotFound) {
		t.Errorf("underscore is literal: expected ErrRunNotFound, got %v", err)
	}
	if _, err := b.GetRun(""); !errors.Is(err, types.ErrRunNotFound) {
		t.Errorf("empty id: expected ErrRunNotFound, got %v", err)
	}
}

func TestBackend_ListRuns(t *testing.T) {
	b, _ := attach(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*types.Run{
		{Direction: types.DirectionCollect, CreatedAt: base, Changes: []types.Change{
			{RecordID: "run0", Column: "id", Old: types.AbsentKey, New: "run0"},
		}},
		{Direction: types.DirectionUpdate, CreatedAt: base.Add(time.Minute), Changes: []types.Change{
			{RecordID: "run1", Column: "score", Old: "1", New: "2"},
			{RecordID: "run2", Column: "score", Old: "1", New: "2"},
		}},
		{Direction: types.DirectionUpdate, CreatedAt: base.Add(2 * time.Minute), Changes: []types.Change{
			{RecordID: "run0", Column: "score", Old: "1", New: "2"},
		}},
	}
	for _, r := range runs {
		if err := b.RecordRun(r); err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter types.RunFilter
		want   []*types.Run
	}{
		{"all newest first", types.RunFilter{}, []*types.Run{runs[2], runs[1], runs[0]}},
		{"limit", types.RunFilter{Limit: 2}, []*types.Run{runs[2], runs[1]}},
		{"by record", types.RunFilter{RecordID: "run0"}, []*types.Run{runs[2], runs[0]}},
		{"by direction", types.RunFilter{Direction: types.DirectionUpdate}, []*types.Run{runs[2], runs[1]}},
		{"no match", types.RunFilter{RecordID: "run9"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ListRuns(tt.filter)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].RunID != tt.want[i].RunID {
					t.Errorf("run %d = %s, want %s", i, got[i].RunID, tt.want[i].RunID)
				}
				if got[i].ChangeCount != len(tt.want[i].Changes) {
					t.Errorf("run %d ChangeCount = %d, want %d", i, got[i].ChangeCount, len(tt.want[i].Changes))
				}
				if got[i].Changes != nil {
					t.Errorf("run %d: ListRuns should not load changes", i)
				}
			}
		})
	}
}

func TestBackend_HistorySurvivesReattach(t *testing.T) {
	dir := t.TempDir()

	b := NewBackend()
	if err := b.Attach(dir); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	run := &types.Run{Direction: types.DirectionCollect, Changes: []types.Change{{RecordID: "run0", Column: "id", Old: types.AbsentKey, New: "run0"}}}
	if err := b.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	b2 := NewBackend()
	if err := b2.Attach(dir); err != nil {
		t.Fatalf("second Attach failed: %v", err)
	}
	defer b2.Detach()

	got, err := b2.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun after reattach failed: %v", err)
	}
	if len(got.Changes) != 1 {
		t.Errorf("got %d changes, want 1", len(got.Changes))
	}
}

func TestBackend_DuplicateRunIDRollsBack(t *testing.T) {
	b, _ := attach(t)

	first := &types.Run{RunID: "dup", Direction: types.DirectionCollect, Changes: []types.Change{{RecordID: "run0", Column: "a", Old: "1", New: "2"}}}
	if err := b.RecordRun(first); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	second := &types.Run{RunID: "dup", Direction: types.DirectionUpdate, Changes: []types.Change{{RecordID: "run9", Column: "b", Old: "1", New: "2"}}}
	if err := b.RecordRun(second); err == nil {
		t.Fatal("expected error for duplicate run id")
	}

	runs, err := b.ListRuns(types.RunFilter{RecordID: "run9"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("failed run left %d runs behind", len(runs))
	}
}

func TestBackend_RebuildsFromJournal(t *testing.T) {
	dir := t.TempDir()

	b := NewBackend()
	if err := b.Attach(dir); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	run := &types.Run{Direction: types.DirectionUpdate, Root: "/ws", Target: "/ws", Changes: []types.Change{
		{RecordID: "run0", Column: "score", Old: "0.0", New: "0.5"},
		{RecordID: "run1", Column: "note", Old: "x", New: types.ExplicitNull},
	}}
	if err := b.RecordRun(run); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	if err := os.Remove(filepath.Join(dir, DatabaseFile)); err != nil {
		t.Fatalf("removing database: %v", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, JournalFile), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	if _, err := f.WriteString("{not json\n\n"); err != nil {
		t.Fatalf("corrupting journal: %v", err)
	}
	f.Close()

	b2 := NewBackend()
	if err := b2.Attach(dir); err != nil {
		t.Fatalf("Attach after removing database failed: %v", err)
	}
	defer b2.Detach()

	got, err := b2.GetRun(run.RunID)
	if err != nil {
		t.Fatalf("GetRun after rebuild failed: %v", err)
	}
	if got.Direction != types.DirectionUpdate || !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("rebuilt run = %+v, want %+v", got, run)
	}
	if len(got.Changes) != 2 || got.Changes[1] != run.Changes[1] {
		t.Errorf("rebuilt changes = %+v, want %+v", got.Changes, run.Changes)
	}
}

func TestBackend_FailedRunNotJournaled(t *testing.T) {
	b, dir := attach(t)

	if err := b.RecordRun(&types.Run{RunID: "dup", Direction: types.DirectionCollect}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := b.RecordRun(&types.Run{RunID: "dup", Direction: types.DirectionUpdate}); err == nil {
		t.Fatal("expected error for duplicate run id")
	}

	records, err := readJSONL(filepath.Join(dir, JournalFile))
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("journal holds %d records, want 1", len(records))
	}
}

func TestReadJSONL_Missing(t *testing.T) {
	records, err := readJSONL(filepath.Join(t.TempDir(), "none.jsonl"))
	if err != nil {
		t.Fatalf("readJSONL failed: %v", err)
	}
	if records != nil {
		t.Errorf("got %d records from a missing file", len(records))
	}
}

func TestBackend_CatchesUpWithJournal(t *testing.T) {
	dir := t.TempDir()

	b := NewBackend()
	if err := b.Attach(dir); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	committed := &types.Run{Direction: types.DirectionCollect, Changes: []types.Change{{RecordID: "run0", Column: "id", Old: types.AbsentKey, New: "run0"}}}
	if err := b.RecordRun(committed); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	// A run present in the journal but never committed to the database.
	orphan := &types.Run{
		RunID:     "journal-only",
		Direction: types.DirectionUpdate,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Changes:   []types.Change{{RecordID: "run0", Column: "score", Old: "1", New: "2"}},
	}
	if err := appendJSONL(filepath.Join(dir, JournalFile), orphan); err != nil {
		t.Fatalf("appendJSONL failed: %v", err)
	}

	b2 := NewBackend()
	if err := b2.Attach(dir); err != nil {
		t.Fatalf("second Attach failed: %v", err)
	}
	defer b2.Detach()

	got, err := b2.GetRun("journal-only")
	if err != nil {
		t.Fatalf("GetRun(journal-only) failed: %v", err)
	}
	if len(got.Changes) != 1 || got.Changes[0] != orphan.Changes[0] {
		t.Errorf("changes = %+v, want %+v", got.Changes, orphan.Changes)
	}

	runs, err := b2.ListRuns(types.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2 (no duplicates of committed runs)", len(runs))
	}
}
