package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/notesync/internal/diff"
	"github.com/mesh-intelligence/notesync/internal/notes"
	"github.com/mesh-intelligence/notesync/internal/summary"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

const (
	root        = "/ws"
	summaryPath = "/ws/notes_summary.csv"
)

type memLedger struct {
	runs []*types.Run
	err  error
}

func (l *memLedger) RecordRun(run *types.Run) error {
	if l.err != nil {
		return l.err
	}
	run.RunID = fmt.Sprintf("run-%d", len(l.runs)+1)
	l.runs = append(l.runs, run)
	return nil
}

type fixture struct {
	fs     afero.Fs
	engine *Engine
	ledger *memLedger
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(root, 0o755))
	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
	ledger := &memLedger{}
	ws := notes.NewWorkspace(fs, root, types.DefaultRecordFile, nil)
	return &fixture{
		fs:     fs,
		engine: NewEngine(ws, summary.NewStore(fs, summaryPath), ledger, nil),
		ledger: ledger,
	}
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(data)
}

func write() Options {
	return Options{Write: true, Tolerance: diff.DefaultTolerance()}
}

func TestCollectCreatesSummary(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\nscore: 0.0\n",
		"/ws/run1/notes.yaml": "id: run1\nscore: 1.0\n",
	})

	res, err := f.engine.Collect(write())
	require.NoError(t, err)

	assert.False(t, res.Found)
	assert.Equal(t, []string{"run0", "run1"}, res.Added)
	assert.Empty(t, res.Kept)
	assert.True(t, res.Written)
	assert.Empty(t, res.Backup)
	assert.Equal(t, "id,score\nrun0,0.0\nrun1,1.0\n", f.read(t, summaryPath))

	require.Len(t, f.ledger.runs, 1)
	assert.Equal(t, "run-1", res.RunID)
	run := f.ledger.runs[0]
	assert.Equal(t, types.DirectionCollect, run.Direction)
	assert.Equal(t, root, run.Root)
	assert.Equal(t, summaryPath, run.Target)
	assert.Equal(t, []types.Change{
		{RecordID: "run0", Column: "id", Old: types.AbsentKey, New: "run0"},
		{RecordID: "run1", Column: "id", Old: types.AbsentKey, New: "run1"},
	}, run.Changes)
}

func TestCollectIsIdempotent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":     "id: run0\nscore: 0.0\ntags: [a, b]\n",
		"/ws/run1/notes.yaml":     "id: run1\nnote:\n",
		"/ws/template/notes.yaml": "id: template\n",
	})

	_, err := f.engine.Collect(write())
	require.NoError(t, err)
	first := f.read(t, summaryPath)

	res, err := f.engine.Collect(write())
	require.NoError(t, err)
	assert.False(t, res.HasChanges())
	assert.False(t, res.Written)
	assert.Equal(t, first, f.read(t, summaryPath))
	assert.Len(t, f.ledger.runs, 1)
}

func TestCollectDryRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\nscore: 0.0\n",
	})

	res, err := f.engine.Collect(Options{})
	require.NoError(t, err)
	assert.True(t, res.HasChanges())
	assert.False(t, res.Written)

	exists, err := afero.Exists(f.fs, summaryPath)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, f.ledger.runs)
}

func TestCollectKeepsSummaryOnlyRowsAndReportsChanges(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":   "id: run0\nscore: 0.5\n",
		"/ws/notes_summary.csv": "id,score,owner\nrun0,0.0,\nrun7,7.0,alice\n",
	})

	res, err := f.engine.Collect(write())
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Empty(t, res.Added)
	assert.Equal(t, []string{"run7"}, res.Kept)
	assert.Equal(t, map[string]map[string]string{"run0": {"score": "0.0"}}, res.Diff.ChangedA)
	assert.Equal(t, map[string]map[string]string{"run0": {"score": "0.5"}}, res.Diff.ChangedB)
	assert.Equal(t, summaryPath+".bk", res.Backup)

	assert.Equal(t, "id,score,owner\nrun0,0.5,\nrun7,7.0,alice\n", f.read(t, summaryPath))
	assert.Equal(t, "id,score,owner\nrun0,0.0,\nrun7,7.0,alice\n", f.read(t, summaryPath+".bk"))

	require.Len(t, f.ledger.runs, 1)
	assert.Equal(t, []types.Change{
		{RecordID: "run0", Column: "score", Old: "0.0", New: "0.5"},
	}, f.ledger.runs[0].Changes)
}

func TestCollectIgnoreFloatError(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":   "id: run0\nscore: 1.0000000000000001\n",
		"/ws/notes_summary.csv": "id,score\nrun0,1.0\n",
	})

	opts := write()
	opts.IgnoreFloatError = true
	res, err := f.engine.Collect(opts)
	require.NoError(t, err)
	assert.False(t, res.HasChanges())
	assert.Equal(t, "id,score\nrun0,1.0\n", f.read(t, summaryPath))

	res, err = f.engine.Collect(write())
	require.NoError(t, err)
	assert.True(t, res.HasChanges())
}

func TestCollectAbortsOnBadRecord(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":   "id: run0\n",
		"/ws/run1/notes.yaml":   "- not\n- a mapping\n",
		"/ws/notes_summary.csv": "id\nrun0\n",
	})

	_, err := f.engine.Collect(write())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMalformedRecord)
	assert.Equal(t, "id\nrun0\n", f.read(t, summaryPath))
}

func TestCollectLedgerFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\n",
	})
	f.ledger.err = errors.New("disk full")

	res, err := f.engine.Collect(write())
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Empty(t, res.RunID)
}

func TestCollectWithoutLedger(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/run0/notes.yaml", []byte("id: run0\n"), 0o644))
	e := NewEngine(notes.NewWorkspace(fs, root, types.DefaultRecordFile, nil), summary.NewStore(fs, summaryPath), nil, nil)

	res, err := e.Collect(write())
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Empty(t, res.RunID)
}

func TestUpdateRequiresSummary(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\n",
	})

	_, err := f.engine.Update(write())
	assert.ErrorIs(t, err, types.ErrSummaryNotFound)
}

func TestUpdateWritesRecords(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\n# metric\nscore: 0.0\nextra: gone\n",
		"/ws/run1/notes.yaml": "id: run1\nscore: 1.0\n",
		"/ws/run2/notes.yaml": "id: run2\n",
		"/ws/notes_summary.csv": "id,lr,score,extra\n" +
			"run0,0.1,0.25,\n" +
			"run1,,1.0,\n" +
			"run9,1,1,\n",
	})

	res, err := f.engine.Update(write())
	require.NoError(t, err)

	assert.Equal(t, []string{"run9"}, res.OnlyInSummary)
	assert.Equal(t, []string{"run2"}, res.OnlyInFolders)
	assert.Equal(t, []string{"run0"}, res.Diff.ChangedIDs())
	require.Len(t, res.Written, 1)
	assert.Equal(t, "/ws/run0/notes.yaml", res.Written[0].Path)

	assert.Equal(t, "id: run0\nlr: 0.1\n# metric\nscore: 0.25\n", f.read(t, "/ws/run0/notes.yaml"))
	assert.Equal(t, "id: run0\n# metric\nscore: 0.0\nextra: gone\n", f.read(t, "/ws/run0/notes.yaml.bk"))
	assert.Equal(t, "id: run1\nscore: 1.0\n", f.read(t, "/ws/run1/notes.yaml"))

	exists, err := afero.Exists(f.fs, "/ws/run9")
	require.NoError(t, err)
	assert.False(t, exists, "update never creates record directories")

	require.Len(t, f.ledger.runs, 1)
	run := f.ledger.runs[0]
	assert.Equal(t, types.DirectionUpdate, run.Direction)
	assert.Equal(t, []types.Change{
		{RecordID: "run0", Column: "lr", Old: types.AbsentKey, New: "0.1"},
		{RecordID: "run0", Column: "score", Old: "0.0", New: "0.25"},
		{RecordID: "run0", Column: "extra", Old: "gone", New: types.AbsentKey},
	}, run.Changes)

	again, err := f.engine.Update(write())
	require.NoError(t, err)
	assert.False(t, again.HasChanges())
}

func TestUpdateExplicitNull(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":   "id: run0\nnote: keep me\n",
		"/ws/notes_summary.csv": "id,note\nrun0,yaml_empty\n",
	})

	_, err := f.engine.Update(write())
	require.NoError(t, err)
	assert.Equal(t, "id: run0\nnote: null\n", f.read(t, "/ws/run0/notes.yaml"))
}

func TestUpdateDryRun(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":   "id: run0\nscore: 0.0\n",
		"/ws/notes_summary.csv": "id,score\nrun0,9\n",
	})

	res, err := f.engine.Update(Options{})
	require.NoError(t, err)
	assert.True(t, res.HasChanges())
	assert.Empty(t, res.Written)
	assert.Equal(t, "id: run0\nscore: 0.0\n", f.read(t, "/ws/run0/notes.yaml"))
}

func TestCollectThenUpdateRoundTrip(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\nscore: 0.0\ntags: [a, 1]\nnote:\n",
		"/ws/run1/notes.yaml": "id: run1\nlr: 1e-3\n",
	})

	_, err := f.engine.Collect(write())
	require.NoError(t, err)

	res, err := f.engine.Update(write())
	require.NoError(t, err)
	assert.False(t, res.HasChanges(), "a freshly collected summary matches the records")
}

func TestModify(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":     "id: run0\nepochs: 10\n",
		"/ws/run1/notes.yaml":     "id: run1\nepochs: 20\n",
		"/ws/template/notes.yaml": "id: template\nepochs: 0\n",
	})

	double := func(tbl *types.Table) (*types.Table, error) {
		assert.False(t, tbl.Has("template"))
		for _, id := range tbl.IDs() {
			if tbl.Get(id, "epochs") == "10" {
				tbl.Set(id, "epochs", "20")
			}
			tbl.Set(id, "status", "done")
		}
		return tbl, nil
	}

	res, err := f.engine.Modify(double, false, write())
	require.NoError(t, err)
	assert.Equal(t, []string{"run0", "run1"}, res.Diff.ChangedIDs())
	require.Len(t, res.Written, 2)

	assert.Equal(t, "id: run0\nepochs: 20\nstatus: done\n", f.read(t, "/ws/run0/notes.yaml"))
	assert.Equal(t, "id: run1\nepochs: 20\nstatus: done\n", f.read(t, "/ws/run1/notes.yaml"))
	assert.Equal(t, "id: template\nepochs: 0\n", f.read(t, "/ws/template/notes.yaml"))

	require.Len(t, f.ledger.runs, 1)
	assert.Equal(t, types.DirectionModify, f.ledger.runs[0].Direction)
}

func TestModifyIncludeTemplates(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml":     "id: run0\n",
		"/ws/template/notes.yaml": "id: template\n",
	})

	res, err := f.engine.Modify(func(tbl *types.Table) (*types.Table, error) {
		for _, id := range tbl.IDs() {
			tbl.Set(id, "owner", "bob")
		}
		return tbl, nil
	}, true, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run0", "template"}, res.Diff.ChangedIDs())
	assert.Empty(t, res.Written)
}

func TestModifyRejectsIdentityChanges(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\n",
		"/ws/run1/notes.yaml": "id: run1\n",
	})

	_, err := f.engine.Modify(func(tbl *types.Table) (*types.Table, error) {
		if err := tbl.AddRow("run5", nil); err != nil {
			return nil, err
		}
		return tbl, nil
	}, false, write())
	assert.ErrorIs(t, err, types.ErrIdentitySetChanged)

	_, err = f.engine.Modify(func(tbl *types.Table) (*types.Table, error) {
		return tbl.Drop(func(id string) bool { return id == "run1" }), nil
	}, false, write())
	assert.ErrorIs(t, err, types.ErrIdentitySetChanged)

	_, err = f.engine.Modify(func(tbl *types.Table) (*types.Table, error) {
		tbl.Set("run0", types.IDColumn, "run7")
		return tbl, nil
	}, false, write())
	assert.ErrorIs(t, err, types.ErrIdentitySetChanged)
	assert.Equal(t, "id: run0\n", f.read(t, "/ws/run0/notes.yaml"))
	assert.Empty(t, f.ledger.runs)
}

func TestUpdateNullWordStaysString(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\nnote: keep\n",
		summaryPath:           "id,note\nrun0,null\n",
	})

	res, err := f.engine.Update(write())
	require.NoError(t, err)
	require.Len(t, res.Written, 1)

	rec, err := notes.LoadRecord(f.fs, "/ws/run0/notes.yaml")
	require.NoError(t, err)
	assert.Equal(t, "null", rec.Values["note"])

	again, err := f.engine.Update(write())
	require.NoError(t, err)
	assert.False(t, again.HasChanges())
	assert.Empty(t, again.Written)
	assert.Len(t, f.ledger.runs, 1)
}

func TestModifyTransformError(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/ws/run0/notes.yaml": "id: run0\n",
	})
	boom := errors.New("boom")

	_, err := f.engine.Modify(func(*types.Table) (*types.Table, error) {
		return nil, boom
	}, false, write())
	assert.ErrorIs(t, err, boom)
}
