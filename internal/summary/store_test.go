package summary

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/notesync/pkg/types"
)

const summaryPath = "/ws/notes_summary.csv"

func newStore(t *testing.T, content string) (afero.Fs, *Store) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if content != "" {
		require.NoError(t, afero.WriteFile(fs, summaryPath, []byte(content), 0o644))
	}
	return fs, NewStore(fs, summaryPath)
}

func TestReadMissing(t *testing.T) {
	_, s := newStore(t, "")

	ok, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read()
	assert.ErrorIs(t, err, types.ErrSummaryNotFound)

	tbl, found, err := s.ReadOrEmpty()
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, []string{types.IDColumn}, tbl.Columns())
}

func TestRead(t *testing.T) {
	_, s := newStore(t, "id,score,note\nrun0, 0.0 ,\nrun1,1.0,yaml_empty\nrun2,\"[1, 2]\",hi\n")

	tbl, err := s.Read()
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "score", "note"}, tbl.Columns())
	assert.Equal(t, []string{"run0", "run1", "run2"}, tbl.IDs())
	assert.Equal(t, "0.0", tbl.Get("run0", "score"), "cells are trimmed")
	assert.Equal(t, types.AbsentKey, tbl.Get("run0", "note"), "blank cells are absent")
	assert.Equal(t, types.ExplicitNull, tbl.Get("run1", "note"))
	assert.Equal(t, "[1, 2]", tbl.Get("run2", "score"))
	assert.Equal(t, "run2", tbl.Get("run2", "id"))
}

func TestReadShortRowsArePadded(t *testing.T) {
	_, s := newStore(t, "id,a,b\nrun0,1\n")

	tbl, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "1", tbl.Get("run0", "a"))
	assert.Equal(t, types.AbsentKey, tbl.Get("run0", "b"))
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"no id column", "name,score\nrun0,1\n", types.ErrMissingIDColumn},
		{"header only whitespace file", " \n", types.ErrMissingIDColumn},
		{"duplicate id", "id,score\nrun0,1\nrun0,2\n", types.ErrDuplicateID},
		{"blank id", "id,score\n,1\n", types.ErrMissingID},
		{"duplicate column", "id,a,a\nrun0,1,2\n", types.ErrDuplicateColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s := newStore(t, tt.content)
			_, err := s.Read()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadTooManyFields(t *testing.T) {
	_, s := newStore(t, "id,a\nrun0,1,2\n")
	_, err := s.Read()
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	fs, s := newStore(t, "")

	tbl := types.NewTable("id", "score", "note")
	require.NoError(t, tbl.AddRow("run0", map[string]string{"score": "0.0"}))
	require.NoError(t, tbl.AddRow("run1", map[string]string{"score": "1.0", "note": types.ExplicitNull}))

	bk, err := s.Write(tbl)
	require.NoError(t, err)
	assert.Empty(t, bk, "no backup without a previous file")

	data, err := afero.ReadFile(fs, summaryPath)
	require.NoError(t, err)
	assert.Equal(t, "id,score,note\nrun0,0.0,\nrun1,1.0,yaml_empty\n", string(data))
}

func TestWriteBacksUpPreviousFile(t *testing.T) {
	fs, s := newStore(t, "id\nold\n")

	tbl := types.NewTable()
	require.NoError(t, tbl.AddRow("run0", nil))

	bk, err := s.Write(tbl)
	require.NoError(t, err)
	assert.Equal(t, summaryPath+".bk", bk)

	prev, err := afero.ReadFile(fs, bk)
	require.NoError(t, err)
	assert.Equal(t, "id\nold\n", string(prev))

	data, err := afero.ReadFile(fs, summaryPath)
	require.NoError(t, err)
	assert.Equal(t, "id\nrun0\n", string(data))
}

func TestRoundTrip(t *testing.T) {
	_, s := newStore(t, "")

	tbl := types.NewTable("score", "id", "tags", "note")
	require.NoError(t, tbl.AddRow("run0", map[string]string{"score": "0.0", "tags": "[a, \"b,c\"]"}))
	require.NoError(t, tbl.AddRow("template", map[string]string{"note": types.ExplicitNull}))
	require.NoError(t, tbl.AddRow("run1", map[string]string{"score": "1e-3", "tags": "{k: v}", "note": "two words"}))

	_, err := s.Write(tbl)
	require.NoError(t, err)

	got, err := s.Read()
	require.NoError(t, err)
	assert.True(t, tbl.Equal(got))
	assert.Equal(t, tbl.Columns(), got.Columns())
	assert.Equal(t, tbl.IDs(), got.IDs())
}
