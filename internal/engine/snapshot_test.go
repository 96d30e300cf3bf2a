package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novamem/internal/record"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), snapshotFile)

	edge := record.NewTable(record.Schema{Cols: []record.Column{
		{Name: "c0", Type: record.Char(0)},
		{Name: "b1", Type: record.Bit(1)},
		{Name: "r", Type: record.Real},
		{Name: "ok", Type: record.Boolean},
	}})
	edge, _ = edge.Insert(record.Row{
		"c0": record.CharValue(""),
		"b1": record.MustBitValue("1"),
		"r":  record.RealValue(-0.125),
		"ok": record.BoolValue(false),
	})
	// a row with an absent field
	edge, _ = edge.Insert(record.Row{"b1": record.MustBitValue("0")})

	users := record.NewTable(record.Schema{Cols: usersCols()})
	users, _ = users.Insert(record.Row{"id": record.IntValue(1), "name": record.CharValue("alice")})
	users = users.Remove(1)

	in := map[string]*record.Table{"edge": edge, "users": users}
	n, err := writeSnapshot(path, newSnapshot(7, in))
	require.NoError(t, err)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), n)

	s, err := readSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), s.Version)

	out, err := s.tables()
	require.NoError(t, err)
	require.Len(t, out, 2)
	for name, want := range in {
		assert.True(t, want.Equal(out[name]), "table %s:\n%s", name, out[name])
	}
	// the next row id survives even when the rows are gone
	assert.Equal(t, record.RowID(2), out["users"].NextID())
}

func TestReadSnapshotMissing(t *testing.T) {
	s, err := readSnapshot(filepath.Join(t.TempDir(), snapshotFile))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestReadSnapshotRejectsDamage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, snapshotFile)

	for name, content := range map[string]string{
		"no header":    `{"version":1}`,
		"bad magic":    "SOMETHING 1 1 0000000000000000 2\n{}",
		"bad length":   "NOVAMEM-SNAPSHOT 1 1 0000000000000000 99\n{}",
		"bad checksum": "NOVAMEM-SNAPSHOT 1 1 0000000000000000 2\n{}",
	} {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		_, err := readSnapshot(path)
		assert.ErrorIs(t, err, ErrCorruptSnapshot, name)
	}
}

func TestSnapshotRejectsBrokenTable(t *testing.T) {
	s := &snapshot{Version: 1, Tables: []snapshotTable{{
		Name: "t",
		Data: record.TableData{
			Columns: []record.Column{{Name: "k", Type: record.Integer, PrimaryKey: true}},
			NextID:  3,
			Rows: []record.RowData{
				{ID: 1, Fields: record.Row{"k": record.IntValue(1)}},
				{ID: 2, Fields: record.Row{"k": record.IntValue(1)}},
			},
		},
	}}}
	_, err := s.tables()
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}
