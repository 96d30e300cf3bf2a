package wal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novamem/internal/record"
)

func openTemp(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, dir
}

func sampleOps() []Op {
	return []Op{
		TableCreated("users", record.Schema{Cols: []record.Column{
			{Name: "id", Type: record.Integer, PrimaryKey: true},
			{Name: "name", Type: record.Char(10)},
		}}),
		Modify("users", 1, "id", record.Element{}, false, record.IntValue(1), true),
		Modify("users", 1, "name", record.Element{}, false, record.CharValue("ann"), true),
	}
}

func TestAppendReadAll(t *testing.T) {
	m, _ := openTemp(t)

	require.NoError(t, m.Append(1, sampleOps()))
	require.NoError(t, m.Append(2, []Op{RowDeleted("users", 1, record.Row{"id": record.IntValue(1)})}))

	ops, err := m.ReadAll()
	require.NoError(t, err)
	require.Len(t, ops, 5+3)

	assert.Equal(t, OpTxBegin, ops[0].Type)
	assert.Equal(t, OpTableCreated, ops[1].Type)
	assert.Equal(t, "users", ops[1].Table)
	require.Len(t, ops[1].Schema, 2)
	assert.Equal(t, record.Char(10), ops[1].Schema[1].Type)
	assert.True(t, ops[1].Schema[0].PrimaryKey)

	assert.Nil(t, ops[2].Old)
	require.NotNil(t, ops[2].New)
	assert.True(t, ops[2].New.Equal(record.IntValue(1)))
	assert.Equal(t, OpTxCommit, ops[4].Type)

	for _, op := range ops[:5] {
		assert.Equal(t, uint64(1), op.Tx)
	}
	assert.Equal(t, OpRowDeleted, ops[6].Type)
	assert.Equal(t, uint64(2), ops[6].Tx)
	assert.True(t, ops[6].OldRow["id"].Equal(record.IntValue(1)))
	assert.Equal(t, uint64(2), m.Appended())
}

func TestAppendEmptyOnlyAdvances(t *testing.T) {
	m, _ := openTemp(t)

	require.NoError(t, m.Append(1, nil))
	assert.Equal(t, uint64(1), m.Appended())

	ops, err := m.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestAppendFollowsCommitOrder(t *testing.T) {
	m, _ := openTemp(t)

	var wg sync.WaitGroup
	for tx := uint64(10); tx >= 1; tx-- {
		wg.Add(1)
		go func(tx uint64) {
			defer wg.Done()
			assert.NoError(t, m.Append(tx, []Op{ColumnAdded("t", record.Column{Name: "c", Type: record.Integer}, int(tx))}))
		}(tx)
	}
	wg.Wait()

	ops, err := m.ReadAll()
	require.NoError(t, err)
	var order []uint64
	for _, op := range ops {
		if op.Type == OpColumnAdded {
			order = append(order, op.Tx)
		}
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, order)
}

func TestWaitAppended(t *testing.T) {
	m, _ := openTemp(t)

	done := make(chan error, 1)
	go func() { done <- m.WaitAppended(context.Background(), 2) }()

	require.NoError(t, m.Append(1, nil))
	select {
	case <-done:
		t.Fatal("returned before tx 2 was appended")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, m.Append(2, sampleOps()))
	require.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WaitAppended(ctx, 5), context.DeadlineExceeded)
}

func TestResetMovesWatermark(t *testing.T) {
	m, _ := openTemp(t)
	m.Reset(41)
	require.NoError(t, m.Append(42, sampleOps()))
	assert.Equal(t, uint64(42), m.Appended())
}

func TestTornTailIsIgnored(t *testing.T) {
	m, dir := openTemp(t)
	require.NoError(t, m.Append(1, sampleOps()))
	require.NoError(t, m.Append(2, sampleOps()))
	require.NoError(t, m.Close())

	path := filepath.Join(dir, FileName)
	st, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, st.Size()-7))

	m2, err := Open(dir, Options{})
	require.NoError(t, err)
	defer func() { _ = m2.Close() }()

	ops, err := m2.ReadAll()
	require.NoError(t, err)
	// tx 2 lost its commit marker
	require.Len(t, ops, 5+4)
	assert.Equal(t, OpTxCommit, ops[4].Type)
	assert.NotEqual(t, OpTxCommit, ops[len(ops)-1].Type)
}

func TestCorruptTailIsIgnored(t *testing.T) {
	cases := map[string]func(b []byte) []byte{
		"zeroed bytes appended": func(b []byte) []byte {
			return append(b, make([]byte, 64)...)
		},
		"last record damaged": func(b []byte) []byte {
			for i := len(b) - 10; i < len(b); i++ {
				b[i] = 0
			}
			return b
		},
	}
	for name, damage := range cases {
		t.Run(name, func(t *testing.T) {
			m, dir := openTemp(t)
			require.NoError(t, m.Append(1, sampleOps()))
			require.NoError(t, m.Append(2, sampleOps()))
			require.NoError(t, m.Close())

			path := filepath.Join(dir, FileName)
			b, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, damage(b), 0o644))

			m2, err := Open(dir, Options{})
			require.NoError(t, err)
			defer func() { _ = m2.Close() }()

			ops, err := m2.ReadAll()
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(ops), 5)
			assert.Equal(t, OpTxCommit, ops[4].Type)

			// trimming cuts the damage off
			m2.Reset(2)
			_, err = m2.Trim(0)
			require.NoError(t, err)
			require.NoError(t, m2.Append(3, sampleOps()))
			ops, err = m2.ReadAll()
			require.NoError(t, err)
			assert.Equal(t, OpTxCommit, ops[len(ops)-1].Type)
			assert.Equal(t, uint64(3), ops[len(ops)-1].Tx)
		})
	}
}

func TestCorruptRecordIsReported(t *testing.T) {
	m, dir := openTemp(t)
	require.NoError(t, m.Append(1, sampleOps()))
	require.NoError(t, m.Append(2, sampleOps()))
	require.NoError(t, m.Close())

	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[headerLen+10] ^= 0xFF
	require.NoError(t, os.WriteFile(path, b, 0o644))

	m2, err := Open(dir, Options{})
	require.NoError(t, err)
	defer func() { _ = m2.Close() }()
	_, err = m2.ReadAll()
	assert.ErrorIs(t, err, ErrBadCRC)
	_, err = m2.Trim(0)
	assert.ErrorIs(t, err, ErrBadCRC)
}

func TestTrim(t *testing.T) {
	m, dir := openTemp(t)
	for tx := uint64(1); tx <= 3; tx++ {
		require.NoError(t, m.Append(tx, sampleOps()))
	}

	removed, err := m.Trim(2)
	require.NoError(t, err)
	assert.Equal(t, 10, removed)

	ops, err := m.ReadAll()
	require.NoError(t, err)
	require.Len(t, ops, 5)
	for _, op := range ops {
		assert.Equal(t, uint64(3), op.Tx)
	}

	// the log stays appendable and survives a reopen
	require.NoError(t, m.Append(4, sampleOps()))
	require.NoError(t, m.Close())

	m2, err := Open(dir, Options{})
	require.NoError(t, err)
	defer func() { _ = m2.Close() }()
	ops, err = m2.ReadAll()
	require.NoError(t, err)
	assert.Len(t, ops, 10)
	assert.Equal(t, uint64(4), ops[9].Tx)

	_, err = os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestTrimEverything(t *testing.T) {
	m, _ := openTemp(t)
	require.NoError(t, m.Append(1, sampleOps()))

	removed, err := m.Trim(1)
	require.NoError(t, err)
	assert.Equal(t, 5, removed)

	size, err := m.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestAppendAfterCloseFails(t *testing.T) {
	m, _ := openTemp(t)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Append(1, sampleOps()), ErrNoWALFile)
	// watermark still moves
	assert.Equal(t, uint64(1), m.Appended())
}

var errDiskFull = errors.New("disk full")

// flakyFile accepts at most limit bytes per write when limit >= 0 and counts
// syncs.
type flakyFile struct {
	*os.File
	limit int
	syncs int
}

func (f *flakyFile) Write(p []byte) (int, error) {
	if f.limit >= 0 && len(p) > f.limit {
		n, _ := f.File.Write(p[:f.limit])
		return n, errDiskFull
	}
	return f.File.Write(p)
}

func (f *flakyFile) Sync() error {
	f.syncs++
	return f.File.Sync()
}

func wrapFile(m *Manager, limit int) *flakyFile {
	ff := &flakyFile{File: m.f.(*os.File), limit: limit}
	m.f = ff
	return ff
}

func TestAppendSyncsByDefault(t *testing.T) {
	m, _ := openTemp(t)
	assert.True(t, m.SyncOnAppend())
	ff := wrapFile(m, -1)
	require.NoError(t, m.Append(1, sampleOps()))
	assert.Equal(t, 1, ff.syncs)

	m2, err := Open(t.TempDir(), Options{NoSync: true})
	require.NoError(t, err)
	defer func() { _ = m2.Close() }()
	assert.False(t, m2.SyncOnAppend())
	ff2 := wrapFile(m2, -1)
	require.NoError(t, m2.Append(1, sampleOps()))
	assert.Zero(t, ff2.syncs)
}

func TestFailedAppendIsCutBack(t *testing.T) {
	m, dir := openTemp(t)
	require.NoError(t, m.Append(1, sampleOps()))
	size, err := m.Size()
	require.NoError(t, err)

	ff := wrapFile(m, 10)
	err = m.Append(2, sampleOps())
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, uint64(2), m.Appended())
	require.Error(t, m.Err())

	after, err := m.Size()
	require.NoError(t, err)
	assert.Equal(t, size, after)

	// the log stays failed even once writes would succeed
	ff.limit = -1
	assert.ErrorIs(t, m.Append(3, sampleOps()), ErrLogFailed)
	assert.Equal(t, uint64(3), m.Appended())
	_, err = m.Trim(1)
	assert.ErrorIs(t, err, ErrLogFailed)
	require.NoError(t, m.Close())

	m2, err := Open(dir, Options{})
	require.NoError(t, err)
	defer func() { _ = m2.Close() }()
	require.NoError(t, m2.Err())
	ops, err := m2.ReadAll()
	require.NoError(t, err)
	require.Len(t, ops, 5)
	for _, op := range ops {
		assert.Equal(t, uint64(1), op.Tx)
	}
}
