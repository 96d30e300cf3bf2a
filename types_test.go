package novamem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacade(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	_, err = ExecSQL(ctx, db, "CREATE TABLE kv (k char(8) PRIMARY KEY, v integer); INSERT INTO kv VALUES (a, 1);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = ExecSQL(ctx, db, "SHOW TABLES;")
	require.ErrorIs(t, err, ErrDatabaseClosed)

	db, err = Open(Options{DataDir: dir})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	res, err := ExecSQL(ctx, db, "SELECT v FROM kv WHERE k == a;")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1)}}, res.Rows)
}
