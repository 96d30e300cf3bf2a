package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementComplete(t *testing.T) {
	assert.True(t, statementComplete("SELECT * FROM t;"))
	assert.True(t, statementComplete("SHOW TABLES;  "))
	assert.True(t, statementComplete("INSERT INTO t VALUES (1); SELECT * FROM t;"))
	assert.False(t, statementComplete("SELECT * FROM t"))
	assert.False(t, statementComplete("INSERT INTO t VALUES ('a;"))
	assert.False(t, statementComplete("SHOW TABLES; SELECT * FROM t"))
}

func TestCompactOneLine(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a == 1;", compactOneLine("SELECT *\n  FROM t\tWHERE a == 1;\n"))
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "hist")
	h := NewHistory(path)
	require.NoError(t, h.Append("SHOW\nTABLES;"))
	require.NoError(t, h.Append("SELECT * FROM t;"))
	require.NoError(t, h.Append("   "))

	again := NewHistory(path)
	require.NoError(t, again.Load(1))
	assert.Equal(t, []string{"SELECT * FROM t;"}, again.Last(0))

	all := NewHistory(path)
	require.NoError(t, all.Load(0))
	assert.Equal(t, []string{"SHOW TABLES;", "SELECT * FROM t;"}, all.Last(10))
	assert.Equal(t, []string{"SELECT * FROM t;"}, all.Last(1))
}
