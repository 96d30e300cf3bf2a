package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/parser"
)

func newTestExecutor(t *testing.T) (*Executor, *engine.Database) {
	t.Helper()
	db, err := engine.Open(engine.Options{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewExecutor(db, nil), db
}

func mustExec(t *testing.T, e *Executor, sql string) *Result {
	t.Helper()
	res, err := e.ExecSQL(context.Background(), sql)
	require.NoError(t, err, sql)
	return res
}

func TestExecSQL_UsersScenario(t *testing.T) {
	e, _ := newTestExecutor(t)

	mustExec(t, e, "CREATE TABLE users (id integer PRIMARY KEY, name char(10), active boolean);")
	res := mustExec(t, e, "INSERT INTO users VALUES (1, 'alice', true);")
	assert.Equal(t, int64(1), res.AffectedRows)
	mustExec(t, e, "INSERT INTO users VALUES (2, bob, false);")

	res = mustExec(t, e, "SELECT * FROM users;")
	assert.Equal(t, []string{"id", "name", "active"}, res.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "alice", true},
		{int64(2), "bob", false},
	}, res.Rows)

	res = mustExec(t, e, "SELECT name FROM users WHERE active == true;")
	assert.Equal(t, []string{"name"}, res.Columns)
	assert.Equal(t, [][]any{{"alice"}}, res.Rows)
}

func TestExecSQL_UpdateDelete(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, `
		CREATE TABLE t (id integer PRIMARY KEY, n integer);
		INSERT INTO t VALUES (1, 10);
		INSERT INTO t VALUES (2, 20);
		INSERT INTO t VALUES (3, 30);
	`)

	res := mustExec(t, e, "UPDATE t SET n = 0 WHERE n >= 20;")
	assert.Equal(t, int64(2), res.AffectedRows)

	res = mustExec(t, e, "DELETE FROM t WHERE n == 0;")
	assert.Equal(t, int64(2), res.AffectedRows)

	res = mustExec(t, e, "SELECT id FROM t;")
	assert.Equal(t, [][]any{{int64(1)}}, res.Rows)
}

func TestExecSQL_AlterAndAbsentFields(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (id integer PRIMARY KEY); INSERT INTO t VALUES (1);")
	mustExec(t, e, "ALTER TABLE t ADD tag char(3);")

	res := mustExec(t, e, "SELECT * FROM t;")
	assert.Equal(t, []string{"id", "tag"}, res.Columns)
	assert.Equal(t, [][]any{{int64(1), nil}}, res.Rows)

	mustExec(t, e, "ALTER TABLE t DROP tag;")
	res = mustExec(t, e, "SELECT * FROM t;")
	assert.Equal(t, []string{"id"}, res.Columns)
}

func TestExecSQL_ShowTables(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE zeta (a integer); CREATE TABLE alpha (a integer);")

	res := mustExec(t, e, "SHOW TABLES;")
	assert.Equal(t, []string{"table_name"}, res.Columns)
	assert.Equal(t, [][]any{{"alpha"}, {"zeta"}}, res.Rows)

	mustExec(t, e, "DROP TABLE zeta;")
	res = mustExec(t, e, "SHOW TABLES;")
	assert.Equal(t, [][]any{{"alpha"}}, res.Rows)
}

func TestExecSQL_ScriptIsAtomic(t *testing.T) {
	e, db := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (id integer PRIMARY KEY);")
	before := db.Version()

	// the second insert collides on the key, so neither lands
	_, err := e.ExecSQL(context.Background(), "INSERT INTO t VALUES (1); INSERT INTO t VALUES (1);")
	require.ErrorIs(t, err, record.ErrSchema)
	assert.Equal(t, before, db.Version())

	res := mustExec(t, e, "SELECT * FROM t;")
	assert.Empty(t, res.Rows)
}

func TestExecSQL_Errors(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (id integer PRIMARY KEY, s char(2));")

	ctx := context.Background()
	_, err := e.ExecSQL(ctx, "SELEC * FROM t;")
	assert.ErrorIs(t, err, parser.ErrSyntax)

	_, err = e.ExecSQL(ctx, "SELECT * FROM missing;")
	assert.ErrorIs(t, err, record.ErrSchema)

	_, err = e.ExecSQL(ctx, "INSERT INTO t VALUES (x, 'ab');")
	assert.ErrorIs(t, err, record.ErrType)

	_, err = e.ExecSQL(ctx, "INSERT INTO t VALUES (1, 'abc');")
	assert.ErrorIs(t, err, record.ErrType)

	_, err = e.ExecSQL(ctx, "UPDATE t SET s = 'a', s = 'b';")
	assert.ErrorIs(t, err, record.ErrSchema)

	// a bit literal never stands in for char data
	mustExec(t, e, "INSERT INTO t VALUES (1, 'ab');")
	_, err = e.ExecSQL(ctx, "SELECT * FROM t WHERE s == b'01';")
	assert.ErrorIs(t, err, record.ErrType)
	_, err = e.ExecSQL(ctx, "UPDATE t SET s = b'01';")
	assert.ErrorIs(t, err, record.ErrType)

	// a misspelled column is not read as text
	_, err = e.ExecSQL(ctx, "DELETE FROM t WHERE z == ab;")
	assert.ErrorIs(t, err, record.ErrSchema)
	res := mustExec(t, e, "SELECT s FROM t;")
	assert.Equal(t, [][]any{{"ab"}}, res.Rows)
}

func TestExecSQL_CharCountsCharacters(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE t (s char(3));")
	mustExec(t, e, "INSERT INTO t VALUES ('héé');")

	_, err := e.ExecSQL(context.Background(), "INSERT INTO t VALUES ('éééé');")
	assert.ErrorIs(t, err, record.ErrType)
}

func TestExecSQL_AwaitSelect(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE jobs (id integer PRIMARY KEY, done boolean);")

	var (
		wg  sync.WaitGroup
		res *Result
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err = e.ExecSQL(ctx, "AWAIT SELECT id FROM jobs WHERE done == true;")
	}()

	time.Sleep(50 * time.Millisecond)
	mustExec(t, e, "INSERT INTO jobs VALUES (1, false);")
	mustExec(t, e, "INSERT INTO jobs VALUES (2, true);")
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}}, res.Rows)
}

func TestExecSQL_AwaitSelectTimeout(t *testing.T) {
	e, _ := newTestExecutor(t)
	mustExec(t, e, "CREATE TABLE jobs (id integer PRIMARY KEY);")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := e.ExecSQL(ctx, "AWAIT SELECT * FROM jobs;")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResultFormat(t *testing.T) {
	assert.Equal(t, "OK, 3 row(s) affected", (&Result{AffectedRows: 3}).Format())

	r := &Result{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "alice"}, {int64(22), nil}},
	}
	want := "id | name \n" +
		"-- | -----\n" +
		"1  | alice\n" +
		"22 | -    \n" +
		"(2 row(s))"
	assert.Equal(t, want, r.Format())
}
