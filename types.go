// Package novamem is the top-level facade for the novamem engine: an
// in-memory relational store with serializable transactions, a write-ahead
// log and snapshot checkpoints.
package novamem

import (
	"context"

	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/sql/executor"
)

type (
	Database = engine.Database
	Options  = engine.Options
	Txn      = engine.Txn
	Result   = executor.Result
)

var (
	ErrDatabaseClosed  = engine.ErrDatabaseClosed
	ErrCorruptSnapshot = engine.ErrCorruptSnapshot
)

// Open recovers the database stored under opts.DataDir, creating it if
// needed.
func Open(opts Options) (*Database, error) { return engine.Open(opts) }

// ExecSQL runs one SQL request against db as a single transaction.
func ExecSQL(ctx context.Context, db *Database, sql string) (*Result, error) {
	return executor.NewExecutor(db, nil).ExecSQL(ctx, sql)
}
