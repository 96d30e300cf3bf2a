package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tuannm99/novamem/internal/txn"
	"github.com/tuannm99/novamem/internal/wal"
)

var (
	ErrDatabaseClosed  = errors.New("novamem: database is closed")
	ErrCorruptSnapshot = errors.New("novamem: corrupt snapshot")
)

type Options struct {
	DataDir string
	// NoSync skips the fsync of the log before a commit is reported. The
	// zero value is durable.
	NoSync bool
	// CheckpointInterval runs checkpoints in the background; 0 disables the loop.
	CheckpointInterval time.Duration
	Logger             *slog.Logger
}

// Database is the in-memory engine. Every request runs as one transaction
// over versioned cells; writing commits are appended to the log before they
// are reported.
type Database struct {
	opts Options
	log  *slog.Logger

	tm   *txn.Manager
	dir  *txn.Cell[directory]
	wal  *wal.Manager
	snap string

	closed atomic.Bool
	stop   chan struct{}
	wg     sync.WaitGroup

	ckptMu sync.Mutex
	// version of the last snapshot written or loaded
	ckptVersion atomic.Uint64
}

// Open loads the snapshot in opts.DataDir, replays the log on top of it and
// starts the checkpoint loop.
func Open(opts Options) (*Database, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, err
	}
	w, err := wal.Open(opts.DataDir, wal.Options{NoSync: opts.NoSync, Logger: log})
	if err != nil {
		return nil, err
	}

	db := &Database{
		opts: opts,
		log:  log.With("component", "engine"),
		wal:  w,
		snap: snapshotPath(opts.DataDir),
		stop: make(chan struct{}),
	}
	if err := db.recover(context.Background()); err != nil {
		_ = w.Close()
		return nil, err
	}

	if opts.CheckpointInterval > 0 {
		db.wg.Add(1)
		go db.checkpointLoop(opts.CheckpointInterval)
	}
	return db, nil
}

// Close stops the checkpoint loop and closes the log. In-flight Exec calls
// may still fail with a log error.
func (db *Database) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(db.stop)
	db.wg.Wait()
	return db.wal.Close()
}

func (db *Database) DataDir() string { return db.opts.DataDir }

// Version is the latest commit version.
func (db *Database) Version() uint64 { return db.tm.Version() }

func (db *Database) Stats() txn.Stats { return db.tm.Stats() }

// Exec runs fn as one atomic, isolated transaction and makes its log entries
// durable before returning. fn may run several times and must confine its
// effects to the Txn; values it hands to the caller should be assigned on
// every run so the last, committed run wins.
func (db *Database) Exec(ctx context.Context, fn func(t *Txn) error) (txn.Commit, error) {
	if db.closed.Load() {
		return txn.Commit{}, ErrDatabaseClosed
	}

	start := time.Now()
	var ops []wal.Op
	c, err := db.tm.Run(ctx, func(tx *txn.Tx) error {
		t := &Txn{db: db, tx: tx}
		if err := fn(t); err != nil {
			return err
		}
		ops = t.ops
		return nil
	})
	observeTxn(c, err, time.Since(start))
	if err != nil {
		return c, err
	}

	if c.ReadOnly() {
		// never hand out state the log has not caught up with
		return c, db.wal.WaitAppended(ctx, c.ReadVersion)
	}

	appendStart := time.Now()
	err = db.wal.Append(c.Version, ops)
	walAppendDuration.Observe(time.Since(appendStart).Seconds())
	walEntries.Add(float64(len(ops)))
	if err != nil {
		db.log.Error("log append failed", "version", c.Version, "err", err)
		return c, err
	}
	return c, nil
}
