package engine

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/txn"
	"github.com/tuannm99/novamem/internal/wal"
)

// CheckpointInfo describes one finished checkpoint.
type CheckpointInfo struct {
	Version uint64 `json:"version"`
	Tables  int    `json:"tables"`
	Bytes   int64  `json:"bytes"`
	Trimmed int    `json:"trimmed"`
}

// Checkpoint writes a snapshot of the current state and drops the log entries
// it covers. Only one checkpoint runs at a time; concurrent transactions are
// not blocked.
func (db *Database) Checkpoint(ctx context.Context) (CheckpointInfo, error) {
	if db.closed.Load() {
		return CheckpointInfo{}, ErrDatabaseClosed
	}
	return db.checkpoint(ctx)
}

func (db *Database) checkpoint(ctx context.Context) (CheckpointInfo, error) {
	db.ckptMu.Lock()
	defer db.ckptMu.Unlock()
	start := time.Now()

	var tables map[string]*record.Table
	c, err := db.tm.Run(ctx, func(tx *txn.Tx) error {
		dir := db.dir.Get(tx)
		tables = make(map[string]*record.Table, len(dir))
		for name, cell := range dir {
			tables[name] = cell.Get(tx)
		}
		return nil
	})
	if err != nil {
		return CheckpointInfo{}, err
	}
	v := c.ReadVersion

	// the snapshot must not hold effects the log could lose
	if err := db.wal.WaitAppended(ctx, v); err != nil {
		return CheckpointInfo{}, err
	}
	// a failed append may have left effects in memory that never reached it
	if err := db.wal.Err(); err != nil {
		checkpointCounter.WithLabelValues("error").Inc()
		return CheckpointInfo{}, errors.Wrap(wal.ErrLogFailed, err.Error())
	}

	n, err := writeSnapshot(db.snap, newSnapshot(v, tables))
	if err != nil {
		checkpointCounter.WithLabelValues("error").Inc()
		return CheckpointInfo{}, err
	}
	trimmed, err := db.wal.Trim(v)
	if err != nil {
		checkpointCounter.WithLabelValues("error").Inc()
		return CheckpointInfo{}, err
	}

	db.ckptVersion.Store(v)
	walSize, _ := db.wal.Size()
	checkpointCounter.WithLabelValues("ok").Inc()
	checkpointDuration.Observe(time.Since(start).Seconds())
	snapshotBytes.Set(float64(n))
	walBytes.Set(float64(walSize))

	db.log.Info("checkpoint done",
		"version", v,
		"tables", len(tables),
		"snapshot", humanize.Bytes(uint64(n)),
		"trimmed", trimmed,
		"log", humanize.Bytes(uint64(walSize)),
		"took", time.Since(start))

	return CheckpointInfo{Version: v, Tables: len(tables), Bytes: n, Trimmed: trimmed}, nil
}

func (db *Database) checkpointLoop(every time.Duration) {
	defer db.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-db.stop:
			return
		case <-ticker.C:
			// nothing committed since the last run
			if db.wal.Appended() == db.ckptVersion.Load() {
				continue
			}
			if _, err := db.checkpoint(context.Background()); err != nil {
				db.log.Error("checkpoint failed", "err", err)
			}
		}
	}
}
