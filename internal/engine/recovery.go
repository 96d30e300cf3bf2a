package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/txn"
	"github.com/tuannm99/novamem/internal/wal"
)

// recover rebuilds the state from the snapshot and the log:
//
//  1. load the snapshot (empty state if there is none);
//  2. scan the log backwards, marking committed transactions and undoing
//     entries of transactions that never committed;
//  3. scan forwards, redoing committed transactions newer than the snapshot;
//  4. start the clock after the highest version seen and, if the log file was
//     not empty, checkpoint so the next start has nothing to replay.
func (db *Database) recover(ctx context.Context) error {
	snap, err := readSnapshot(db.snap)
	if err != nil {
		return err
	}
	tables := map[string]*record.Table{}
	var base uint64
	if snap != nil {
		if tables, err = snap.tables(); err != nil {
			return err
		}
		base = snap.Version
	}

	ops, err := db.wal.ReadAll()
	if err != nil {
		return errors.Wrap(err, "recovery: read log")
	}

	st := &replayState{tables: tables}
	committed := make(map[uint64]bool)
	top := base
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		top = max(top, op.Tx)
		if op.Tx <= base {
			continue
		}
		if op.Type == wal.OpTxCommit {
			committed[op.Tx] = true
			continue
		}
		if op.IsData() && !committed[op.Tx] {
			st.undo(op)
		}
	}
	redone := 0
	for _, op := range ops {
		if op.Tx > base && op.IsData() && committed[op.Tx] {
			st.redo(op)
			redone++
		}
	}

	db.tm = txn.NewManager(top)
	db.dir = txn.NewCell(db.tm, buildDirectory(db.tm, st.tables))
	db.wal.Reset(top)
	db.ckptVersion.Store(base)

	db.log.Info("recovered",
		"snapshot_version", base,
		"log_entries", len(ops),
		"committed_txns", len(committed),
		"redone", redone,
		"undone", st.undone,
		"version", top,
		"tables", len(st.tables))

	// a torn tail alone still has to be cut off before new appends
	if size, err := db.wal.Size(); err == nil && size == 0 {
		return nil
	}
	if _, err := db.checkpoint(ctx); err != nil {
		return errors.Wrap(err, "recovery: checkpoint")
	}
	return nil
}

// replayState applies log entries to plain tables. Both directions are
// lenient: entries that refer to a missing table are skipped, and missing rows
// are created when the entry carries a value for them.
type replayState struct {
	tables map[string]*record.Table
	undone int
}

func (s *replayState) undo(op wal.Op) {
	s.undone++
	t, ok := s.tables[op.Table]
	switch op.Type {
	case wal.OpTableCreated:
		delete(s.tables, op.Table)
		return
	case wal.OpTableDropped:
		if op.Before != nil {
			if restored, err := record.FromData(*op.Before); err == nil {
				s.tables[op.Table] = restored
			}
		}
		return
	}
	if !ok {
		return
	}

	switch op.Type {
	case wal.OpModify:
		row, has := t.Get(op.Row)
		if op.Old != nil {
			if !has {
				row = record.Row{}
			}
			s.tables[op.Table] = t.Put(op.Row, row.With(op.Field, *op.Old))
			return
		}
		if !has {
			return
		}
		// the field did not exist before; an emptied row was an insert
		row = row.Without(op.Field)
		if len(row) == 0 {
			s.tables[op.Table] = t.Remove(op.Row)
		} else {
			s.tables[op.Table] = t.Put(op.Row, row)
		}
	case wal.OpRowDeleted:
		s.tables[op.Table] = t.Put(op.Row, op.OldRow.Clone())
	case wal.OpColumnAdded:
		if op.Column != nil {
			s.tables[op.Table], _ = t.DropColumn(op.Column.Name)
		}
	case wal.OpColumnDropped:
		if op.Column != nil && !t.Schema().Has(op.Column.Name) {
			s.tables[op.Table] = t.InsertColumn(op.Position, *op.Column)
		}
	}
}

func (s *replayState) redo(op wal.Op) {
	switch op.Type {
	case wal.OpTableCreated:
		s.tables[op.Table] = record.NewTable(record.Schema{Cols: op.Schema})
		return
	case wal.OpTableDropped:
		delete(s.tables, op.Table)
		return
	}
	t, ok := s.tables[op.Table]
	if !ok {
		return
	}

	switch op.Type {
	case wal.OpModify:
		row, has := t.Get(op.Row)
		if op.New != nil {
			if !has {
				row = record.Row{}
			}
			s.tables[op.Table] = t.Put(op.Row, row.With(op.Field, *op.New))
			return
		}
		if has {
			s.tables[op.Table] = t.Put(op.Row, row.Without(op.Field))
		}
	case wal.OpRowDeleted:
		s.tables[op.Table] = t.Remove(op.Row)
	case wal.OpColumnAdded:
		if op.Column != nil && !t.Schema().Has(op.Column.Name) {
			s.tables[op.Table] = t.InsertColumn(op.Position, *op.Column)
		}
	case wal.OpColumnDropped:
		if op.Column != nil {
			s.tables[op.Table], _ = t.DropColumn(op.Column.Name)
		}
	}
}
