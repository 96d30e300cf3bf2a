package wal

import (
	"fmt"

	"github.com/tuannm99/novamem/internal/record"
)

// OpType tags a log entry. It is also the record type byte in the frame.
type OpType uint8

const (
	OpTxBegin OpType = iota + 1
	OpTxCommit
	OpModify
	OpRowDeleted
	OpTableCreated
	OpTableDropped
	OpColumnAdded
	OpColumnDropped
)

func (t OpType) String() string {
	switch t {
	case OpTxBegin:
		return "begin"
	case OpTxCommit:
		return "commit"
	case OpModify:
		return "modify"
	case OpRowDeleted:
		return "row_deleted"
	case OpTableCreated:
		return "table_created"
	case OpTableDropped:
		return "table_dropped"
	case OpColumnAdded:
		return "column_added"
	case OpColumnDropped:
		return "column_dropped"
	}
	return fmt.Sprintf("op(%d)", uint8(t))
}

// Op is one log entry. Which fields are set depends on Type:
//
//	Modify        Table Row Field Old? New?
//	RowDeleted    Table Row OldRow
//	TableCreated  Table Schema
//	TableDropped  Table Before (no rows; a RowDeleted per row precedes it)
//	ColumnAdded   Table Column Position
//	ColumnDropped Table Column Position
//
// Tx is filled in by Append.
type Op struct {
	Type     OpType            `json:"type"`
	Tx       uint64            `json:"tx"`
	Table    string            `json:"table,omitempty"`
	Row      record.RowID      `json:"row,omitempty"`
	Field    string            `json:"field,omitempty"`
	Old      *record.Element   `json:"old,omitempty"`
	New      *record.Element   `json:"new,omitempty"`
	OldRow   record.Row        `json:"old_row,omitempty"`
	Schema   []record.Column   `json:"schema,omitempty"`
	Before   *record.TableData `json:"before,omitempty"`
	Column   *record.Column    `json:"column,omitempty"`
	Position int               `json:"position,omitempty"`
}

// IsData reports whether the entry changes table state, as opposed to the
// transaction markers.
func (o Op) IsData() bool {
	return o.Type != OpTxBegin && o.Type != OpTxCommit
}

func elemPtr(e record.Element, ok bool) *record.Element {
	if !ok {
		return nil
	}
	return &e
}

// Modify records a field change. A missing old or new value is passed with
// its ok flag false.
func Modify(table string, row record.RowID, field string, old record.Element, hadOld bool, nw record.Element, hasNew bool) Op {
	return Op{
		Type:  OpModify,
		Table: table,
		Row:   row,
		Field: field,
		Old:   elemPtr(old, hadOld),
		New:   elemPtr(nw, hasNew),
	}
}

func RowDeleted(table string, row record.RowID, old record.Row) Op {
	return Op{Type: OpRowDeleted, Table: table, Row: row, OldRow: old}
}

func TableCreated(table string, schema record.Schema) Op {
	return Op{Type: OpTableCreated, Table: table, Schema: schema.Cols}
}

func TableDropped(table string, before record.TableData) Op {
	return Op{Type: OpTableDropped, Table: table, Before: &before}
}

func ColumnAdded(table string, col record.Column, pos int) Op {
	return Op{Type: OpColumnAdded, Table: table, Column: &col, Position: pos}
}

func ColumnDropped(table string, col record.Column, pos int) Op {
	return Op{Type: OpColumnDropped, Table: table, Column: &col, Position: pos}
}
