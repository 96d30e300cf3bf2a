package parser

import (
	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/expr"
)

// Statement is the root interface for all statements.
type Statement interface {
	stmtNode()
}

// ----- CREATE / DROP TABLE -----
type ColumnDef struct {
	Name       string
	Type       record.Type
	PrimaryKey bool
}

func (c ColumnDef) Column() record.Column {
	return record.Column{Name: c.Name, Type: c.Type, PrimaryKey: c.PrimaryKey}
}

type CreateTableStmt struct {
	TableName string
	Columns   []ColumnDef
}

func (*CreateTableStmt) stmtNode() {}

type DropTableStmt struct {
	TableName string
}

func (*DropTableStmt) stmtNode() {}

// ----- ALTER TABLE -----
type AlterAddStmt struct {
	TableName string
	Column    ColumnDef
}

func (*AlterAddStmt) stmtNode() {}

type AlterDropStmt struct {
	TableName string
	Column    string
}

func (*AlterDropStmt) stmtNode() {}

// ----- INSERT -----
// Values are raw literals; they get their type from the column they land in.
type InsertStmt struct {
	TableName string
	Values    []string
}

func (*InsertStmt) stmtNode() {}

// ----- SELECT -----
type SelectStmt struct {
	TableName string
	// Fields is nil for "*".
	Fields []string
	Where  expr.Cond
	// Await blocks until at least one row matches.
	Await bool
}

func (*SelectStmt) stmtNode() {}

// ----- UPDATE / DELETE -----
type Assignment struct {
	Column string
	Value  string
}

type UpdateStmt struct {
	TableName   string
	Assignments []Assignment
	Where       expr.Cond
}

func (*UpdateStmt) stmtNode() {}

type DeleteStmt struct {
	TableName string
	Where     expr.Cond
}

func (*DeleteStmt) stmtNode() {}

// ----- SHOW TABLES -----
type ShowTablesStmt struct{}

func (*ShowTablesStmt) stmtNode() {}
