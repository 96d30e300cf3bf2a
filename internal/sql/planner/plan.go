package planner

import (
	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/expr"
)

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
}

// ----- Plan nodes -----

type CreateTablePlan struct {
	TableName string
	Columns   []record.Column
}

func (*CreateTablePlan) planNode() {}

type DropTablePlan struct {
	TableName string
}

func (*DropTablePlan) planNode() {}

type AddColumnPlan struct {
	TableName string
	Column    record.Column
}

func (*AddColumnPlan) planNode() {}

type DropColumnPlan struct {
	TableName string
	Column    string
}

func (*DropColumnPlan) planNode() {}

type InsertPlan struct {
	TableName string
	Values    []string // typed against the schema at execution
}

func (*InsertPlan) planNode() {}

// SeqScanPlan walks every row of a table. Await turns it into a blocking
// scan that waits for the first match.
type SeqScanPlan struct {
	TableName string
	Fields    []string // nil = all columns
	Filter    expr.Cond
	Await     bool
}

func (*SeqScanPlan) planNode() {}

type UpdatePlan struct {
	TableName   string
	Assignments []engine.Assignment
	Filter      expr.Cond
}

func (*UpdatePlan) planNode() {}

type DeletePlan struct {
	TableName string
	Filter    expr.Cond
}

func (*DeletePlan) planNode() {}

type ShowTablesPlan struct{}

func (*ShowTablesPlan) planNode() {}
