package planner

import (
	"fmt"

	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/parser"
)

// BuildPlan builds an executable plan from an AST Statement. Checks that need
// no table state happen here; everything else is left to the engine.
func BuildPlan(stmt parser.Statement) (Plan, error) {
	switch s := stmt.(type) {
	case *parser.CreateTableStmt:
		return buildCreateTablePlan(s)
	case *parser.DropTableStmt:
		return &DropTablePlan{TableName: s.TableName}, nil
	case *parser.AlterAddStmt:
		return &AddColumnPlan{TableName: s.TableName, Column: s.Column.Column()}, nil
	case *parser.AlterDropStmt:
		return &DropColumnPlan{TableName: s.TableName, Column: s.Column}, nil
	case *parser.InsertStmt:
		return &InsertPlan{TableName: s.TableName, Values: s.Values}, nil
	case *parser.SelectStmt:
		return buildSelectPlan(s)
	case *parser.UpdateStmt:
		return buildUpdatePlan(s)
	case *parser.DeleteStmt:
		return &DeletePlan{TableName: s.TableName, Filter: s.Where}, nil
	case *parser.ShowTablesStmt:
		return &ShowTablesPlan{}, nil
	default:
		return nil, fmt.Errorf("planner: unsupported statement type %T", stmt)
	}
}

func buildCreateTablePlan(s *parser.CreateTableStmt) (Plan, error) {
	cols := make([]record.Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		cols = append(cols, c.Column())
	}
	return &CreateTablePlan{
		TableName: s.TableName,
		Columns:   cols,
	}, nil
}

func buildSelectPlan(s *parser.SelectStmt) (Plan, error) {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f] {
			return nil, record.SchemaErrorf("field %s selected twice", f)
		}
		seen[f] = true
	}
	return &SeqScanPlan{
		TableName: s.TableName,
		Fields:    s.Fields,
		Filter:    s.Where,
		Await:     s.Await,
	}, nil
}

func buildUpdatePlan(s *parser.UpdateStmt) (Plan, error) {
	seen := make(map[string]bool, len(s.Assignments))
	assigns := make([]engine.Assignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		if seen[a.Column] {
			return nil, record.SchemaErrorf("column %s assigned twice", a.Column)
		}
		seen[a.Column] = true
		assigns = append(assigns, engine.Assignment{Column: a.Column, Value: a.Value})
	}
	return &UpdatePlan{
		TableName:   s.TableName,
		Assignments: assigns,
		Filter:      s.Where,
	}, nil
}
