package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuannm99/novamem/internal/engine"
	"github.com/tuannm99/novamem/internal/sql/parser"
	"github.com/tuannm99/novamem/internal/sql/planner"
)

// Executor runs SQL requests against a Database.
type Executor struct {
	db  *engine.Database
	log *slog.Logger
}

func NewExecutor(db *engine.Database, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{db: db, log: log}
}

// ExecSQL is the top-level entry: SQL string -> Result.
// Every statement of the request runs in one transaction; the result of the
// last one is returned.
func (e *Executor) ExecSQL(ctx context.Context, sql string) (*Result, error) {
	stmts, err := parser.ParseScript(sql)
	if err != nil {
		return nil, err
	}

	plans := make([]planner.Plan, 0, len(stmts))
	for _, st := range stmts {
		p, err := planner.BuildPlan(st)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	var res *Result
	c, err := e.db.Exec(ctx, func(t *engine.Txn) error {
		// a retried attempt starts over
		res = nil
		for _, p := range plans {
			r, err := execPlan(t, p)
			if err != nil {
				return err
			}
			res = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug("exec",
		"statements", len(plans),
		"version", c.Version,
		"attempts", c.Attempts)
	return res, nil
}

func execPlan(t *engine.Txn, p planner.Plan) (*Result, error) {
	switch plan := p.(type) {
	case *planner.CreateTablePlan:
		return &Result{}, t.CreateTable(plan.TableName, plan.Columns)
	case *planner.DropTablePlan:
		return &Result{}, t.DropTable(plan.TableName)
	case *planner.AddColumnPlan:
		return &Result{}, t.AddColumn(plan.TableName, plan.Column)
	case *planner.DropColumnPlan:
		return &Result{}, t.DropColumn(plan.TableName, plan.Column)

	case *planner.InsertPlan:
		if _, err := t.Insert(plan.TableName, plan.Values); err != nil {
			return nil, err
		}
		return &Result{AffectedRows: 1}, nil

	case *planner.SeqScanPlan:
		return execSeqScan(t, plan)

	case *planner.UpdatePlan:
		n, err := t.Update(plan.TableName, plan.Assignments, plan.Filter)
		if err != nil {
			return nil, err
		}
		return &Result{AffectedRows: int64(n)}, nil
	case *planner.DeletePlan:
		n, err := t.Delete(plan.TableName, plan.Filter)
		if err != nil {
			return nil, err
		}
		return &Result{AffectedRows: int64(n)}, nil

	case *planner.ShowTablesPlan:
		return tableResult(t.ShowTables()), nil

	default:
		return nil, fmt.Errorf("executor: unsupported plan type %T", p)
	}
}

func execSeqScan(t *engine.Txn, p *planner.SeqScanPlan) (*Result, error) {
	scan := t.Select
	if p.Await {
		scan = t.AwaitSelect
	}
	out, err := scan(p.TableName, p.Fields, p.Filter)
	if err != nil {
		return nil, err
	}
	return tableResult(out), nil
}
