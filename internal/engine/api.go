package engine

import (
	"context"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/expr"
)

// Single-statement helpers. Each runs one transaction through Exec.

func (db *Database) CreateTable(ctx context.Context, name string, cols []record.Column) error {
	_, err := db.Exec(ctx, func(t *Txn) error { return t.CreateTable(name, cols) })
	return err
}

func (db *Database) DropTable(ctx context.Context, name string) error {
	_, err := db.Exec(ctx, func(t *Txn) error { return t.DropTable(name) })
	return err
}

func (db *Database) AddColumn(ctx context.Context, table string, col record.Column) error {
	_, err := db.Exec(ctx, func(t *Txn) error { return t.AddColumn(table, col) })
	return err
}

func (db *Database) DropColumn(ctx context.Context, table, column string) error {
	_, err := db.Exec(ctx, func(t *Txn) error { return t.DropColumn(table, column) })
	return err
}

func (db *Database) Insert(ctx context.Context, table string, literals ...string) (record.RowID, error) {
	var id record.RowID
	_, err := db.Exec(ctx, func(t *Txn) error {
		var err error
		id, err = t.Insert(table, literals)
		return err
	})
	return id, err
}

func (db *Database) InsertValues(ctx context.Context, table string, values ...record.Element) (record.RowID, error) {
	var id record.RowID
	_, err := db.Exec(ctx, func(t *Txn) error {
		var err error
		id, err = t.InsertValues(table, values)
		return err
	})
	return id, err
}

func (db *Database) Select(ctx context.Context, table string, fields []string, cond string) (*record.Table, error) {
	c, err := expr.Parse(cond)
	if err != nil {
		return nil, err
	}
	var out *record.Table
	_, err = db.Exec(ctx, func(t *Txn) error {
		var err error
		out, err = t.Select(table, fields, c)
		return err
	})
	return out, err
}

// AwaitSelect blocks until a row matches cond or ctx ends.
func (db *Database) AwaitSelect(ctx context.Context, table string, fields []string, cond string) (*record.Table, error) {
	c, err := expr.Parse(cond)
	if err != nil {
		return nil, err
	}
	var out *record.Table
	_, err = db.Exec(ctx, func(t *Txn) error {
		var err error
		out, err = t.AwaitSelect(table, fields, c)
		return err
	})
	return out, err
}

func (db *Database) Update(ctx context.Context, table string, assigns []Assignment, cond string) (int, error) {
	c, err := expr.Parse(cond)
	if err != nil {
		return 0, err
	}
	var n int
	_, err = db.Exec(ctx, func(t *Txn) error {
		var err error
		n, err = t.Update(table, assigns, c)
		return err
	})
	return n, err
}

func (db *Database) Delete(ctx context.Context, table, cond string) (int, error) {
	c, err := expr.Parse(cond)
	if err != nil {
		return 0, err
	}
	var n int
	_, err = db.Exec(ctx, func(t *Txn) error {
		var err error
		n, err = t.Delete(table, c)
		return err
	})
	return n, err
}

func (db *Database) ShowTables(ctx context.Context) (*record.Table, error) {
	var out *record.Table
	_, err := db.Exec(ctx, func(t *Txn) error {
		out = t.ShowTables()
		return nil
	})
	return out, err
}

// TableInfo is a short description of one table.
type TableInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// Tables describes every table as of one consistent version.
func (db *Database) Tables(ctx context.Context) ([]TableInfo, error) {
	var out []TableInfo
	_, err := db.Exec(ctx, func(t *Txn) error {
		dir := t.directory()
		out = make([]TableInfo, 0, len(dir))
		for _, name := range dir.names() {
			tbl := dir[name].Get(t.tx)
			out = append(out, TableInfo{Name: name, Columns: tbl.Schema().Names(), Rows: tbl.Len()})
		}
		return nil
	})
	return out, err
}
