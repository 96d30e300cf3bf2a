package engine

import (
	"fmt"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/sql/expr"
	"github.com/tuannm99/novamem/internal/txn"
	"github.com/tuannm99/novamem/internal/wal"
)

// Txn is the handle operation handlers run against. It lives for one attempt
// of a transaction: reads and writes go through the versioned cells, and log
// entries are collected here until the attempt commits.
type Txn struct {
	db  *Database
	tx  *txn.Tx
	ops []wal.Op
}

// Assignment sets Column to the literal Value in UPDATE.
type Assignment struct {
	Column string
	Value  string
}

func (t *Txn) emit(ops ...wal.Op) { t.ops = append(t.ops, ops...) }

func (t *Txn) directory() directory { return t.db.dir.Get(t.tx) }

func (t *Txn) lookup(name string) (*txn.Cell[*record.Table], *record.Table, error) {
	c, ok := t.directory()[name]
	if !ok {
		return nil, nil, record.SchemaErrorf("table %s does not exist", name)
	}
	return c, c.Get(t.tx), nil
}

// Table returns the current value of a table.
func (t *Txn) Table(name string) (*record.Table, error) {
	_, tbl, err := t.lookup(name)
	return tbl, err
}

func (t *Txn) CreateTable(name string, cols []record.Column) error {
	if err := record.ValidateIdent(name); err != nil {
		return err
	}
	dir := t.directory()
	if _, ok := dir[name]; ok {
		return record.SchemaErrorf("table %s already exists", name)
	}
	schema := record.Schema{Cols: cols}
	if err := schema.Validate(); err != nil {
		return err
	}
	if len(cols) == 0 {
		return record.SchemaErrorf("table %s has no columns", name)
	}

	c := txn.NewCell(t.db.tm, record.NewTable(schema))
	t.db.dir.Set(t.tx, dir.with(name, c))
	t.emit(wal.TableCreated(name, schema))
	return nil
}

func (t *Txn) DropTable(name string) error {
	_, tbl, err := t.lookup(name)
	if err != nil {
		return err
	}
	t.db.dir.Set(t.tx, t.directory().without(name))
	// one entry per row, then the schema, so no entry grows with the table
	tbl.Scan(func(id record.RowID, row record.Row) bool {
		t.emit(wal.RowDeleted(name, id, row))
		return true
	})
	t.emit(wal.TableDropped(name, record.TableData{
		Columns: tbl.Schema().Cols,
		NextID:  tbl.NextID(),
	}))
	return nil
}

// AddColumn appends col; existing rows have no value for it.
func (t *Txn) AddColumn(table string, col record.Column) error {
	c, tbl, err := t.lookup(table)
	if err != nil {
		return err
	}
	if err := record.ValidateIdent(col.Name); err != nil {
		return err
	}
	schema := tbl.Schema()
	if schema.Has(col.Name) {
		return record.SchemaErrorf("column %s already exists in %s", col.Name, table)
	}
	if col.PrimaryKey {
		if _, _, ok := schema.PrimaryKey(); ok {
			return record.SchemaErrorf("table %s already has a primary key", table)
		}
		if tbl.Len() > 0 {
			return record.SchemaErrorf("cannot add primary key %s to non-empty table %s", col.Name, table)
		}
	}

	c.Set(t.tx, tbl.AddColumn(col))
	t.emit(wal.ColumnAdded(table, col, schema.NumCols()))
	return nil
}

// DropColumn removes the column from the schema and from every row.
func (t *Txn) DropColumn(table, column string) error {
	c, tbl, err := t.lookup(table)
	if err != nil {
		return err
	}
	col, ok := tbl.Schema().Column(column)
	if !ok {
		return record.SchemaErrorf("column %s does not exist in %s", column, table)
	}

	tbl.Scan(func(id record.RowID, row record.Row) bool {
		if old, has := row[column]; has {
			t.emit(wal.Modify(table, id, column, old, true, record.Element{}, false))
		}
		return true
	})
	nt, pos := tbl.DropColumn(column)
	c.Set(t.tx, nt)
	t.emit(wal.ColumnDropped(table, col, pos))
	return nil
}

// Insert parses one literal per column, in column order, and appends the row.
func (t *Txn) Insert(table string, literals []string) (record.RowID, error) {
	_, tbl, err := t.lookup(table)
	if err != nil {
		return 0, err
	}
	schema := tbl.Schema()
	if len(literals) != schema.NumCols() {
		return 0, record.ValueErrorf("%s has %d columns, got %d values", table, schema.NumCols(), len(literals))
	}
	values := make([]record.Element, len(literals))
	for i, lit := range literals {
		v, err := record.ParseAs(schema.Cols[i].Type.Kind, lit)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	return t.InsertValues(table, values)
}

// InsertValues appends a row of already typed values, in column order.
func (t *Txn) InsertValues(table string, values []record.Element) (record.RowID, error) {
	c, tbl, err := t.lookup(table)
	if err != nil {
		return 0, err
	}
	schema := tbl.Schema()
	if len(values) != schema.NumCols() {
		return 0, record.ValueErrorf("%s has %d columns, got %d values", table, schema.NumCols(), len(values))
	}

	row := make(record.Row, len(values))
	for i, col := range schema.Cols {
		if err := col.Type.Check(values[i]); err != nil {
			return 0, fmt.Errorf("column %s: %w", col.Name, err)
		}
		row[col.Name] = values[i]
	}
	if pk, _, ok := schema.PrimaryKey(); ok {
		if _, dup := tbl.FindByKey(pk.Name, row[pk.Name]); dup {
			return 0, record.SchemaErrorf("duplicate primary key %s in %s", row[pk.Name], table)
		}
	}

	nt, id := tbl.Insert(row)
	c.Set(t.tx, nt)
	for _, col := range schema.Cols {
		t.emit(wal.Modify(table, id, col.Name, record.Element{}, false, row[col.Name], true))
	}
	return id, nil
}

func (t *Txn) matching(tbl *record.Table, cond expr.Cond) (*record.Table, error) {
	pred, err := expr.Compile(cond, tbl.Schema())
	if err != nil {
		return nil, err
	}
	return tbl.Filter(pred)
}

func allFields(fields []string) bool {
	return len(fields) == 0 || (len(fields) == 1 && fields[0] == "*")
}

// Select returns the rows matching cond, projected to fields. No fields or a
// single "*" keeps every column.
func (t *Txn) Select(table string, fields []string, cond expr.Cond) (*record.Table, error) {
	_, tbl, err := t.lookup(table)
	if err != nil {
		return nil, err
	}
	if !allFields(fields) {
		// unknown fields fail even when nothing matches
		if _, err := tbl.Project(fields); err != nil {
			return nil, err
		}
	}
	out, err := t.matching(tbl, cond)
	if err != nil {
		return nil, err
	}
	if allFields(fields) {
		return out, nil
	}
	return out.Project(fields)
}

// AwaitSelect is Select that blocks until at least one row matches.
func (t *Txn) AwaitSelect(table string, fields []string, cond expr.Cond) (*record.Table, error) {
	out, err := t.Select(table, fields, cond)
	if err != nil {
		return nil, err
	}
	if out.Len() == 0 {
		return nil, txn.ErrRetry
	}
	return out, nil
}

// Update applies assigns to every row matching cond and returns how many rows
// changed.
func (t *Txn) Update(table string, assigns []Assignment, cond expr.Cond) (int, error) {
	c, tbl, err := t.lookup(table)
	if err != nil {
		return 0, err
	}
	schema := tbl.Schema()

	values := make(record.Row, len(assigns))
	for _, a := range assigns {
		col, ok := schema.Column(a.Column)
		if !ok {
			return 0, record.SchemaErrorf("column %s does not exist in %s", a.Column, table)
		}
		v, err := record.ParseAs(col.Type.Kind, a.Value)
		if err != nil {
			return 0, err
		}
		if err := col.Type.Check(v); err != nil {
			return 0, fmt.Errorf("column %s: %w", col.Name, err)
		}
		values[col.Name] = v
	}

	matched, err := t.matching(tbl, cond)
	if err != nil {
		return 0, err
	}

	pk, _, hasPK := schema.PrimaryKey()
	nt := tbl
	changed := 0
	var ferr error
	matched.Scan(func(id record.RowID, row record.Row) bool {
		next := row
		var entries []wal.Op
		for _, col := range schema.Cols {
			v, set := values[col.Name]
			if !set {
				continue
			}
			old, had := row[col.Name]
			if had && old.Equal(v) {
				continue
			}
			next = next.With(col.Name, v)
			entries = append(entries, wal.Modify(table, id, col.Name, old, had, v, true))
		}
		if len(entries) == 0 {
			return true
		}
		if hasPK {
			if v, ok := next[pk.Name]; ok {
				if other, dup := nt.FindByKey(pk.Name, v); dup && other != id {
					ferr = record.SchemaErrorf("duplicate primary key %s in %s", v, table)
					return false
				}
			}
		}
		nt = nt.Put(id, next)
		t.emit(entries...)
		changed++
		return true
	})
	if ferr != nil {
		return 0, ferr
	}
	if changed > 0 {
		c.Set(t.tx, nt)
	}
	return changed, nil
}

// Delete removes the rows matching cond and returns how many were removed.
func (t *Txn) Delete(table string, cond expr.Cond) (int, error) {
	c, tbl, err := t.lookup(table)
	if err != nil {
		return 0, err
	}
	matched, err := t.matching(tbl, cond)
	if err != nil {
		return 0, err
	}
	if matched.Len() == 0 {
		return 0, nil
	}

	nt := tbl
	matched.Scan(func(id record.RowID, row record.Row) bool {
		nt = nt.Remove(id)
		t.emit(wal.RowDeleted(table, id, row))
		return true
	})
	c.Set(t.tx, nt)
	return matched.Len(), nil
}

// ShowTables lists table names, sorted, as a one-column table.
func (t *Txn) ShowTables() *record.Table {
	names := t.directory().names()
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	out := record.NewTable(record.Schema{Cols: []record.Column{
		{Name: "table_name", Type: record.Char(width)},
	}})
	for _, n := range names {
		out, _ = out.Insert(record.Row{"table_name": record.CharValue(n)})
	}
	return out
}
