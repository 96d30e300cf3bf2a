package record

import (
	"cmp"
	"sync"

	"github.com/google/btree"
)

// RowID identifies a row inside its table for the table's whole life.
// It is what log records use as the row key.
type RowID uint64

const btreeDegree = 16

type rowItem struct {
	id  RowID
	row Row
}

func lessRow(a, b rowItem) bool { return a.id < b.id }

// keyItem indexes a row by its primary-key value.
type keyItem struct {
	v  Element
	id RowID
}

func lessKey(a, b keyItem) bool {
	n, err := a.v.Compare(b.v)
	if err != nil {
		n = cmp.Compare(a.v.kind, b.v.kind)
	}
	if n != 0 {
		return n < 0
	}
	return a.id < b.id
}

// Table is an immutable value: an ordered column list plus rows keyed by RowID.
// Every modifying method returns a new Table and leaves the receiver untouched.
// Rows live in a copy-on-write B-tree, so deriving a Table costs O(log n) per
// changed row, not a full copy.
type Table struct {
	schema Schema
	rows   *btree.BTreeG[rowItem]
	nextID RowID

	// primary-key column and its index; keys is nil without one
	key  string
	keys *btree.BTreeG[keyItem]

	// Clone updates the tree's copy-on-write bookkeeping, so concurrent
	// derivations from the same Table must take turns.
	cloneMu sync.Mutex
}

func NewTable(schema Schema) *Table {
	t := &Table{
		schema: Schema{Cols: append([]Column(nil), schema.Cols...)},
		rows:   btree.NewG[rowItem](btreeDegree, lessRow),
		nextID: 1,
	}
	t.reindex()
	return t
}

func (t *Table) derive() *Table {
	t.cloneMu.Lock()
	rows := t.rows.Clone()
	var keys *btree.BTreeG[keyItem]
	if t.keys != nil {
		keys = t.keys.Clone()
	}
	t.cloneMu.Unlock()
	return &Table{schema: t.schema, rows: rows, nextID: t.nextID, key: t.key, keys: keys}
}

// reindex rebuilds the key index after a schema change on a table nobody
// else holds yet.
func (t *Table) reindex() {
	pk, _, ok := t.schema.PrimaryKey()
	if !ok {
		t.key, t.keys = "", nil
		return
	}
	if t.keys != nil && t.key == pk.Name {
		return
	}
	t.key = pk.Name
	t.keys = btree.NewG[keyItem](btreeDegree, lessKey)
	t.rows.Ascend(func(it rowItem) bool {
		t.index(it)
		return true
	})
}

func (t *Table) index(it rowItem) {
	if t.keys == nil {
		return
	}
	if v, ok := it.row[t.key]; ok {
		t.keys.ReplaceOrInsert(keyItem{v: v, id: it.id})
	}
}

func (t *Table) unindex(it rowItem) {
	if t.keys == nil {
		return
	}
	if v, ok := it.row[t.key]; ok {
		t.keys.Delete(keyItem{v: v, id: it.id})
	}
}

// setRow and deleteRow keep rows and keys in step. Only call them on a table
// nobody else holds yet.
func (t *Table) setRow(it rowItem) {
	if old, ok := t.rows.ReplaceOrInsert(it); ok {
		t.unindex(old)
	}
	t.index(it)
}

func (t *Table) deleteRow(id RowID) {
	if old, ok := t.rows.Delete(rowItem{id: id}); ok {
		t.unindex(old)
	}
}

// Schema returns a copy of the column list.
func (t *Table) Schema() Schema {
	return Schema{Cols: append([]Column(nil), t.schema.Cols...)}
}

func (t *Table) Len() int { return t.rows.Len() }

// NextID is the RowID the next Insert will assign.
func (t *Table) NextID() RowID { return t.nextID }

func (t *Table) Get(id RowID) (Row, bool) {
	it, ok := t.rows.Get(rowItem{id: id})
	if !ok {
		return nil, false
	}
	return it.row, true
}

// Scan visits rows in RowID order until fn returns false.
func (t *Table) Scan(fn func(id RowID, row Row) bool) {
	t.rows.Ascend(func(it rowItem) bool {
		return fn(it.id, it.row)
	})
}

// Rows returns the rows in RowID order.
func (t *Table) Rows() []Row {
	out := make([]Row, 0, t.Len())
	t.Scan(func(_ RowID, r Row) bool {
		out = append(out, r)
		return true
	})
	return out
}

// FindByKey returns the first row whose field equals v. A lookup on the
// primary key uses its index; any other field is a scan.
func (t *Table) FindByKey(field string, v Element) (RowID, bool) {
	var (
		found RowID
		ok    bool
	)
	if t.keys != nil && field == t.key {
		t.keys.AscendGreaterOrEqual(keyItem{v: v}, func(it keyItem) bool {
			if it.v.Equal(v) {
				found, ok = it.id, true
			}
			return false
		})
		return found, ok
	}
	t.Scan(func(id RowID, r Row) bool {
		if cur, has := r[field]; has && cur.Equal(v) {
			found, ok = id, true
			return false
		}
		return true
	})
	return found, ok
}

// Insert appends row under a fresh RowID.
func (t *Table) Insert(row Row) (*Table, RowID) {
	id := t.nextID
	return t.Put(id, row), id
}

// Put stores row under id, replacing any previous row with that id.
func (t *Table) Put(id RowID, row Row) *Table {
	nt := t.derive()
	nt.setRow(rowItem{id: id, row: row})
	if id >= nt.nextID {
		nt.nextID = id + 1
	}
	return nt
}

func (t *Table) Remove(id RowID) *Table {
	if _, ok := t.Get(id); !ok {
		return t
	}
	nt := t.derive()
	nt.deleteRow(id)
	return nt
}

// AddColumn appends col to the schema. Existing rows get no value for it.
func (t *Table) AddColumn(col Column) *Table {
	return t.InsertColumn(len(t.schema.Cols), col)
}

// InsertColumn places col at position pos (clamped to the column count).
func (t *Table) InsertColumn(pos int, col Column) *Table {
	if pos < 0 || pos > len(t.schema.Cols) {
		pos = len(t.schema.Cols)
	}
	cols := make([]Column, 0, len(t.schema.Cols)+1)
	cols = append(cols, t.schema.Cols[:pos]...)
	cols = append(cols, col)
	cols = append(cols, t.schema.Cols[pos:]...)

	nt := t.derive()
	nt.schema = Schema{Cols: cols}
	nt.reindex()
	return nt
}

// DropColumn removes the column and its values from every row.
// It returns the column's former position, or -1 if it did not exist.
func (t *Table) DropColumn(name string) (*Table, int) {
	pos := t.schema.Index(name)
	if pos < 0 {
		return t, -1
	}
	cols := make([]Column, 0, len(t.schema.Cols)-1)
	cols = append(cols, t.schema.Cols[:pos]...)
	cols = append(cols, t.schema.Cols[pos+1:]...)

	nt := t.derive()
	nt.schema = Schema{Cols: cols}
	nt.reindex()
	var changed []rowItem
	t.Scan(func(id RowID, r Row) bool {
		if _, ok := r[name]; ok {
			changed = append(changed, rowItem{id: id, row: r.Without(name)})
		}
		return true
	})
	for _, it := range changed {
		nt.setRow(it)
	}
	return nt, pos
}

// Project builds the sub-table holding only the given fields, in that order.
// Row ids are preserved so the result can be composed further.
func (t *Table) Project(fields []string) (*Table, error) {
	cols := make([]Column, 0, len(fields))
	for _, f := range fields {
		c, ok := t.schema.Column(f)
		if !ok {
			return nil, SchemaErrorf("unknown column %s", f)
		}
		cols = append(cols, c)
	}
	out := NewTable(Schema{Cols: cols})
	t.Scan(func(id RowID, r Row) bool {
		pr := make(Row, len(fields))
		for _, f := range fields {
			if v, ok := r[f]; ok {
				pr[f] = v
			}
		}
		out.setRow(rowItem{id: id, row: pr})
		return true
	})
	out.nextID = t.nextID
	return out, nil
}

// Filter keeps the rows for which keep returns true. The first error stops the
// scan and is returned.
func (t *Table) Filter(keep func(Row) (bool, error)) (*Table, error) {
	out := NewTable(t.schema)
	var ferr error
	t.Scan(func(id RowID, r Row) bool {
		ok, err := keep(r)
		if err != nil {
			ferr = err
			return false
		}
		if ok {
			out.setRow(rowItem{id: id, row: r})
		}
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	out.nextID = t.nextID
	return out, nil
}

// Equal compares schema, rows and the next row id.
func (t *Table) Equal(o *Table) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.nextID != o.nextID || t.Len() != o.Len() || len(t.schema.Cols) != len(o.schema.Cols) {
		return false
	}
	for i := range t.schema.Cols {
		if t.schema.Cols[i] != o.schema.Cols[i] {
			return false
		}
	}
	equal := true
	t.Scan(func(id RowID, r Row) bool {
		or, ok := o.Get(id)
		if !ok || !r.Equal(or) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

func (t *Table) withNextID(id RowID) *Table {
	nt := t.derive()
	nt.nextID = id
	return nt
}
