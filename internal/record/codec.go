package record

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Text form of an Element: a one-letter kind marker, ':' and the payload.
//
//	i:42  b:true  r:1.5  c:alice  x:0101
const (
	tagInteger = 'i'
	tagBoolean = 'b'
	tagReal    = 'r'
	tagChar    = 'c'
	tagBit     = 'x'
)

// Encode returns the tagged text form of e.
func (e Element) Encode() string {
	switch e.kind {
	case KindInteger:
		return "i:" + strconv.FormatInt(e.i, 10)
	case KindBoolean:
		return "b:" + strconv.FormatBool(e.b)
	case KindReal:
		return "r:" + strconv.FormatFloat(e.f, 'g', -1, 64)
	case KindChar:
		return "c:" + e.s
	case KindBit:
		return "x:" + e.s
	default:
		return ""
	}
}

// DecodeElement reverses Encode, selecting the decoder from the kind marker.
func DecodeElement(s string) (Element, error) {
	if len(s) < 2 || s[1] != ':' {
		return Element{}, ValueErrorf("malformed element %q", s)
	}
	payload := s[2:]
	switch s[0] {
	case tagInteger:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return Element{}, ValueErrorf("malformed integer %q", payload)
		}
		return IntValue(i), nil
	case tagBoolean:
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return Element{}, ValueErrorf("malformed boolean %q", payload)
		}
		return BoolValue(b), nil
	case tagReal:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Element{}, ValueErrorf("malformed real %q", payload)
		}
		return RealValue(f), nil
	case tagChar:
		return CharValue(payload), nil
	case tagBit:
		return BitValue(payload)
	default:
		return Element{}, ValueErrorf("unknown element tag %q", s[0])
	}
}

func (e Element) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Encode())
}

func (e *Element) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	d, err := DecodeElement(s)
	if err != nil {
		return err
	}
	*e = d
	return nil
}

// TableData is the plain, pointer-free form of a Table used for snapshots and
// log records. It is the only place a Table leaves its cell.
type TableData struct {
	Columns []Column  `json:"columns"`
	NextID  RowID     `json:"next_id"`
	Rows    []RowData `json:"rows"`
}

type RowData struct {
	ID     RowID `json:"id"`
	Fields Row   `json:"fields"`
}

// Data materializes t.
func (t *Table) Data() TableData {
	d := TableData{
		Columns: t.Schema().Cols,
		NextID:  t.nextID,
		Rows:    make([]RowData, 0, t.Len()),
	}
	t.Scan(func(id RowID, row Row) bool {
		d.Rows = append(d.Rows, RowData{ID: id, Fields: row.Clone()})
		return true
	})
	return d
}

// FromData rebuilds a Table and checks every table invariant on the way.
func FromData(d TableData) (*Table, error) {
	schema := Schema{Cols: append([]Column(nil), d.Columns...)}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	t := NewTable(schema)
	for _, rd := range d.Rows {
		if err := schema.CheckRow(rd.Fields); err != nil {
			return nil, err
		}
		if _, ok := t.Get(rd.ID); ok {
			return nil, ValueErrorf("duplicate row id %d", rd.ID)
		}
		if pk, _, ok := schema.PrimaryKey(); ok {
			if v, has := rd.Fields[pk.Name]; has {
				if _, dup := t.FindByKey(pk.Name, v); dup {
					return nil, SchemaErrorf("duplicate primary key %s", v)
				}
			}
		}
		t = t.Put(rd.ID, rd.Fields)
	}
	if d.NextID > t.nextID {
		t = t.withNextID(d.NextID)
	}
	return t, nil
}

// String renders a Table as text, mostly for logs and test failures.
func (t *Table) String() string {
	var b strings.Builder
	cols := t.Schema().Cols
	for i, c := range cols {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(c.Name)
	}
	b.WriteByte('\n')
	t.Scan(func(_ RowID, row Row) bool {
		for i, c := range cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			if v, ok := row[c.Name]; ok {
				b.WriteString(v.String())
			} else {
				b.WriteString("NULL")
			}
		}
		b.WriteByte('\n')
		return true
	})
	return b.String()
}
