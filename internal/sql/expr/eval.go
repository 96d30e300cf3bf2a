package expr

import (
	"github.com/tuannm99/novamem/internal/record"
)

// Predicate tests one row. It is bound to the schema it was compiled for.
type Predicate func(row record.Row) (bool, error)

// MatchAll is the predicate of an absent condition.
func MatchAll(record.Row) (bool, error) { return true, nil }

type side struct {
	column string
	lit    record.Element
	kind   record.Kind
}

func (s side) value(row record.Row) (record.Element, bool) {
	if s.column == "" {
		return s.lit, true
	}
	v, ok := row[s.column]
	return v, ok
}

// Compile binds c to schema. Operands that name a column read the row's
// value; all others are literals. A literal facing a column is read as that
// column's type, and every kind mismatch is reported here, before any row is
// visited.
func Compile(c Cond, schema record.Schema) (Predicate, error) {
	switch n := c.(type) {
	case nil:
		return MatchAll, nil
	case *Logic:
		left, err := Compile(n.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := Compile(n.Right, schema)
		if err != nil {
			return nil, err
		}
		if n.And {
			return func(row record.Row) (bool, error) {
				ok, err := left(row)
				if err != nil || !ok {
					return false, err
				}
				return right(row)
			}, nil
		}
		return func(row record.Row) (bool, error) {
			ok, err := left(row)
			if err != nil || ok {
				return ok, err
			}
			return right(row)
		}, nil
	case *Compare:
		return compileCompare(n, schema)
	default:
		return nil, record.ValueErrorf("unknown condition node %T", c)
	}
}

func bindColumn(o Operand, schema record.Schema) (side, bool) {
	if o.Quoted {
		return side{}, false
	}
	col, ok := schema.Column(o.Raw)
	if !ok {
		return side{}, false
	}
	return side{column: col.Name, kind: col.Type.Kind}, true
}

func bindLiteral(o Operand, like record.Kind) (side, error) {
	var (
		e   record.Element
		err error
	)
	if like == record.KindInvalid {
		e, err = record.ParseLiteral(o.Raw)
	} else {
		e, err = record.ParseAs(like, o.Raw)
	}
	if err != nil {
		return side{}, err
	}
	return side{lit: e, kind: e.Kind()}, nil
}

// bareWord reports whether o is an unquoted operand that only reads as text.
func bareWord(o Operand) bool {
	if o.Quoted {
		return false
	}
	e, err := record.ParseLiteral(o.Raw)
	return err == nil && e.Kind() == record.KindChar
}

func compileCompare(c *Compare, schema record.Schema) (Predicate, error) {
	left, lcol := bindColumn(c.Left, schema)
	right, rcol := bindColumn(c.Right, schema)

	var err error
	switch {
	case lcol && !rcol:
		right, err = bindLiteral(c.Right, left.kind)
	case rcol && !lcol:
		left, err = bindLiteral(c.Left, right.kind)
	case !lcol && !rcol:
		// two bare words with no column between them is a misspelled name
		if bareWord(c.Left) && bareWord(c.Right) {
			return nil, record.SchemaErrorf("%s: neither %s nor %s is a column", c, c.Left, c.Right)
		}
		if left, err = bindLiteral(c.Left, record.KindInvalid); err == nil {
			right, err = bindLiteral(c.Right, record.KindInvalid)
		}
	}
	if err != nil {
		return nil, err
	}

	// a in b is b contains a
	op := c.Op
	if op == OpIn {
		op = OpContains
		left, right = right, left
	}

	if op == OpContains {
		if !left.kind.IsArray() {
			return nil, record.TypeErrorf("%s: %s is not an array", c, left.kind)
		}
	}
	if left.kind != right.kind {
		return nil, record.TypeErrorf("%s: cannot compare %s with %s", c, left.kind, right.kind)
	}

	return func(row record.Row) (bool, error) {
		a, ok := left.value(row)
		if !ok {
			return false, nil
		}
		b, ok := right.value(row)
		if !ok {
			return false, nil
		}
		return apply(op, a, b)
	}, nil
}

func apply(op CmpOp, a, b record.Element) (bool, error) {
	if op == OpContains {
		return a.Contains(b)
	}
	n, err := a.Compare(b)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLT:
		return n < 0, nil
	case OpGT:
		return n > 0, nil
	case OpLE:
		return n <= 0, nil
	case OpGE:
		return n >= 0, nil
	case OpEQ:
		return n == 0, nil
	}
	return false, record.ValueErrorf("unknown operator %s", op)
}

// Eval parses and compiles cond in one step.
func Eval(cond string, schema record.Schema) (Predicate, error) {
	c, err := Parse(cond)
	if err != nil {
		return nil, err
	}
	return Compile(c, schema)
}
