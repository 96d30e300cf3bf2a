// Package expr parses and evaluates WHERE conditions.
//
//	Q → (Q) | P | Q and Q | Q or Q
//	P → operand op operand,  op ∈ { >, <, >=, <=, ==, in, contains }
//
// "and" and "or" bind equally and associate to the left.
package expr

import "fmt"

type CmpOp int

const (
	OpLT CmpOp = iota + 1
	OpGT
	OpLE
	OpGE
	OpEQ
	OpIn
	OpContains
)

func (o CmpOp) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpGT:
		return ">"
	case OpLE:
		return "<="
	case OpGE:
		return ">="
	case OpEQ:
		return "=="
	case OpIn:
		return "in"
	case OpContains:
		return "contains"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Operand is the raw text of one side of a comparison. Whether it names a
// column or is a literal is only known once a schema is at hand.
type Operand struct {
	Raw string
	// Quoted operands ('x', b'01') are always literals.
	Quoted bool
}

func (o Operand) String() string { return o.Raw }

// Cond is a parsed condition tree.
type Cond interface {
	condNode()
	String() string
}

type Compare struct {
	Op          CmpOp
	Left, Right Operand
}

func (*Compare) condNode() {}

func (c *Compare) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

type Logic struct {
	And         bool
	Left, Right Cond
}

func (*Logic) condNode() {}

func (l *Logic) String() string {
	op := "or"
	if l.And {
		op = "and"
	}
	return fmt.Sprintf("(%s %s %s)", l.Left, op, l.Right)
}
