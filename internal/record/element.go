package record

import (
	"cmp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Element is an immutable scalar value tagged with its Kind.
// The zero Element is invalid and never stored in a Row.
type Element struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string // char content, or bits as '0'/'1'
}

func IntValue(v int64) Element    { return Element{kind: KindInteger, i: v} }
func BoolValue(v bool) Element    { return Element{kind: KindBoolean, b: v} }
func RealValue(v float64) Element { return Element{kind: KindReal, f: v} }
func CharValue(v string) Element  { return Element{kind: KindChar, s: v} }

// BitValue builds a bit array from a string of '0' and '1'.
func BitValue(bits string) (Element, error) {
	if bits == "" {
		return Element{}, ValueErrorf("empty bit literal")
	}
	for i := 0; i < len(bits); i++ {
		if bits[i] != '0' && bits[i] != '1' {
			return Element{}, ValueErrorf("malformed bit literal %q", bits)
		}
	}
	return Element{kind: KindBit, s: bits}, nil
}

func MustBitValue(bits string) Element {
	e, err := BitValue(bits)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Element) Kind() Kind    { return e.kind }
func (e Element) IsValid() bool { return e.kind != KindInvalid }

// Len is the array length for char and bit elements, 0 otherwise. Chars are
// counted as runes.
func (e Element) Len() int {
	switch e.kind {
	case KindChar:
		return utf8.RuneCountInString(e.s)
	case KindBit:
		return len(e.s)
	}
	return 0
}

func (e Element) Int() int64     { return e.i }
func (e Element) Bool() bool     { return e.b }
func (e Element) Real() float64  { return e.f }
func (e Element) Chars() string  { return e.s }
func (e Element) BitStr() string { return e.s }

// Value returns the Go value carried by e, for result sets.
func (e Element) Value() any {
	switch e.kind {
	case KindInteger:
		return e.i
	case KindBoolean:
		return e.b
	case KindReal:
		return e.f
	case KindChar, KindBit:
		return e.s
	default:
		return nil
	}
}

func (e Element) String() string {
	switch e.kind {
	case KindInteger:
		return strconv.FormatInt(e.i, 10)
	case KindBoolean:
		return strconv.FormatBool(e.b)
	case KindReal:
		return strconv.FormatFloat(e.f, 'g', -1, 64)
	case KindChar:
		return e.s
	case KindBit:
		return "b'" + e.s + "'"
	default:
		return "<invalid>"
	}
}

// Compare orders e against o. Elements of different kinds are not comparable.
func (e Element) Compare(o Element) (int, error) {
	if e.kind != o.kind {
		return 0, TypeErrorf("cannot compare %s with %s", e.kind, o.kind)
	}
	switch e.kind {
	case KindInteger:
		return cmp.Compare(e.i, o.i), nil
	case KindReal:
		return cmp.Compare(e.f, o.f), nil
	case KindBoolean:
		switch {
		case e.b == o.b:
			return 0, nil
		case !e.b:
			return -1, nil
		default:
			return 1, nil
		}
	case KindChar, KindBit:
		return strings.Compare(e.s, o.s), nil
	default:
		return 0, TypeErrorf("cannot compare invalid elements")
	}
}

// Equal reports whether both elements carry the same kind and value.
func (e Element) Equal(o Element) bool {
	c, err := e.Compare(o)
	return err == nil && c == 0
}

// Contains reports whether o occurs as a contiguous run inside the array e.
func (e Element) Contains(o Element) (bool, error) {
	if !e.kind.IsArray() {
		return false, TypeErrorf("contains needs an array operand, got %s", e.kind)
	}
	if e.kind != o.kind {
		return false, TypeErrorf("cannot search %s inside %s", o.kind, e.kind)
	}
	return strings.Contains(e.s, o.s), nil
}

// ParseLiteral infers the kind of a client literal:
// true/false, integers, reals, b'0101' bit arrays, 'quoted' or bare char arrays.
func ParseLiteral(s string) (Element, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	}
	if bits, ok := bitLiteral(s); ok {
		return BitValue(bits)
	}
	if q, ok := quoted(s); ok {
		return CharValue(q), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(i), nil
	}
	if looksNumeric(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Element{}, ValueErrorf("malformed number %q", s)
		}
		return RealValue(f), nil
	}
	return CharValue(s), nil
}

// ParseAs reads s as a literal of kind k. It backs operands that sit next to a
// column of a known type.
func ParseAs(k Kind, s string) (Element, error) {
	s = strings.TrimSpace(s)
	switch k {
	case KindInteger:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Element{}, TypeErrorf("%q is not an integer", s)
		}
		return IntValue(i), nil
	case KindReal:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Element{}, TypeErrorf("%q is not a real", s)
		}
		return RealValue(f), nil
	case KindBoolean:
		switch strings.ToLower(s) {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		}
		return Element{}, TypeErrorf("%q is not a boolean", s)
	case KindChar:
		if q, ok := quoted(s); ok {
			return CharValue(q), nil
		}
		if _, ok := bitLiteral(s); ok {
			return Element{}, TypeErrorf("bit literal %s where a char is expected", s)
		}
		return CharValue(s), nil
	case KindBit:
		if bits, ok := bitLiteral(s); ok {
			s = bits
		}
		e, err := BitValue(s)
		if err != nil {
			return Element{}, TypeErrorf("%q is not a bit array", s)
		}
		return e, nil
	default:
		return Element{}, TypeErrorf("cannot parse literal as %s", k)
	}
}

func quoted(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func bitLiteral(s string) (string, bool) {
	if len(s) >= 3 && (s[0] == 'b' || s[0] == 'B') {
		if q, ok := quoted(s[1:]); ok {
			return q, true
		}
	}
	return "", false
}

func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
