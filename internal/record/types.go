package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the runtime tag of an Element.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindBoolean
	KindReal
	KindChar
	KindBit
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindReal:
		return "real"
	case KindChar:
		return "char"
	case KindBit:
		return "bit"
	default:
		return "invalid"
	}
}

// IsArray reports whether values of this kind are fixed-length arrays.
func (k Kind) IsArray() bool { return k == KindChar || k == KindBit }

// Type is a declared column type. Size is only meaningful for char(n) and bit(n).
type Type struct {
	Kind Kind
	Size int
}

var (
	Integer = Type{Kind: KindInteger}
	Boolean = Type{Kind: KindBoolean}
	Real    = Type{Kind: KindReal}
)

func Char(n int) Type { return Type{Kind: KindChar, Size: n} }
func Bit(n int) Type  { return Type{Kind: KindBit, Size: n} }

func (t Type) String() string {
	if t.Kind.IsArray() {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Size)
	}
	return t.Kind.String()
}

// ParseType parses "integer", "boolean", "real", "char(n)" or "bit(n)".
// Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "integer", "int":
		return Integer, nil
	case "boolean", "bool":
		return Boolean, nil
	case "real", "float":
		return Real, nil
	}

	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Type{}, SchemaErrorf("unknown type %q", s)
	}
	name := strings.TrimSpace(s[:open])
	n, err := strconv.Atoi(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil || n < 0 {
		return Type{}, SchemaErrorf("invalid size in type %q", s)
	}

	switch name {
	case "char":
		return Char(n), nil
	case "bit":
		if n == 0 {
			return Type{}, SchemaErrorf("bit size must be positive: %q", s)
		}
		return Bit(n), nil
	default:
		return Type{}, SchemaErrorf("unknown type %q", s)
	}
}

// Check returns nil when e may be stored in a column of type t.
// char(n) takes up to n characters; bit(n) takes exactly n bits.
func (t Type) Check(e Element) error {
	if e.Kind() != t.Kind {
		return TypeErrorf("expected %s, got %s", t, e.Kind())
	}
	switch t.Kind {
	case KindChar:
		if e.Len() > t.Size {
			return TypeErrorf("value %q too long for %s", e.s, t)
		}
	case KindBit:
		if e.Len() != t.Size {
			return TypeErrorf("value %s has %d bits, %s needs %d", e.s, e.Len(), t, t.Size)
		}
	}
	return nil
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pt, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = pt
	return nil
}
