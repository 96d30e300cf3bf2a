package record

import "unicode"

type Column struct {
	Name       string `json:"name"`
	Type       Type   `json:"type"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

type Schema struct {
	Cols []Column
}

func (s Schema) NumCols() int { return len(s.Cols) }

// Index returns the position of column name, or -1.
func (s Schema) Index(name string) int {
	for i := range s.Cols {
		if s.Cols[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) Has(name string) bool { return s.Index(name) >= 0 }

// Column looks a column up by name.
func (s Schema) Column(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s.Cols[i], true
	}
	return Column{}, false
}

// PrimaryKey returns the primary-key column and its position, if any.
func (s Schema) PrimaryKey() (Column, int, bool) {
	for i, c := range s.Cols {
		if c.PrimaryKey {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

func (s Schema) Names() []string {
	out := make([]string, len(s.Cols))
	for i, c := range s.Cols {
		out[i] = c.Name
	}
	return out
}

// Validate checks identifiers, duplicate names and the single primary key rule.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Cols))
	pks := 0
	for _, c := range s.Cols {
		if err := ValidateIdent(c.Name); err != nil {
			return err
		}
		if c.Type.Kind == KindInvalid {
			return SchemaErrorf("column %s has no type", c.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return SchemaErrorf("duplicate column %s", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return SchemaErrorf("at most one primary key column allowed, got %d", pks)
	}
	return nil
}

// CheckRow verifies that every field of r names a column and carries a value
// of that column's type.
func (s Schema) CheckRow(r Row) error {
	for name, v := range r {
		c, ok := s.Column(name)
		if !ok {
			return SchemaErrorf("unknown column %s", name)
		}
		if err := c.Type.Check(v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIdent accepts a letter or '_' followed by letters, digits or '_'.
func ValidateIdent(name string) error {
	if name == "" {
		return SchemaErrorf("missing identifier")
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return SchemaErrorf("invalid identifier %q", name)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return SchemaErrorf("invalid identifier %q", name)
		}
	}
	return nil
}
