package record

// Row maps field names to values. A missing key means the field has no value.
// Rows stored in a Table are never mutated; use With/Without to derive new ones.
type Row map[string]Element

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (r Row) With(field string, v Element) Row {
	out := r.Clone()
	out[field] = v
	return out
}

func (r Row) Without(field string) Row {
	out := r.Clone()
	delete(out, field)
	return out
}

// Lookup returns the value of field, if present.
func (r Row) Lookup(field string) (Element, bool) {
	v, ok := r[field]
	return v, ok
}

func (r Row) Equal(o Row) bool {
	if len(r) != len(o) {
		return false
	}
	for k, v := range r {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
