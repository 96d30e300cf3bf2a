package executor

import (
	"fmt"
	"strings"

	"github.com/tuannm99/novamem/internal/record"
)

// Result is the generic query result returned to the caller.
type Result struct {
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`

	// For DML:
	AffectedRows int64 `json:"affected_rows"`
}

// tableResult flattens a table into rows ordered by row id. Absent fields
// become nil.
func tableResult(t *record.Table) *Result {
	cols := t.Schema().Names()
	res := &Result{Columns: cols, Rows: make([][]any, 0, t.Len())}
	t.Scan(func(_ record.RowID, row record.Row) bool {
		out := make([]any, len(cols))
		for i, c := range cols {
			if v, ok := row[c]; ok {
				out[i] = v.Value()
			}
		}
		res.Rows = append(res.Rows, out)
		return true
	})
	return res
}

// Format renders r as an aligned text table, or as an "OK" line for
// statements that return no columns.
func (r *Result) Format() string {
	if r == nil {
		return "OK"
	}
	if len(r.Columns) == 0 {
		return fmt.Sprintf("OK, %d row(s) affected", r.AffectedRows)
	}

	cells := make([][]string, len(r.Rows))
	width := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		width[i] = len(c)
	}
	for i, row := range r.Rows {
		cells[i] = make([]string, len(r.Columns))
		for j := range r.Columns {
			s := "-"
			if j < len(row) && row[j] != nil {
				s = fmt.Sprint(row[j])
			}
			cells[i][j] = s
			width[j] = max(width[j], len(s))
		}
	}

	var b strings.Builder
	line := func(vals []string) {
		for j, v := range vals {
			if j > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(v)
			b.WriteString(strings.Repeat(" ", width[j]-len(v)))
		}
		b.WriteString("\n")
	}
	line(r.Columns)
	sep := make([]string, len(width))
	for j, w := range width {
		sep[j] = strings.Repeat("-", w)
	}
	line(sep)
	for _, row := range cells {
		line(row)
	}
	fmt.Fprintf(&b, "(%d row(s))", len(r.Rows))
	return b.String()
}
