package engine

import (
	"sort"

	"github.com/tuannm99/novamem/internal/record"
	"github.com/tuannm99/novamem/internal/txn"
)

// directory maps table names to the cells holding the tables. It is never
// changed in place: adding or removing a table installs a new map.
type directory map[string]*txn.Cell[*record.Table]

func (d directory) with(name string, c *txn.Cell[*record.Table]) directory {
	out := make(directory, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out[name] = c
	return out
}

func (d directory) without(name string) directory {
	out := make(directory, len(d))
	for k, v := range d {
		if k != name {
			out[k] = v
		}
	}
	return out
}

func (d directory) names() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// buildDirectory puts every table in a fresh cell of m.
func buildDirectory(m *txn.Manager, tables map[string]*record.Table) directory {
	d := make(directory, len(tables))
	for name, t := range tables {
		d[name] = txn.NewCell(m, t)
	}
	return d
}
