// Package dataset holds already-parsed tabular data exchanged between
// the upload layer, session seeding, and workspaces.
package dataset

import "fmt"

// Dataset is an in-memory table: a header row plus data rows. Rows are
// positional; each row has exactly len(Columns) values.
type Dataset struct {
	Columns []string
	Rows    [][]any
}

// Named pairs a dataset with the table name it registers under.
type Named struct {
	Name string
	Data Dataset
}

// Validate checks structural consistency.
func (d Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset has no columns")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(d.Columns))
		}
	}
	return nil
}

// Copy returns an independently mutable copy of the dataset. Session
// seeding uses this so no two workspaces share row storage.
func (d Dataset) Copy() Dataset {
	out := Dataset{
		Columns: append([]string(nil), d.Columns...),
		Rows:    make([][]any, len(d.Rows)),
	}
	for i, row := range d.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}
