// Package dataset holds the tabular inventory model shared by every stage.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMissingColumns is returned by Validate when required columns are absent.
var ErrMissingColumns = errors.New("missing required columns")

// Dataset is an ordered set of rows addressed by position and column name.
// Absent cells read as "". A Dataset is not safe for concurrent use; one job
// owns it for the duration of a run.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New returns an empty dataset with the given header. Repeated names are
// collapsed; ReadCSV renames them before calling New.
func New(columns ...string) *Dataset {
	d := &Dataset{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		d.EnsureColumn(c)
	}
	return d
}

// Columns returns the header in column order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// HasColumn reports whether the header contains name.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Validate returns ErrMissingColumns naming every absent required column.
func (d *Dataset) Validate(required ...string) error {
	var missing []string
	for _, c := range required {
		if !d.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// Get returns the trimmed value at (row, column), or "" when the column or
// cell is absent.
func (d *Dataset) Get(row int, column string) string {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.rows) {
		return ""
	}
	r := d.rows[row]
	if i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// Set writes value at (row, column), adding the column when needed.
// It panics when row is out of range.
func (d *Dataset) Set(row int, column, value string) {
	i := d.EnsureColumn(column)
	r := d.rows[row]
	if i >= len(r) {
		r = append(r, make([]string, i+1-len(r))...)
		d.rows[row] = r
	}
	r[i] = value
}

// EnsureColumn appends column to the header if absent and returns its index.
func (d *Dataset) EnsureColumn(column string) int {
	if i, ok := d.index[column]; ok {
		return i
	}
	d.columns = append(d.columns, column)
	i := len(d.columns) - 1
	d.index[column] = i
	return i
}

// ClearColumn empties every cell of column. It is a no-op for absent columns.
func (d *Dataset) ClearColumn(column string) {
	i, ok := d.index[column]
	if !ok {
		return
	}
	for _, r := range d.rows {
		if i < len(r) {
			r[i] = ""
		}
	}
}

// AppendRow adds a row built from values keyed by column name. Unknown
// columns are appended to the header in sorted order.
func (d *Dataset) AppendRow(values map[string]string) int {
	d.rows = append(d.rows, make([]string, len(d.columns)))
	row := len(d.rows) - 1
	for _, c := range d.columns {
		if v, ok := values[c]; ok {
			d.Set(row, c, v)
		}
	}
	extra := make([]string, 0)
	for c := range values {
		if !d.HasColumn(c) {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	for _, c := range extra {
		d.Set(row, c, values[c])
	}
	return row
}

// Column returns every value of column in row order.
func (d *Dataset) Column(column string) []string {
	out := make([]string, len(d.rows))
	for i := range d.rows {
		out[i] = d.Get(i, column)
	}
	return out
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	c := New(d.columns...)
	c.rows = make([][]string, len(d.rows))
	for i, r := range d.rows {
		c.rows[i] = append([]string(nil), r...)
	}
	return c
}

func (d *Dataset) appendRecord(record []string) {
	d.rows = append(d.rows, record)
}
