package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrColumnNotFound is returned when a requested column is not in the table header.
var ErrColumnNotFound = errors.New("column not found")

// ColumnKind describes how a column's cells are interpreted.
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
)

// Table is a rectangular snapshot loaded from a CSV or XLSX file.
// Cells are kept as raw strings; numeric conversion happens on demand.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Shape returns rows and columns, in that order.
func (t *Table) Shape() (int, int) {
	return len(t.Rows), len(t.Columns)
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	return t.Index(name) >= 0
}

// Column returns a copy of the cells of one column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrColumnNotFound, name, t.Name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Head returns a new table holding at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// Select returns the rows at the given positions, in the given order.
func (t *Table) Select(indices []int) (*Table, error) {
	rows := make([][]string, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(t.Rows) {
			return nil, fmt.Errorf("row %d out of range for %s (%d rows)", idx, t.Name, len(t.Rows))
		}
		rows = append(rows, t.Rows[idx])
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: rows}, nil
}

// Kinds reports, for every column, whether all non-missing cells parse as numbers.
func (t *Table) Kinds() map[string]ColumnKind {
	kinds := make(map[string]ColumnKind, len(t.Columns))
	for i, col := range t.Columns {
		kind := KindNumeric
		for _, row := range t.Rows {
			cell := row[i]
			if IsMissing(cell) {
				continue
			}
			if _, err := parseFloat(cell); err != nil {
				kind = KindText
				break
			}
		}
		kinds[col] = kind
	}
	return kinds
}

// missingValues are the cell spellings treated as "no value".
var missingValues = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
	"-":    true,
}

// IsMissing reports whether a cell holds no value.
func IsMissing(cell string) bool {
	return missingValues[strings.TrimSpace(cell)]
}

func parseFloat(cell string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(cell), 64)
}

func newTable(name string, records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no header row", name)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		rows = append(rows, row)
	}
	return &Table{Name: name, Columns: header, Rows: rows}, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
