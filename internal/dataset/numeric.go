package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// EncodedValue maps one text value to its numeric code.
type EncodedValue struct {
	Original string  `json:"original"`
	Code     float64 `json:"code"`
}

// Encoding records how a text column was turned into numbers.
type Encoding struct {
	Column string         `json:"column"`
	Values []EncodedValue `json:"values"`
}

// Numeric converts a column to float64. Numeric columns are parsed
// directly; text columns are encoded by sorted distinct value and the
// encoding is returned. Missing cells become NaN.
func Numeric(t *Table, col string) ([]float64, *Encoding, error) {
	out, enc, err := NumericShared(col, t)
	if err != nil {
		return nil, nil, err
	}
	return out[0], enc, nil
}

// NumericShared converts the same column of several tables. When the
// column is text in any table, one encoding is built from the union of
// all values so equal strings get equal codes everywhere.
func NumericShared(col string, tables ...*Table) ([][]float64, *Encoding, error) {
	cells := make([][]string, len(tables))
	numeric := true
	for i, t := range tables {
		c, err := t.Column(col)
		if err != nil {
			return nil, nil, err
		}
		cells[i] = c
		if numeric && !allNumeric(c) {
			numeric = false
		}
	}

	out := make([][]float64, len(tables))
	if numeric {
		for i, c := range cells {
			vals := make([]float64, len(c))
			for j, cell := range c {
				if IsMissing(cell) {
					vals[j] = math.NaN()
					continue
				}
				v, err := parseFloat(cell)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to parse %q in column %q: %w", cell, col, err)
				}
				vals[j] = v
			}
			out[i] = vals
		}
		return out, nil, nil
	}

	enc := encode(col, cells...)
	codes := make(map[string]float64, len(enc.Values))
	for _, v := range enc.Values {
		codes[v.Original] = v.Code
	}
	for i, c := range cells {
		vals := make([]float64, len(c))
		for j, cell := range c {
			code, ok := codes[strings.TrimSpace(cell)]
			if !ok || IsMissing(cell) {
				vals[j] = math.NaN()
				continue
			}
			vals[j] = code
		}
		out[i] = vals
	}
	return out, enc, nil
}

func allNumeric(cells []string) bool {
	for _, cell := range cells {
		if IsMissing(cell) {
			continue
		}
		if _, err := parseFloat(cell); err != nil {
			return false
		}
	}
	return true
}

func encode(col string, cells ...[]string) *Encoding {
	seen := make(map[string]bool)
	var distinct []string
	for _, c := range cells {
		for _, cell := range c {
			if IsMissing(cell) {
				continue
			}
			v := strings.TrimSpace(cell)
			if !seen[v] {
				seen[v] = true
				distinct = append(distinct, v)
			}
		}
	}
	sort.Strings(distinct)

	enc := &Encoding{Column: col, Values: make([]EncodedValue, len(distinct))}
	for i, v := range distinct {
		enc.Values[i] = EncodedValue{Original: v, Code: float64(i)}
	}
	return enc
}
