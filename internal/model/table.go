package model

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
)

// ColumnKind declares how a table column serializes. Integer columns shed
// the fractional artifacts that numeric joins introduce; float columns keep
// their values exactly.
type ColumnKind int

const (
	ColumnString ColumnKind = iota
	ColumnInt
	ColumnFloat
)

// Column is one declared column of a Table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a flat, column-typed result set. Cells hold nil (missing),
// string, int, int64, or float64.
type Table struct {
	Columns []Column
	Rows    [][]any
}

// NewTable returns an empty table with the given declared columns.
func NewTable(cols []Column) *Table {
	return &Table{Columns: cols}
}

// Append adds one row. The row must match the declared column count.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return eris.Errorf("model: row has %d cells, table declares %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Normalize coerces every cell to its column's declared kind. A float value
// under an integer column is restored to integer form only when it is
// integral; a non-integral value there is an error, never a truncation.
func (t *Table) Normalize() error {
	for ri, row := range t.Rows {
		for ci, cell := range row {
			v, err := normalizeCell(t.Columns[ci].Kind, cell)
			if err != nil {
				return eris.Wrapf(err, "model: row %d column %q", ri, t.Columns[ci].Name)
			}
			row[ci] = v
		}
	}
	return nil
}

func normalizeCell(kind ColumnKind, cell any) (any, error) {
	if cell == nil {
		return nil, nil
	}
	switch kind {
	case ColumnInt:
		switch v := cell.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
				return nil, eris.Errorf("non-integral value %v in integer column", v)
			}
			return int64(v), nil
		}
	case ColumnFloat:
		switch v := cell.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case ColumnString:
		if v, ok := cell.(string); ok {
			return v, nil
		}
	}
	return nil, eris.Errorf("value %v (%T) does not fit column kind %d", cell, cell, kind)
}

// WriteCSV writes the header and all rows. Call Normalize first; a cell
// that does not match its declared kind is an error here.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "model: write csv header")
	}
	out := make([]string, len(t.Columns))
	for ri, row := range t.Rows {
		for ci, cell := range row {
			s, err := formatCell(t.Columns[ci].Kind, cell)
			if err != nil {
				return eris.Wrapf(err, "model: row %d column %q", ri, t.Columns[ci].Name)
			}
			out[ci] = s
		}
		if err := cw.Write(out); err != nil {
			return eris.Wrapf(err, "model: write csv row %d", ri)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "model: flush csv")
}

func formatCell(kind ColumnKind, cell any) (string, error) {
	if cell == nil {
		return "", nil
	}
	switch kind {
	case ColumnInt:
		v, ok := cell.(int64)
		if !ok {
			return "", eris.Errorf("unnormalized cell %v (%T) in integer column", cell, cell)
		}
		return strconv.FormatInt(v, 10), nil
	case ColumnFloat:
		v, ok := cell.(float64)
		if !ok {
			return "", eris.Errorf("unnormalized cell %v (%T) in float column", cell, cell)
		}
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		v, ok := cell.(string)
		if !ok {
			return "", eris.Errorf("unnormalized cell %v (%T) in string column", cell, cell)
		}
		return v, nil
	}
}
