// Package dataset loads and cleans the tabular training data.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/myconet/internal/errors"
)

var (
	// ErrSourceMissing is returned when a training CSV does not exist.
	ErrSourceMissing = errors.NewStd("data file not found")
	// ErrEmptyTable is returned when an operation needs at least one row.
	ErrEmptyTable = errors.NewStd("table has no rows")
	// ErrUnknownColumn is returned for a column name absent from the header.
	ErrUnknownColumn = errors.NewStd("unknown column")
)

// naTokens are the strings read as missing values, matching the defaults
// of common dataframe libraries.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNA reports whether a raw field counts as missing.
func IsNA(value string) bool {
	_, ok := naTokens[strings.TrimSpace(value)]
	return ok
}

// Table is an immutable in-memory CSV table. Operations return new tables.
type Table struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// NewTable builds a table from a header and rows of equal width.
func NewTable(header []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, errors.Newf("duplicate column %q", name).
				Component("dataset").
				Category(errors.CategoryFileParsing).
				Build()
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, errors.Newf("row %d has %d fields, want %d", i+1, len(row), len(header)).
				Component("dataset").
				Category(errors.CategoryFileParsing).
				Build()
		}
	}
	return &Table{header: header, rows: rows, index: index}, nil
}

// ReadCSV reads a CSV file with a header row.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(fmt.Errorf("%w: %s", ErrSourceMissing, path)).
				Component("dataset").
				Category(errors.CategoryFileIO).
				Context("operation", "read_csv").
				FileContext(path).
				Build()
		}
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			Context("operation", "read_csv").
			Build()
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse reads CSV data with a header row from r.
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse_csv").
			Build()
	}
	if len(records) == 0 {
		return nil, errors.Newf("csv has no header row").
			Component("dataset").
			Category(errors.CategoryFileParsing).
			Build()
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	return NewTable(header, records[1:])
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns a copy of the header.
func (t *Table) Columns() []string { return slices.Clone(t.header) }

// ColumnIndex returns the position of a column.
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, errors.New(fmt.Errorf("%w: %q", ErrUnknownColumn, name)).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}
	return i, nil
}

// Column returns the raw values of one column.
func (t *Table) Column(name string) ([]string, error) {
	col, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(t.rows))
	for i, row := range t.rows {
		values[i] = strings.TrimSpace(row[col])
	}
	return values, nil
}

// DropNA returns a table without the rows that have a missing value in any
// of the given columns. With no columns every column is checked.
func (t *Table) DropNA(columns ...string) (*Table, error) {
	check := make([]int, 0, len(columns))
	if len(columns) == 0 {
		for i := range t.header {
			check = append(check, i)
		}
	}
	for _, name := range columns {
		col, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		check = append(check, col)
	}

	kept := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		if !slices.ContainsFunc(check, func(col int) bool { return IsNA(row[col]) }) {
			kept = append(kept, row)
		}
	}
	return &Table{header: t.header, rows: kept, index: t.index}, nil
}

// Drop returns a table without the named columns.
func (t *Table) Drop(columns ...string) (*Table, error) {
	for _, name := range columns {
		if _, err := t.ColumnIndex(name); err != nil {
			return nil, err
		}
	}
	keep := make([]string, 0, len(t.header))
	for _, name := range t.header {
		if !slices.Contains(columns, name) {
			keep = append(keep, name)
		}
	}
	return t.Select(keep...)
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, name := range columns {
		col, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = col
	}

	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		out := make([]string, len(idx))
		for i, col := range idx {
			out[i] = row[col]
		}
		rows[r] = out
	}
	return NewTable(slices.Clone(columns), rows)
}

// Float64Matrix parses the named columns into a rows x columns matrix.
func (t *Table) Float64Matrix(columns []string) (*mat.Dense, error) {
	if len(t.rows) == 0 {
		return nil, errors.New(ErrEmptyTable).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(columns) == 0 {
		return nil, errors.Newf("no columns selected").
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}

	idx := make([]int, len(columns))
	for i, name := range columns {
		col, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = col
	}

	data := make([]float64, 0, len(t.rows)*len(columns))
	for r, row := range t.rows {
		for i, col := range idx {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return nil, errors.Newf("row %d column %q: cannot parse %q as number", r+1, columns[i], row[col]).
					Component("dataset").
					Category(errors.CategoryFileParsing).
					Build()
			}
			data = append(data, v)
		}
	}

	return mat.NewDense(len(t.rows), len(columns), data), nil
}
