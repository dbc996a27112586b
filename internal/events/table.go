// Package events reads and extends the per-run events tables and the QC
// manifest that lists which runs to process.
package events

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/gaze.driftcorr/internal/drift"
)

// NA is written in place of undefined numeric values.
const NA = "n/a"

// Table is a tab-separated table held as strings so original columns
// round-trip unchanged.
type Table struct {
	Header []string
	Rows   [][]string
}

func newTSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	return cr
}

// ReadTable reads a TSV with a header line. Every row must have as many
// fields as the header.
func ReadTable(r io.Reader) (*Table, error) {
	cr := newTSVReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: table has no header", drift.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", drift.ErrMalformedInput, err)
	}
	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", drift.ErrMalformedInput, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Write emits the table as TSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write table: %w", err)
	}
	return nil
}

// Len is the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Strings returns a copy of the named column.
func (t *Table) Strings(name string) ([]string, error) {
	c := t.Column(name)
	if c < 0 {
		return nil, fmt.Errorf("%w: no column %q", drift.ErrMalformedInput, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[c]
	}
	return out, nil
}

// Floats parses the named column. Empty and n/a cells become NaN.
func (t *Table) Floats(name string) ([]float64, error) {
	cells, err := t.Strings(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, s := range cells {
		v, err := ParseFloat(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %v", drift.ErrMalformedInput, name, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// AppendColumn adds a column after the existing ones. A column of the same
// name is replaced in place, so reprocessing a table keeps one copy.
func (t *Table) AppendColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	if c := t.Column(name); c >= 0 {
		for i := range t.Rows {
			t.Rows[i][c] = values[i]
		}
		return nil
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], values[i])
	}
	return nil
}

// AppendFloats formats values with FormatFloat and appends them.
func (t *Table) AppendFloats(name string, values []float64) error {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = FormatFloat(v)
	}
	return t.AppendColumn(name, cells)
}

// AppendMetrics appends the drift-correction columns in order.
func (t *Table) AppendMetrics(cols []drift.Column) error {
	for _, c := range cols {
		var err error
		if c.Text != nil {
			err = t.AppendColumn(c.Name, c.Text)
		} else {
			err = t.AppendFloats(c.Name, c.Values)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Trials extracts TrialNumber, onset and duration from every row.
func (t *Table) Trials() ([]drift.Trial, error) {
	numbers, err := t.Strings("TrialNumber")
	if err != nil {
		return nil, err
	}
	onsets, err := t.Floats("onset")
	if err != nil {
		return nil, err
	}
	durations, err := t.Floats("duration")
	if err != nil {
		return nil, err
	}

	trials := make([]drift.Trial, len(t.Rows))
	for i := range t.Rows {
		n, err := parseInt(numbers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: TrialNumber row %d: %v", drift.ErrMalformedInput, i+1, err)
		}
		if math.IsNaN(onsets[i]) || math.IsNaN(durations[i]) {
			return nil, fmt.Errorf("%w: row %d lacks onset or duration", drift.ErrMalformedInput, i+1)
		}
		trials[i] = drift.Trial{Number: n, Onset: onsets[i], Duration: durations[i]}
	}
	return trials, nil
}

// FormatFloat renders v in its shortest exact form, NaN as n/a.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return NA
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFloat parses a numeric cell; empty, n/a and nan cells are NaN.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", NA, "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt accepts integral values written as floats, e.g. "3.0".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(v), nil
}
