package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrColumnNotFound is returned when a required named column is absent.
var ErrColumnNotFound = eris.New("tabular: column not found")

// ErrUnsupportedFormat is returned for paths that are neither .csv nor .xlsx.
var ErrUnsupportedFormat = eris.New("tabular: unsupported file format, use .csv or .xlsx")

// Frame is an in-memory table: a header and string rows in file order.
type Frame struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewFrame builds a Frame and indexes its header.
func NewFrame(header []string, rows [][]string) *Frame {
	f := &Frame{Header: header, Rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalizeCol(h)
		if _, dup := f.index[key]; !dup {
			f.index[key] = i
		}
	}
	return f
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[normalizeCol(name)]
	return ok
}

// Column returns all values of a named column in row order. Short rows
// yield empty strings.
func (f *Frame) Column(name string) ([]string, error) {
	idx, ok := f.index[normalizeCol(name)]
	if !ok {
		return nil, eris.Wrapf(ErrColumnNotFound, "column %q", name)
	}
	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out, nil
}

// Columns returns several named columns, failing on the first absent one.
func (f *Frame) Columns(names ...string) ([][]string, error) {
	cols := make([][]string, len(names))
	for i, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// normalizeCol trims and lowercases for header matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ReadFrame loads a .csv or .xlsx file. The first row is the header. Blank
// CSV lines are kept as empty rows.
func ReadFrame(ctx context.Context, path string) (*Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVFrame(ctx, path)
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return NewFrame(nil, nil), nil
		}
		return NewFrame(rows[0], rows[1:]), nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "read %q", path)
	}
}

func readCSVFrame(ctx context.Context, path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open csv")
	}
	defer f.Close() //nolint:errcheck

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{
		HasHeader:      true,
		HeaderCh:       headerCh,
		KeepBlankLines: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrapf(err, "tabular: read %q", path)
		}
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
	}
	return NewFrame(header, rows), nil
}
