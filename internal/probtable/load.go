package probtable

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/surgeo/internal/tabular"
)

// SnapshotExt is the file extension of msgpack table snapshots.
const SnapshotExt = ".mp"

// LoadFile builds a table from a .csv, .xlsx or .mp file.
func LoadFile(ctx context.Context, path string, kind Kind) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "probtable: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		t, err := LoadCSV(ctx, f, kind)
		if err != nil {
			return nil, eris.Wrapf(err, "probtable: load %s", path)
		}
		return t, nil
	case ".xlsx":
		return LoadXLSX(path, kind)
	case SnapshotExt:
		t, err := ReadSnapshot(path)
		if err != nil {
			return nil, err
		}
		if err := t.Expect(kind); err != nil {
			return nil, eris.Wrapf(err, "probtable: snapshot %s", path)
		}
		return t, nil
	default:
		return nil, eris.Errorf("probtable: unsupported table file %q", path)
	}
}

// LoadCSV streams a CSV table. The first record is the header.
func LoadCSV(ctx context.Context, r io.Reader, kind Kind) (*Table, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := tabular.StreamCSV(ctx, r, tabular.CSVOptions{TrimSpace: true})

	var (
		parser *rowParser
		b      = NewBuilder(kind, 0)
		line   int
	)
	for row := range rowCh {
		line++
		if parser == nil {
			p, err := newRowParser(kind, row)
			if err != nil {
				return nil, err
			}
			parser = p
			continue
		}
		if err := addRow(b, parser, row, line); err != nil {
			return nil, err
		}
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "probtable: read csv")
		}
	}
	if parser == nil {
		return nil, eris.Wrapf(ErrMissingColumn, "%s: empty source, no header", kind)
	}
	return b.Build(), nil
}

// LoadXLSX reads the first sheet of a workbook. The first row is the header.
func LoadXLSX(path string, kind Kind) (*Table, error) {
	rows, err := tabular.ReadXLSX(path, tabular.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "probtable: load %s", path)
	}
	return fromRecords(kind, rows)
}

// fromRecords builds a table from an in-memory header plus rows.
func fromRecords(kind Kind, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrMissingColumn, "%s: empty source, no header", kind)
	}
	parser, err := newRowParser(kind, rows[0])
	if err != nil {
		return nil, err
	}
	b := NewBuilder(kind, len(rows)-1)
	for i, row := range rows[1:] {
		if err := addRow(b, parser, row, i+2); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func addRow(b *Builder, p *rowParser, row []string, line int) error {
	if isBlank(row) {
		return nil
	}
	key, v, err := p.parse(row, line)
	if err != nil {
		return err
	}
	return b.Add(key, v)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
