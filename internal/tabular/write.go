package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/surgeo/internal/model"
)

// ResultSheet is the sheet name used for XLSX output.
const ResultSheet = "results"

// WriteResult writes a result set to a .csv or .xlsx path, rounding
// probabilities to precision places. MISSING probabilities become empty cells.
func WriteResult(path string, rs *model.ResultSet, precision int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrap(err, "tabular: create output file")
		}
		if err := WriteResultCSV(f, rs, precision); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrap(f.Close(), "tabular: close output file")
	case ".xlsx":
		return WriteResultXLSX(path, rs, precision)
	default:
		return eris.Wrapf(ErrUnsupportedFormat, "write %q", path)
	}
}

// WriteResultCSV writes the header and every record as CSV.
func WriteResultCSV(w io.Writer, rs *model.ResultSet, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Header()); err != nil {
		return eris.Wrap(err, "tabular: write csv header")
	}
	if err := cw.WriteAll(rs.Rows(precision)); err != nil {
		return eris.Wrap(err, "tabular: write csv rows")
	}
	return nil
}

// WriteResultXLSX writes the result set to a single-sheet workbook.
// Probabilities are numeric cells.
func WriteResultXLSX(path string, rs *model.ResultSet, precision int) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ResultSheet)
	if err != nil {
		return eris.Wrap(err, "tabular: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range rs.Header() {
		header.AddCell().SetString(h)
	}

	for _, rec := range rs.Records {
		row := sheet.AddRow()
		for _, id := range rec.IDs {
			row.AddCell().SetString(id)
		}
		missing := rec.Probabilities.IsMissing()
		v := rec.Probabilities.Round(precision)
		for _, p := range v {
			cell := row.AddCell()
			if missing {
				continue
			}
			cell.SetFloat(p)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "tabular: save xlsx")
	}
	return nil
}
