// Package tabular reads batches of identifiers from CSV and XLSX files and
// writes result sets back out, preserving row order in both directions.
package tabular

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter      rune            // default ','
	HasHeader      bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh       chan<- []string // optional: receives the header row
	Comment        rune            // comment character (0 = none)
	LazyQuotes     bool
	TrimSpace      bool
	KeepBlankLines bool // emit a single empty field for each blank line instead of skipping it
}

// StreamCSV reads CSV from r and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		if opts.KeepBlankLines {
			r = &blankLineReader{br: bufio.NewReader(r)}
		}
		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			reader.Comment = opts.Comment
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1 // allow variable fields

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return
					}
				}
				continue
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// blankLineReader rewrites blank lines outside quoted fields as `""` so
// encoding/csv yields an empty record for them rather than skipping the
// line. Input batches must keep one output row per input line.
type blankLineReader struct {
	br      *bufio.Reader
	buf     []byte
	inQuote bool
	err     error
}

func (b *blankLineReader) Read(p []byte) (int, error) {
	for len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.err
		}
		line, err := b.br.ReadBytes('\n')
		b.err = err
		if len(line) == 0 {
			continue
		}
		if !b.inQuote && isBlankLine(line) {
			line = append([]byte(`""`), line...)
		}
		if bytes.Count(line, []byte{'"'})%2 == 1 {
			b.inQuote = !b.inQuote
		}
		b.buf = line
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

func isBlankLine(line []byte) bool {
	return bytes.Equal(line, []byte("\n")) || bytes.Equal(line, []byte("\r\n"))
}
