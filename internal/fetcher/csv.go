// Package fetcher downloads census source files over HTTP and FTP and
// decodes the CSV, XLSX, and ZIP containers they arrive in.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter  rune            // default ','
	HasHeader  bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh   chan<- []string // optional: receives the header row
	Comment    rune            // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

func (o CSVOptions) newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	if o.Delimiter != 0 {
		reader.Comma = o.Delimiter
	}
	if o.Comment != 0 {
		reader.Comment = o.Comment
	}
	reader.LazyQuotes = o.LazyQuotes
	reader.FieldsPerRecord = -1 // tabulation exports pad rows unevenly
	return reader
}

// StreamCSV parses rows off r onto the returned channel. The caller must
// drain the row channel; at most one error arrives on the error channel,
// and both close when parsing stops.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	emit := func(ch chan<- []string, row []string) bool {
		select {
		case ch <- row:
			return true
		case <-ctx.Done():
			errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
			return false
		}
	}

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := opts.newReader(r)
		header := opts.HasHeader
		for {
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

			if header {
				header = false
				if opts.HeaderCh != nil && !emit(opts.HeaderCh, record) {
					return
				}
				continue
			}
			if !emit(rowCh, record) {
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadAllCSV collects every data row from StreamCSV into a slice. Small
// reference files (community rosters, vacancy code maps) do not need the
// streaming form.
func ReadAllCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	rowCh, errCh := StreamCSV(ctx, r, opts)

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
