package extract

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVExtractor reads a delimited text file. The first line is the header.
// A leading byte-order mark is tolerated and undecodable bytes are replaced
// rather than aborting the read.
type CSVExtractor struct {
	Path string
}

func (e *CSVExtractor) Rows(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(e.Path)
		if err != nil {
			errCh <- eris.Wrapf(err, "csv: open %s", e.Path)
			return
		}
		defer f.Close() //nolint:errcheck

		// BOMOverride strips a UTF-8/16 BOM when present; the UTF-8 decoder
		// substitutes invalid bytes instead of failing.
		dec := unicode.UTF8.NewDecoder()
		reader := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(dec)))
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.LazyQuotes = true

		var header []string
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
				errCh <- eris.Wrapf(err, "csv: read %s", e.Path)
				return
			}

			if header == nil {
				header = uniquifyHeader(record)
				continue
			}

			select {
			case rowCh <- rowFromCells(header, record):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
