package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXExtractor reads the first sheet of a spreadsheet. Cell values are read
// in evaluated form; blank header cells get positional col_<n> names and
// duplicate headers are disambiguated with a numeric suffix.
type XLSXExtractor struct {
	Path string
}

func (e *XLSXExtractor) Rows(ctx context.Context) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(e.Path)
		if err != nil {
			errCh <- eris.Wrapf(err, "xlsx: open %s", e.Path)
			return
		}
		if len(f.Sheets) == 0 {
			return
		}
		sheet := f.Sheets[0]

		var header []string
		for _, r := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}

			cells := make([]string, len(r.Cells))
			for j, cell := range r.Cells {
				cells[j] = cell.String()
			}

			if header == nil {
				header = uniquifyHeader(cells)
				continue
			}

			select {
			case rowCh <- rowFromCells(header, cells):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "xlsx: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
