// Package extract reads tabular lead files (CSV, XLSX) into a uniform
// stream of header-keyed row mappings.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Row is one data row keyed by column header. Blank cells are empty strings.
type Row map[string]string

// Extractor streams the rows of a single file. Implementations are selected
// by file extension and are restartable: each Rows call re-reads the file.
type Extractor interface {
	// Rows sends row mappings on the returned channel. Both channels are
	// closed when extraction completes.
	Rows(ctx context.Context) (<-chan Row, <-chan error)
}

// ForPath returns the extractor for the file's extension, or nil for
// unsupported formats. Callers must treat nil as "no rows", not an error.
func ForPath(path string) Extractor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return &CSVExtractor{Path: path}
	case ".xlsx":
		return &XLSXExtractor{Path: path}
	default:
		return nil
	}
}

// uniquifyHeader cleans a raw header row: cells are trimmed, blank cells get
// a positional col_<n> name, and repeated names get an incrementing suffix
// (the first occurrence keeps the bare name).
func uniquifyHeader(cells []string) []string {
	header := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, h := range cells {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("col_%d", i+1)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 1
		}
		header[i] = h
	}
	return header
}

// rowFromCells zips header names with cell values, padding short rows with
// empty strings and dropping cells beyond the header width.
func rowFromCells(header, cells []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		if i < len(cells) {
			row[h] = cells[i]
		} else {
			row[h] = ""
		}
	}
	return row
}
