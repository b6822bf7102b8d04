// Package source reads parcel batch files into import candidates.
//
// A batch is every .xlsx and .csv file directly inside one folder. Files are
// read in lexicographic path order and their rows concatenated; that order
// decides which of two rows sharing an SSCC survives and, downstream, which
// pallet a parcel lands on.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/logging"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// MaxHeaderSearchRows is the maximum number of rows scanned for the header.
var MaxHeaderSearchRows = 20

// ContextCheckInterval is how often (in rows) to check for cancellation.
var ContextCheckInterval = 1000

// Options configures a Reader.
type Options struct {
	Columns     ColumnMap         // nil uses DefaultColumnMap
	CSVEncoding encoding.Encoding // nil means UTF-8
}

// Reader implements core.RecordSource over a folder of spreadsheet files.
type Reader struct {
	columns ColumnMap
	csvEnc  encoding.Encoding
}

var _ core.RecordSource = (*Reader)(nil)

// NewReader creates a Reader.
func NewReader(opts Options) *Reader {
	r := &Reader{columns: opts.Columns, csvEnc: opts.CSVEncoding}
	if r.columns == nil {
		r.columns = DefaultColumnMap()
	}
	if r.csvEnc == nil {
		r.csvEnc = unicode.UTF8
	}
	return r
}

// ListBatchFiles returns the spreadsheet files directly inside dir, sorted by
// full path. Hidden files and Office lock files (~$name.xlsx) are skipped.
func ListBatchFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".xlsx", ".csv":
			files = append(files, filepath.Join(dir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

// ReadFolder reads every batch file in dir and returns the candidates in
// file-then-row order with repeated SSCCs removed (first occurrence kept).
//
// Returns a *core.SchemaError if a file lacks a required column. Nothing is
// returned for the batch in that case, so no partial batch reaches the store.
func (r *Reader) ReadFolder(ctx context.Context, dir string) ([]core.Candidate, core.SourceStats, error) {
	logger := logging.FromContext(ctx)
	var stats core.SourceStats

	files, err := ListBatchFiles(dir)
	if err != nil {
		return nil, stats, err
	}
	stats.Files = files

	seen := make(map[string]struct{})
	var out []core.Candidate

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		rows, err := r.readFile(path)
		if err != nil {
			return nil, stats, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}

		candidates, fs, err := r.parseRows(ctx, path, rows)
		if err != nil {
			return nil, stats, err
		}
		stats.RowsRead += fs.RowsRead
		stats.BlankKeyRows += fs.BlankKeyRows

		for _, c := range candidates {
			if _, dup := seen[c.SSCC]; dup {
				stats.DuplicateRows++
				logger.Debug("duplicate SSCC in batch dropped",
					"sscc", c.SSCC,
					"file", filepath.Base(c.File),
					"line", c.Line,
				)
				continue
			}
			seen[c.SSCC] = struct{}{}
			out = append(out, c)
		}

		logger.Debug("batch file read",
			"file", filepath.Base(path),
			"rows", fs.RowsRead,
			"blank_keys", fs.BlankKeyRows,
		)
	}

	return out, stats, nil
}

func (r *Reader) readFile(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		return readCSV(path, r.csvEnc)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

// parseRows locates the header, checks the required columns and converts
// the data rows into candidates.
func (r *Reader) parseRows(ctx context.Context, path string, rows [][]string) ([]core.Candidate, core.SourceStats, error) {
	var stats core.SourceStats

	headerRow, idx, missing := r.findHeader(rows)
	if len(missing) > 0 {
		return nil, stats, &core.SchemaError{File: filepath.Base(path), Missing: missing}
	}

	var out []core.Candidate
	for i := headerRow + 1; i < len(rows); i++ {
		if (i-headerRow)%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		stats.RowsRead++

		c := core.Candidate{
			No:          cell(row, idx[core.FieldNo]),
			SSCC:        cell(row, idx[core.FieldSSCC]),
			CountryCode: cell(row, idx[core.FieldCountryCode]),
			File:        path,
			Line:        i + 1,
		}
		if c.SSCC == "" {
			stats.BlankKeyRows++
			logging.FromContext(ctx).Debug("row without SSCC skipped",
				"file", filepath.Base(path),
				"line", c.Line,
			)
			continue
		}
		out = append(out, c)
	}

	return out, stats, nil
}

// findHeader returns the first row within MaxHeaderSearchRows that maps
// every required field. If none does, the row missing the fewest fields is
// returned with its missing list, so the error names what is absent.
func (r *Reader) findHeader(rows [][]string) (int, FieldIndex, []string) {
	limit := min(MaxHeaderSearchRows, len(rows))

	best := -1
	var bestIdx FieldIndex
	bestMissing := core.RequiredFields

	for i := 0; i < limit; i++ {
		if isEmptyRow(rows[i]) {
			continue
		}
		idx, missing := r.columns.Resolve(rows[i])
		if len(missing) == 0 {
			return i, idx, nil
		}
		if best < 0 || len(missing) < len(bestMissing) {
			best, bestIdx, bestMissing = i, idx, missing
		}
	}

	return best, bestIdx, append([]string(nil), bestMissing...)
}

func cell(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}
