package source

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the rows of the first worksheet of a workbook.
//
// Cells come back as their displayed text, so an SSCC stored as a number with
// a zero-padded format keeps its leading zeros and is never reparsed.
func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
