package source

// convert.go cleans raw spreadsheet cells before they are matched or keyed.
//
// Exported spreadsheets commonly carry artifacts that must not end up in a
// parcel key: surrounding whitespace, Excel's text-forcing formula prefix
// (="00123"), stray quotes and a UTF-8 BOM on the first header cell.

import "strings"

const bom = "\uFEFF"

// CleanCell removes common export artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
//
// The result is otherwise left as text; digits and leading zeros are kept.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// CleanHeader normalizes a header cell for case-insensitive matching.
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, bom)
	s = CleanCell(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// isEmptyRow reports whether every cell of a row is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
