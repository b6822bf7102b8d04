package source

// columns.go maps external spreadsheet headers to canonical field names.
//
// The mapping is explicit: every accepted header spelling is listed against
// the canonical field it feeds. Headers are compared after CleanHeader, so
// case, surrounding quotes and repeated spaces do not matter.

import (
	"fmt"
	"os"
	"sort"

	"github.com/JonMunkholm/palletload/internal/core"
	"gopkg.in/yaml.v3"
)

// ColumnMap maps a cleaned external header to a canonical field name.
type ColumnMap map[string]string

// DefaultColumnMap returns the standard header mapping:
//
//	"No."              -> no
//	"SSCC / Parcel ID" -> SSCC
//	"Country Code"     -> country_code
//
// The canonical names themselves are accepted as headers too.
func DefaultColumnMap() ColumnMap {
	m := ColumnMap{}
	m.Add(core.FieldNo, "No.", core.FieldNo)
	m.Add(core.FieldSSCC, "SSCC / Parcel ID", core.FieldSSCC)
	m.Add(core.FieldCountryCode, "Country Code", core.FieldCountryCode)
	return m
}

// Add registers header aliases for a canonical field.
func (m ColumnMap) Add(field string, headers ...string) {
	for _, h := range headers {
		m[CleanHeader(h)] = field
	}
}

// columnMapFile is the YAML layout of a column map file:
//
//	columns:
//	  SSCC: ["Parcel ID", "SSCC Code"]
//	  country_code: ["Destination"]
type columnMapFile struct {
	Columns map[string][]string `yaml:"columns"`
}

// LoadColumnMap reads extra header aliases from a YAML file and merges them
// over the defaults. Only canonical field names are accepted as keys.
func LoadColumnMap(path string) (ColumnMap, error) {
	m := DefaultColumnMap()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column map %s: %w", path, err)
	}

	var file columnMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse column map %s: %w", path, err)
	}

	for field, headers := range file.Columns {
		if !isCanonical(field) {
			return nil, fmt.Errorf("column map %s: unknown field %q (want one of %v)", path, field, core.RequiredFields)
		}
		m.Add(field, headers...)
	}
	return m, nil
}

func isCanonical(field string) bool {
	for _, f := range core.RequiredFields {
		if f == field {
			return true
		}
	}
	return false
}

// FieldIndex maps a canonical field name to its column position.
type FieldIndex map[string]int

// Resolve maps a header row to canonical field positions.
// missing lists every required field with no matching header, in the order
// of core.RequiredFields. When two headers map to the same field the first
// one wins.
func (m ColumnMap) Resolve(header []string) (idx FieldIndex, missing []string) {
	idx = make(FieldIndex, len(core.RequiredFields))
	for i, h := range header {
		field, ok := m[CleanHeader(h)]
		if !ok {
			continue
		}
		if _, seen := idx[field]; !seen {
			idx[field] = i
		}
	}

	for _, f := range core.RequiredFields {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	return idx, missing
}

// Headers returns the accepted headers of a field, sorted.
func (m ColumnMap) Headers(field string) []string {
	var out []string
	for h, f := range m {
		if f == field {
			out = append(out, h)
		}
	}
	sort.Strings(out)
	return out
}
