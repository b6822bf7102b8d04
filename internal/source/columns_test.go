package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/palletload/internal/core"
)

func TestDefaultColumnMap_Resolve(t *testing.T) {
	tests := []struct {
		name        string
		header      []string
		wantMissing []string
		wantIdx     FieldIndex
	}{
		{
			name:    "external headers",
			header:  []string{"No.", "SSCC / Parcel ID", "Country Code"},
			wantIdx: FieldIndex{core.FieldNo: 0, core.FieldSSCC: 1, core.FieldCountryCode: 2},
		},
		{
			name:    "canonical headers any case",
			header:  []string{"country_code", "sscc", "NO"},
			wantIdx: FieldIndex{core.FieldNo: 2, core.FieldSSCC: 1, core.FieldCountryCode: 0},
		},
		{
			name:    "extra columns and spacing",
			header:  []string{"Weight", "  SSCC  /  Parcel ID ", "No.", "Country Code", "Notes"},
			wantIdx: FieldIndex{core.FieldNo: 2, core.FieldSSCC: 1, core.FieldCountryCode: 3},
		},
		{
			name:        "missing two",
			header:      []string{"No.", "Parcel"},
			wantMissing: []string{core.FieldSSCC, core.FieldCountryCode},
		},
	}

	m := DefaultColumnMap()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, missing := m.Resolve(tt.header)
			if len(missing) != len(tt.wantMissing) {
				t.Fatalf("missing = %v, want %v", missing, tt.wantMissing)
			}
			for i := range missing {
				if missing[i] != tt.wantMissing[i] {
					t.Errorf("missing[%d] = %q, want %q", i, missing[i], tt.wantMissing[i])
				}
			}
			for field, pos := range tt.wantIdx {
				if idx[field] != pos {
					t.Errorf("idx[%s] = %d, want %d", field, idx[field], pos)
				}
			}
		})
	}
}

func TestResolve_FirstHeaderWins(t *testing.T) {
	m := DefaultColumnMap()
	idx, missing := m.Resolve([]string{"SSCC", "No.", "SSCC / Parcel ID", "Country Code"})
	if len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}
	if idx[core.FieldSSCC] != 0 {
		t.Errorf("idx[SSCC] = %d, want 0", idx[core.FieldSSCC])
	}
}

func TestLoadColumnMap_EmptyPath(t *testing.T) {
	m, err := LoadColumnMap("")
	if err != nil {
		t.Fatalf("LoadColumnMap() error = %v", err)
	}
	if len(m) != len(DefaultColumnMap()) {
		t.Errorf("len = %d, want defaults", len(m))
	}
}

func TestLoadColumnMap_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cols.yaml")
	if err := os.WriteFile(path, []byte("columns:\n  weight: [Weight]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadColumnMap(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadColumnMap_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cols.yaml")
	if err := os.WriteFile(path, []byte("columns: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadColumnMap(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestHeaders(t *testing.T) {
	m := DefaultColumnMap()
	m.Add(core.FieldSSCC, "Parcel Code")
	got := m.Headers(core.FieldSSCC)
	want := []string{"parcel code", "sscc", "sscc / parcel id"}
	if len(got) != len(want) {
		t.Fatalf("Headers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Headers[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
