package source

import "testing"

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  S1 ", "S1"},
		{`="00123"`, "00123"},
		{"=00123", "00123"},
		{`"0034012345"`, "0034012345"},
		{"'US'", "US"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"\uFEFFNo.", "no."},
		{"SSCC  /   Parcel ID", "sscc / parcel id"},
		{` "Country Code" `, "country code"},
	}
	for _, tt := range tests {
		if got := CleanHeader(tt.in); got != tt.want {
			t.Errorf("CleanHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
