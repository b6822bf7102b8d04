package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "schema error inside phase error",
			err:         &PhaseError{Phase: PhaseRead, Err: &SchemaError{File: "a.xlsx", Missing: []string{"SSCC"}}},
			wantCode:    "SCH001",
			wantMessage: "A batch file is missing required columns",
		},
		{
			name:        "corrupt state",
			err:         &CorruptStateError{PalletID: "X1", Reason: "missing prefix"},
			wantCode:    "STA001",
			wantMessage: "Stored pallet data does not match the expected format",
		},
		{
			name:        "sequence exhausted",
			err:         fmt.Errorf("allocate: %w", ErrSequenceExhausted),
			wantCode:    "STA002",
			wantMessage: "No pallet ids remain for the configured width",
		},
		{
			name:        "store unavailable",
			err:         &StoreUnavailableError{Op: "ping", Err: errors.New("eof")},
			wantCode:    "DB004",
			wantMessage: "Unable to reach the database",
		},
		{
			name:        "connection refused text",
			err:         errors.New("dial tcp 127.0.0.1:5432: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to reach the database",
		},
		{
			name:        "connection reset",
			err:         errors.New("read: connection reset by peer"),
			wantCode:    "DB005",
			wantMessage: "Database connection was interrupted",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "import in progress",
			err:         ErrImportInProgress,
			wantCode:    "IMP001",
			wantMessage: "Another import is still running",
		},
		{
			name:        "unreadable folder",
			err:         errors.New("read folder excel_data: open excel_data: no such file or directory"),
			wantCode:    "IMP002",
			wantMessage: "The batch folder cannot be read",
		},
		{
			name:        "pallet not found",
			err:         ErrPalletNotFound,
			wantCode:    "IMP003",
			wantMessage: "No pallet with this id",
		},
		{
			name:        "unknown error",
			err:         errors.New("something odd"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapError_TypedBeforePatterns(t *testing.T) {
	// The wrapped text mentions a timeout, but the type decides.
	err := &StoreUnavailableError{Op: "connect", Err: errors.New("i/o timeout")}
	if got := MapError(err).Code; got != "DB004" {
		t.Errorf("Code = %q, want DB004", got)
	}
}

func TestFormatUserError(t *testing.T) {
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}

	got := FormatUserError(ErrImportInProgress)
	want := "Another import is still running (Code: IMP001). Wait for the running import to complete"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("mystery")) {
		t.Error("IsUserFacing(unknown) = true")
	}
	if !IsUserFacing(&SchemaError{File: "a.csv", Missing: []string{"no"}}) {
		t.Error("IsUserFacing(schema) = false")
	}
}

func TestErrorsNameTheOffender(t *testing.T) {
	err := &PhaseError{
		Phase: PhaseRead,
		Err:   &SchemaError{File: "batch-03.xlsx", Missing: []string{"SSCC", "country_code"}},
	}
	msg := err.Error()
	for _, want := range []string{"read", "batch-03.xlsx", "SSCC, country_code"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should contain %q", msg, want)
		}
	}
	if FailedPhase(err) != PhaseRead {
		t.Errorf("FailedPhase() = %q, want %q", FailedPhase(err), PhaseRead)
	}
	if FailedPhase(errors.New("x")) != "" {
		t.Error("FailedPhase() of a plain error should be empty")
	}

	corrupt := &CorruptStateError{PalletID: "PALLETX", SSCC: "0034", Reason: "missing sequence number"}
	if !strings.Contains(corrupt.Error(), "PALLETX") || !strings.Contains(corrupt.Error(), "0034") {
		t.Errorf("CorruptStateError should name pallet and parcel: %v", corrupt)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(&PhaseError{Phase: PhaseWrite, Err: &StoreUnavailableError{Op: "insert", Err: errors.New("eof")}}) {
		t.Error("store outage should be retryable")
	}
	if IsRetryable(&PhaseError{Phase: PhaseRead, Err: &SchemaError{File: "a"}}) {
		t.Error("schema error should not be retryable")
	}
}
