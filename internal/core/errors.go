package core

// errors.go defines the typed errors of an import run.
//
// Every fatal condition aborts the whole run; the recovery strategy is to
// re-run from scratch, which is safe because all writes are idempotent.
// Conflicts on insert are not errors and never surface here.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrImportInProgress is returned when a run is requested while another run
// in the same process has not finished.
var ErrImportInProgress = errors.New("import already in progress")

// ErrPalletNotFound is returned by Store.GetPallet for an unknown id.
var ErrPalletNotFound = errors.New("pallet not found")

// ErrSequenceExhausted is returned when the next pallet sequence number no
// longer fits the configured zero-padded width.
var ErrSequenceExhausted = errors.New("pallet sequence exhausted")

// SchemaError reports canonical columns missing from a batch file after
// header mapping. All missing columns are listed, not only the first.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: missing required columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// CorruptStateError reports persisted data that cannot be reconciled with
// the pallet id format or the single-country partition rule.
type CorruptStateError struct {
	PalletID string
	SSCC     string // A parcel referencing the pallet, for locating the row
	Reason   string
}

func (e *CorruptStateError) Error() string {
	if e.SSCC != "" {
		return fmt.Sprintf("corrupt state: pallet %q (parcel %q): %s", e.PalletID, e.SSCC, e.Reason)
	}
	return fmt.Sprintf("corrupt state: pallet %q: %s", e.PalletID, e.Reason)
}

// StoreUnavailableError wraps a connection or transport failure.
// Retrying the whole run is safe.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// PhaseError attaches the failing run phase to an error.
type PhaseError struct {
	Phase RunPhase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// FailedPhase returns the phase an error was raised in, or "" if unknown.
func FailedPhase(err error) RunPhase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// IsRetryable reports whether re-running the import may succeed without
// changing the input, i.e. the failure was the store's and not the data's.
func IsRetryable(err error) bool {
	var su *StoreUnavailableError
	return errors.As(err, &su)
}
