package core

import (
	"context"
	"time"
)

// Canonical field names produced by the record source after header mapping.
const (
	FieldNo          = "no"
	FieldSSCC        = "SSCC"
	FieldCountryCode = "country_code"
)

// RequiredFields lists the canonical columns every batch file must provide.
var RequiredFields = []string{FieldNo, FieldSSCC, FieldCountryCode}

// DefaultConsoleStatus is the status given to a pallet row on first insert.
const DefaultConsoleStatus = "IN CONSOLE"

// Candidate is an incoming parcel record read from a batch file.
type Candidate struct {
	No          string // Row number as written in the spreadsheet ("No." column)
	SSCC        string // Opaque parcel key, never numerically coerced
	CountryCode string
	File        string // Source file the row came from
	Line        int    // 1-indexed row number within File
}

// ParcelRow is a persisted parcel as read back from the store.
type ParcelRow struct {
	SSCC        string
	PalletID    string
	CountryCode string
}

// Assignment is a candidate annotated with its resolved pallet.
type Assignment struct {
	Candidate
	PalletID string
	Minted   bool // True if PalletID was issued for this record
}

// PalletStatus is a row of the pallet status table.
type PalletStatus struct {
	PalletID      string `json:"palletId"`
	ConsoleStatus string `json:"consoleStatus"`
	Quantity      int    `json:"quantity"`
	CountryCode   string `json:"countryCode,omitempty"` // Derived from member parcels
}

// PalletFilter narrows a pallet listing.
type PalletFilter struct {
	CountryCode string // Empty matches every country
	OpenOnly    bool   // Only pallets below capacity
	Capacity    int    // Required when OpenOnly is set
}

// Store is the persistence boundary for parcels and pallet status rows.
//
// Inserts follow an insert-if-absent contract: a row whose key already exists
// is left untouched and is not reported as an error. Implementations lacking
// native upsert must guard the insert with an existence check inside the same
// transaction.
type Store interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// InitSchema creates the parcel and pallet status tables when absent.
	InitSchema(ctx context.Context) error

	// ListParcels returns every persisted parcel.
	ListParcels(ctx context.Context) ([]ParcelRow, error)

	// InsertParcels inserts the assignments keyed on SSCC, ignoring conflicts.
	// Returns the number of rows actually inserted.
	InsertParcels(ctx context.Context, rows []Assignment) (int, error)

	// EnsurePallets inserts a default status row for each id that has none.
	// Returns the number of rows actually inserted.
	EnsurePallets(ctx context.Context, palletIDs []string) (int, error)

	// RecountQuantities overwrites every pallet's quantity with the number of
	// parcels referencing it. Returns the number of pallet rows updated.
	RecountQuantities(ctx context.Context) (int, error)

	// ListPallets returns pallet status rows matching the filter, ordered by id.
	ListPallets(ctx context.Context, filter PalletFilter) ([]PalletStatus, error)

	// GetPallet returns a single pallet status row.
	// Returns ErrPalletNotFound when no row exists.
	GetPallet(ctx context.Context, palletID string) (PalletStatus, error)

	// Close releases the store's resources.
	Close() error
}

// SourceStats describes what the record source read and discarded.
type SourceStats struct {
	Files         []string `json:"files"`
	RowsRead      int      `json:"rowsRead"`
	DuplicateRows int      `json:"duplicateRows"` // Dropped by intra-batch dedup
	BlankKeyRows  int      `json:"blankKeyRows"`  // Rows with an empty SSCC
}

// RecordSource produces the deduplicated candidate sequence for one run.
type RecordSource interface {
	ReadFolder(ctx context.Context, dir string) ([]Candidate, SourceStats, error)
}

// RunPhase names a stage of an import run.
type RunPhase string

const (
	PhaseRead     RunPhase = "read"
	PhaseLoad     RunPhase = "load_state"
	PhaseAllocate RunPhase = "allocate"
	PhaseWrite    RunPhase = "write_parcels"
	PhasePallets  RunPhase = "write_pallets"
	PhaseRecount  RunPhase = "recount"
)

// RunResult contains the outcome of an import run.
type RunResult struct {
	RunID            string        `json:"runId"`
	Dir              string        `json:"dir"`
	DryRun           bool          `json:"dryRun"`
	Source           SourceStats   `json:"source"`
	AlreadyKnown     int           `json:"alreadyKnown"` // Dropped because the store has the SSCC
	Assigned         int           `json:"assigned"`
	Inserted         int           `json:"inserted"`
	PalletsTouched   []string      `json:"palletsTouched"`
	PalletsMinted    []string      `json:"palletsMinted"`
	PalletsCreated   int           `json:"palletsCreated"`
	PalletsRecounted int           `json:"palletsRecounted"`
	Duration         time.Duration `json:"duration"`
}
