package core

import (
	"context"
	"fmt"
)

// DefaultBatchSize is the number of parcel rows sent to the store per call.
const DefaultBatchSize = 1000

// WriteResult contains the row counts of a write phase.
type WriteResult struct {
	Inserted  int // Parcel rows inserted (conflicts excluded)
	Created   int // Pallet status rows created
	Recounted int // Pallet rows whose quantity was rewritten
}

// Writer persists assignments in three idempotent steps:
//
//  1. Insert parcels keyed on SSCC, ignoring conflicts (existing row wins).
//  2. Insert a default status row for every touched pallet, ignoring conflicts.
//  3. Recompute every pallet quantity from the parcel rows.
//
// Step 3 is a full recomputation rather than an increment, so quantities are
// correct even if an earlier run died between steps.
type Writer struct {
	store     Store
	batchSize int
}

// NewWriter creates a writer over the store.
func NewWriter(store Store, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{store: store, batchSize: batchSize}
}

// Write runs the three write steps in order. The error is a *PhaseError
// naming the step that failed; rows committed before it stay valid.
func (w *Writer) Write(ctx context.Context, assignments []Assignment, touched []string) (WriteResult, error) {
	var res WriteResult

	for start := 0; start < len(assignments); start += w.batchSize {
		end := min(start+w.batchSize, len(assignments))
		n, err := w.store.InsertParcels(ctx, assignments[start:end])
		if err != nil {
			return res, &PhaseError{
				Phase: PhaseWrite,
				Err:   fmt.Errorf("rows %d-%d (first SSCC %q): %w", start+1, end, assignments[start].SSCC, err),
			}
		}
		res.Inserted += n
	}

	if len(touched) > 0 {
		n, err := w.store.EnsurePallets(ctx, touched)
		if err != nil {
			return res, &PhaseError{Phase: PhasePallets, Err: err}
		}
		res.Created = n
	}

	n, err := w.store.RecountQuantities(ctx)
	if err != nil {
		return res, &PhaseError{Phase: PhaseRecount, Err: err}
	}
	res.Recounted = n

	return res, nil
}
