package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/palletload/internal/logging"
	"github.com/google/uuid"
)

// ImporterConfig holds the tunables of an Importer.
type ImporterConfig struct {
	Format    PalletFormat
	BatchSize int           // Parcel rows per insert call
	LockWait  time.Duration // How long Run waits for a concurrent run
	Metrics   Metrics       // nil disables metrics
}

// Importer runs the import pipeline:
//
//	record source -> state loader -> known-key filter -> allocator -> writer
//
// Every fatal condition aborts the run. Re-running from scratch is always
// safe because each write statement is idempotent.
type Importer struct {
	store   Store
	source  RecordSource
	format  PalletFormat
	writer  *Writer
	metrics Metrics
	lock    *RunLock
}

// RunOptions changes the behavior of a single run.
type RunOptions struct {
	// DryRun allocates and reports without writing to the store.
	DryRun bool
}

// NewImporter creates an Importer.
func NewImporter(store Store, source RecordSource, cfg ImporterConfig) (*Importer, error) {
	if store == nil {
		return nil, errors.New("importer: store is nil")
	}
	if source == nil {
		return nil, errors.New("importer: record source is nil")
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Importer{
		store:   store,
		source:  source,
		format:  cfg.Format,
		writer:  NewWriter(store, cfg.BatchSize),
		metrics: metrics,
		lock:    NewRunLock(cfg.LockWait),
	}, nil
}

// Lock exposes the run lock, e.g. to drain on shutdown.
func (im *Importer) Lock() *RunLock {
	return im.lock
}

// TryRun starts a run only if no other run is active.
// Returns ErrImportInProgress immediately otherwise.
func (im *Importer) TryRun(ctx context.Context, dir string, opts RunOptions) (*RunResult, error) {
	if !im.lock.TryAcquire() {
		return nil, ErrImportInProgress
	}
	defer im.lock.Release()
	return im.run(ctx, dir, opts)
}

// Run waits for any active run to finish, then imports every batch file in dir.
func (im *Importer) Run(ctx context.Context, dir string, opts RunOptions) (*RunResult, error) {
	if err := im.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	defer im.lock.Release()
	return im.run(ctx, dir, opts)
}

func (im *Importer) run(ctx context.Context, dir string, opts RunOptions) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{
		RunID:  uuid.NewString(),
		Dir:    dir,
		DryRun: opts.DryRun,
	}
	ctx = logging.ContextWithRunID(ctx, res.RunID)
	logger := logging.FromContext(ctx)

	logger.Info("import started", "dir", dir, "dry_run", opts.DryRun)

	fail := func(err error) (*RunResult, error) {
		res.Duration = time.Since(start)
		outcome := string(FailedPhase(err))
		if outcome == "" {
			outcome = "failed"
		}
		im.metrics.RecordRun(outcome, res.Duration.Seconds())
		logger.Error("import failed",
			"phase", outcome,
			"error", err,
			"retryable", IsRetryable(err),
		)
		return res, err
	}

	// 1. Read and dedup the batch files
	candidates, stats, err := im.source.ReadFolder(ctx, dir)
	if err != nil {
		return fail(&PhaseError{Phase: PhaseRead, Err: err})
	}
	res.Source = stats
	logger.Info("batch read",
		"files", len(stats.Files),
		"rows", stats.RowsRead,
		"candidates", len(candidates),
		"duplicates", stats.DuplicateRows,
		"blank_keys", stats.BlankKeyRows,
	)

	// 2. Rebuild allocation state from the store
	rows, err := im.store.ListParcels(ctx)
	if err != nil {
		return fail(&PhaseError{Phase: PhaseLoad, Err: err})
	}
	state, err := LoadState(rows, im.format)
	if err != nil {
		return fail(&PhaseError{Phase: PhaseLoad, Err: err})
	}
	for _, id := range state.OverCapacity() {
		logger.Warn("pallet above capacity in store", "pallet_id", id, "capacity", im.format.Capacity)
	}
	logger.Info("state loaded",
		"parcels", len(rows),
		"next_sequence", state.NextSequence(),
		"countries", len(state.Countries()),
	)

	// 3. Allocate in input order
	assignments, known, err := Allocate(state, candidates)
	if err != nil {
		return fail(&PhaseError{Phase: PhaseAllocate, Err: err})
	}
	res.AlreadyKnown = known
	res.Assigned = len(assignments)
	res.PalletsTouched = state.Touched()
	res.PalletsMinted = state.Minted()
	logger.Info("parcels allocated",
		"assigned", res.Assigned,
		"already_known", known,
		"pallets_touched", len(res.PalletsTouched),
		"pallets_minted", len(res.PalletsMinted),
	)

	if opts.DryRun {
		res.Duration = time.Since(start)
		im.metrics.RecordRun("dry_run", res.Duration.Seconds())
		logger.Info("dry run complete, nothing written", "duration_ms", res.Duration.Milliseconds())
		return res, nil
	}

	// 4. Persist
	wr, err := im.writer.Write(ctx, assignments, res.PalletsTouched)
	res.Inserted = wr.Inserted
	res.PalletsCreated = wr.Created
	res.PalletsRecounted = wr.Recounted
	if err != nil {
		return fail(err)
	}

	res.Duration = time.Since(start)
	im.metrics.RecordRun("success", res.Duration.Seconds())
	im.metrics.RecordParcels(res.Inserted, map[string]int{
		"duplicate_in_batch": stats.DuplicateRows,
		"already_known":      known,
		"blank_key":          stats.BlankKeyRows,
	})
	im.metrics.RecordPalletsMinted(len(res.PalletsMinted))
	im.metrics.SetOpenPallets(openByCountry(state))

	if res.Inserted != res.Assigned {
		// Another writer inserted some keys between load and write.
		logger.Warn("fewer parcels inserted than assigned",
			"assigned", res.Assigned,
			"inserted", res.Inserted,
		)
	}
	logger.Info("import complete",
		"inserted", res.Inserted,
		"pallets_created", res.PalletsCreated,
		"pallets_recounted", res.PalletsRecounted,
		"duration_ms", res.Duration.Milliseconds(),
	)

	return res, nil
}

// openByCountry counts the pallets per country that still have room.
func openByCountry(st *AllocatorState) map[string]int {
	out := make(map[string]int)
	for _, country := range st.Countries() {
		n := 0
		for _, slot := range st.OpenPallets(country) {
			if slot.Count < st.format.Capacity {
				n++
			}
		}
		out[country] = n
	}
	return out
}
