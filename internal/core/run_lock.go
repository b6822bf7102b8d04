package core

// run_lock.go serializes import runs within one process.
//
// Allocation state is rebuilt from the store at the start of each run and is
// not shared, so two overlapping runs could both fill the same open pallet
// past capacity or mint the same id. The lock admits one run at a time.
// Runs from separate processes are not coordinated.

import (
	"context"
	"sync"
	"time"
)

// DefaultLockWait is how long Acquire waits for a running import to finish.
const DefaultLockWait = 30 * time.Second

// RunLock is a single-slot semaphore guarding import runs.
type RunLock struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	started time.Time
}

// NewRunLock creates a lock. Acquire waits at most maxWait for the slot.
func NewRunLock(maxWait time.Duration) *RunLock {
	if maxWait <= 0 {
		maxWait = DefaultLockWait
	}
	return &RunLock{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire blocks until the slot is free, maxWait elapses, or ctx is done.
// Returns ErrImportInProgress on timeout. The caller MUST call Release.
func (l *RunLock) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.markStarted()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrImportInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *RunLock) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		l.markStarted()
		return true
	default:
		return false
	}
}

// Release frees the slot. Must be called once per successful acquire.
func (l *RunLock) Release() {
	l.mu.Lock()
	l.started = time.Time{}
	l.mu.Unlock()

	<-l.slot
}

func (l *RunLock) markStarted() {
	l.mu.Lock()
	l.started = time.Now()
	l.mu.Unlock()
}

// Running reports whether a run holds the lock and since when.
func (l *RunLock) Running() (bool, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.started.IsZero(), l.started
}

// WaitForDrain blocks until no run holds the lock or ctx is done.
// Used on shutdown so a run is not cut between write steps.
func (l *RunLock) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if running, _ := l.Running(); !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
