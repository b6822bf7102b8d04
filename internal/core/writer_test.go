package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func assignments(n int, pallet string) []Assignment {
	out := make([]Assignment, n)
	for i := range out {
		out[i] = Assignment{
			Candidate: Candidate{SSCC: fmt.Sprintf("s%04d", i), CountryCode: "US"},
			PalletID:  pallet,
		}
	}
	return out
}

func TestWriter_BatchesAndRecounts(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store, 4)

	res, err := w.Write(context.Background(), assignments(10, "P00001"), []string{"P00001"})
	require.NoError(t, err)
	require.Equal(t, WriteResult{Inserted: 10, Created: 1, Recounted: 1}, res)

	require.Len(t, store.insertCalls, 3)
	require.Len(t, store.insertCalls[0], 4)
	require.Len(t, store.insertCalls[2], 2)
	require.Equal(t, map[string]string{"P00001": "10"}, store.quantities())
}

func TestWriter_SecondWriteIsNoop(t *testing.T) {
	store := newMemStore()
	w := NewWriter(store, 0)
	ctx := context.Background()
	rows := assignments(3, "P00001")

	_, err := w.Write(ctx, rows, []string{"P00001"})
	require.NoError(t, err)
	before := store.quantities()

	res, err := w.Write(ctx, rows, []string{"P00001"})
	require.NoError(t, err)
	require.Zero(t, res.Inserted)
	require.Zero(t, res.Created)
	require.Equal(t, before, store.quantities())
}

func TestWriter_NothingTouchedStillRecounts(t *testing.T) {
	store := newMemStore()
	res, err := NewWriter(store, 10).Write(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Equal(t, WriteResult{}, res)
}

func TestWriter_PhaseErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("insert", func(t *testing.T) {
		store := newMemStore()
		store.failInsertAt, store.insertErr = 2, boom

		res, err := NewWriter(store, 2).Write(context.Background(), assignments(5, "P00001"), []string{"P00001"})
		require.ErrorIs(t, err, boom)
		require.Equal(t, PhaseWrite, FailedPhase(err))
		require.Contains(t, err.Error(), "rows 3-4")
		require.Contains(t, err.Error(), `"s0002"`)
		require.Equal(t, 2, res.Inserted) // first batch committed
	})

	t.Run("ensure", func(t *testing.T) {
		store := newMemStore()
		store.failEnsure = boom

		_, err := NewWriter(store, 2).Write(context.Background(), assignments(1, "P00001"), []string{"P00001"})
		require.ErrorIs(t, err, boom)
		require.Equal(t, PhasePallets, FailedPhase(err))
	})

	t.Run("recount", func(t *testing.T) {
		store := newMemStore()
		store.failRecount = boom

		_, err := NewWriter(store, 2).Write(context.Background(), assignments(1, "P00001"), []string{"P00001"})
		require.ErrorIs(t, err, boom)
		require.Equal(t, PhaseRecount, FailedPhase(err))
	})
}

func TestWriter_RecoversAfterPartialRun(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failEnsure = errors.New("connection reset")

	rows := assignments(5, "P00001")
	_, err := NewWriter(store, 10).Write(ctx, rows, []string{"P00001"})
	require.Error(t, err)

	// Re-run from scratch: nothing new to insert, quantities still correct.
	store.failEnsure = nil
	res, err := NewWriter(store, 10).Write(ctx, rows, []string{"P00001"})
	require.NoError(t, err)
	require.Zero(t, res.Inserted)
	require.Equal(t, map[string]string{"P00001": "5"}, store.quantities())
}
