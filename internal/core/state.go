package core

// state.go rebuilds allocation state from the persisted parcels at the start
// of every run. Nothing here is ever written back: open-pallet counts and the
// sequence counter are always rederived from store ground truth, so a crashed
// or partial run cannot leave drifted counters behind.

import (
	"fmt"
	"sort"
)

// PalletSlot is a pallet with spare capacity and its running parcel count.
type PalletSlot struct {
	PalletID string
	Count    int
}

// AllocatorState is the working state of one import run.
// It is created by LoadState, mutated by Assign, and discarded afterwards.
type AllocatorState struct {
	format  PalletFormat
	known   map[string]struct{}
	nextSeq int64

	// countries maps a country code to its fill list. Full pallets stay in the
	// list; the first-fit scan skips them by count.
	countries map[string][]*PalletSlot

	touched    []string
	touchedSet map[string]struct{}
	minted     []string

	overCapacity []string
}

// NewAllocatorState returns an empty state, as loaded from an empty store.
func NewAllocatorState(format PalletFormat) (*AllocatorState, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &AllocatorState{
		format:     format,
		known:      make(map[string]struct{}),
		nextSeq:    1,
		countries:  make(map[string][]*PalletSlot),
		touchedSet: make(map[string]struct{}),
	}, nil
}

// palletTally accumulates what the existing rows say about one pallet.
type palletTally struct {
	id      string
	country string
	count   int
}

// LoadState derives the known key set, the next pallet sequence number and
// the per-country list of pallets below capacity from the persisted parcels.
//
// Returns a *CorruptStateError if a pallet id does not match the format or a
// pallet holds parcels of more than one country.
func LoadState(rows []ParcelRow, format PalletFormat) (*AllocatorState, error) {
	st, err := NewAllocatorState(format)
	if err != nil {
		return nil, err
	}

	tallies := make(map[string]*palletTally)
	var maxSeq int64

	for _, row := range rows {
		st.known[row.SSCC] = struct{}{}

		t, ok := tallies[row.PalletID]
		if !ok {
			seq, err := format.ParseID(row.PalletID)
			if err != nil {
				return nil, &CorruptStateError{
					PalletID: row.PalletID,
					SSCC:     row.SSCC,
					Reason:   err.Error(),
				}
			}
			if seq > maxSeq {
				maxSeq = seq
			}
			t = &palletTally{id: row.PalletID, country: row.CountryCode}
			tallies[row.PalletID] = t
		}

		if t.country != row.CountryCode {
			return nil, &CorruptStateError{
				PalletID: row.PalletID,
				SSCC:     row.SSCC,
				Reason:   fmt.Sprintf("holds parcels for countries %q and %q", t.country, row.CountryCode),
			}
		}
		t.count++
	}

	st.nextSeq = maxSeq + 1

	open := make([]*palletTally, 0, len(tallies))
	for _, t := range tallies {
		switch {
		case t.count < format.Capacity:
			open = append(open, t)
		case t.count > format.Capacity:
			st.overCapacity = append(st.overCapacity, t.id)
		}
	}

	// Fullest pallets first so partly loaded pallets are closed out before
	// emptier ones; ties broken by id for a stable order across runs.
	sort.Slice(open, func(i, j int) bool {
		if open[i].count != open[j].count {
			return open[i].count > open[j].count
		}
		return open[i].id < open[j].id
	})
	for _, t := range open {
		st.countries[t.country] = append(st.countries[t.country], &PalletSlot{
			PalletID: t.id,
			Count:    t.count,
		})
	}
	sort.Strings(st.overCapacity)

	return st, nil
}

// Format returns the pallet format the state was loaded with.
func (s *AllocatorState) Format() PalletFormat {
	return s.format
}

// Known reports whether a parcel key is already persisted or assigned.
func (s *AllocatorState) Known(sscc string) bool {
	_, ok := s.known[sscc]
	return ok
}

// KnownCount returns the number of keys in the known set.
func (s *AllocatorState) KnownCount() int {
	return len(s.known)
}

// NextSequence returns the sequence number the next minted pallet will get.
func (s *AllocatorState) NextSequence() int64 {
	return s.nextSeq
}

// OpenPallets returns a copy of a country's fill list, including pallets
// that filled up during this run.
func (s *AllocatorState) OpenPallets(country string) []PalletSlot {
	slots := s.countries[country]
	out := make([]PalletSlot, len(slots))
	for i, slot := range slots {
		out[i] = *slot
	}
	return out
}

// Countries returns every country with a fill list, sorted.
func (s *AllocatorState) Countries() []string {
	out := make([]string, 0, len(s.countries))
	for c := range s.countries {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// OverCapacity returns persisted pallets already holding more parcels than
// the capacity allows. They are never filled further.
func (s *AllocatorState) OverCapacity() []string {
	return s.overCapacity
}

// Touched returns every pallet assigned to during this run, in first-use order.
func (s *AllocatorState) Touched() []string {
	return s.touched
}

// Minted returns the pallet ids issued during this run, in issue order.
func (s *AllocatorState) Minted() []string {
	return s.minted
}
