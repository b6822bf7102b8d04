package core

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// memStore is an in-memory Store with per-method failure injection.
type memStore struct {
	mu      sync.Mutex
	parcels map[string]ParcelRow
	pallets map[string]*PalletStatus

	insertCalls [][]string // SSCCs per InsertParcels call

	failInsertAt int // 1-based call number to fail; 0 never
	failEnsure   error
	failRecount  error
	failList     error
	insertErr    error
}

func newMemStore() *memStore {
	return &memStore{
		parcels: make(map[string]ParcelRow),
		pallets: make(map[string]*PalletStatus),
	}
}

func (m *memStore) Ping(context.Context) error       { return nil }
func (m *memStore) InitSchema(context.Context) error { return nil }
func (m *memStore) Close() error                     { return nil }

func (m *memStore) ListParcels(context.Context) ([]ParcelRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	out := make([]ParcelRow, 0, len(m.parcels))
	for _, p := range m.parcels {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SSCC < out[j].SSCC })
	return out, nil
}

func (m *memStore) InsertParcels(_ context.Context, rows []Assignment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.SSCC
	}
	m.insertCalls = append(m.insertCalls, keys)
	if m.failInsertAt == len(m.insertCalls) {
		return 0, m.insertErr
	}

	n := 0
	for _, r := range rows {
		if _, ok := m.parcels[r.SSCC]; ok {
			continue
		}
		m.parcels[r.SSCC] = ParcelRow{SSCC: r.SSCC, PalletID: r.PalletID, CountryCode: r.CountryCode}
		n++
	}
	return n, nil
}

func (m *memStore) EnsurePallets(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEnsure != nil {
		return 0, m.failEnsure
	}
	n := 0
	for _, id := range ids {
		if _, ok := m.pallets[id]; ok {
			continue
		}
		m.pallets[id] = &PalletStatus{PalletID: id, ConsoleStatus: DefaultConsoleStatus}
		n++
	}
	return n, nil
}

func (m *memStore) RecountQuantities(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecount != nil {
		return 0, m.failRecount
	}
	counts := make(map[string]int)
	for _, p := range m.parcels {
		counts[p.PalletID]++
	}
	for id, n := range counts {
		if _, ok := m.pallets[id]; !ok {
			m.pallets[id] = &PalletStatus{PalletID: id, ConsoleStatus: DefaultConsoleStatus}
		}
		m.pallets[id].Quantity = n
	}
	return len(counts), nil
}

func (m *memStore) ListPallets(_ context.Context, f PalletFilter) ([]PalletStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	country := make(map[string]string)
	for _, p := range m.parcels {
		country[p.PalletID] = p.CountryCode
	}
	var out []PalletStatus
	for id, p := range m.pallets {
		ps := *p
		ps.CountryCode = country[id]
		if f.CountryCode != "" && ps.CountryCode != f.CountryCode {
			continue
		}
		if f.OpenOnly && ps.Quantity >= f.Capacity {
			continue
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PalletID < out[j].PalletID })
	return out, nil
}

func (m *memStore) GetPallet(ctx context.Context, id string) (PalletStatus, error) {
	all, _ := m.ListPallets(ctx, PalletFilter{})
	for _, p := range all {
		if p.PalletID == id {
			return p, nil
		}
	}
	return PalletStatus{}, ErrPalletNotFound
}

// quantities returns pallet id -> quantity as strings, the way the status
// table stores them.
func (m *memStore) quantities() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.pallets))
	for id, p := range m.pallets {
		out[id] = strconv.Itoa(p.Quantity)
	}
	return out
}

var _ Store = (*memStore)(nil)
