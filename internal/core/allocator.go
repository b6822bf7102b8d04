package core

// allocator.go is the streaming first-fit bin packer.
//
// Records are consumed one at a time in input order. Input order therefore
// decides pallet membership: the same new parcels presented in a different
// order can land on different pallets. Already-persisted parcels are never
// moved, so this only affects parcels that are new in the run.

// Assign places one candidate on a pallet of its country.
//
// Returns ok=false without touching any pallet if the candidate's key is
// already known (persisted earlier or assigned earlier in this run).
func (s *AllocatorState) Assign(c Candidate) (Assignment, bool, error) {
	if s.Known(c.SSCC) {
		return Assignment{}, false, nil
	}

	slots := s.countries[c.CountryCode]
	for _, slot := range slots {
		if slot.Count < s.format.Capacity {
			slot.Count++
			s.markAssigned(c.SSCC, slot.PalletID)
			return Assignment{Candidate: c, PalletID: slot.PalletID}, true, nil
		}
	}

	id, err := s.mint()
	if err != nil {
		return Assignment{}, false, err
	}
	s.countries[c.CountryCode] = append(slots, &PalletSlot{PalletID: id, Count: 1})
	s.markAssigned(c.SSCC, id)

	return Assignment{Candidate: c, PalletID: id, Minted: true}, true, nil
}

// mint issues the next pallet id and advances the sequence counter.
func (s *AllocatorState) mint() (string, error) {
	id, err := s.format.FormatID(s.nextSeq)
	if err != nil {
		return "", err
	}
	s.nextSeq++
	s.minted = append(s.minted, id)
	return id, nil
}

func (s *AllocatorState) markAssigned(sscc, palletID string) {
	s.known[sscc] = struct{}{}
	if _, ok := s.touchedSet[palletID]; !ok {
		s.touchedSet[palletID] = struct{}{}
		s.touched = append(s.touched, palletID)
	}
}

// Allocate assigns every candidate in order and returns the assignments.
// skipped counts candidates dropped because their key was already known.
// An empty candidate sequence mints nothing.
func Allocate(st *AllocatorState, candidates []Candidate) (assigned []Assignment, skipped int, err error) {
	assigned = make([]Assignment, 0, len(candidates))
	for _, c := range candidates {
		a, ok, err := st.Assign(c)
		if err != nil {
			return nil, skipped, err
		}
		if !ok {
			skipped++
			continue
		}
		assigned = append(assigned, a)
	}
	return assigned, skipped, nil
}
