package ephemeris

import (
	"sync"

	"bncgo/internal/prn"
)

// entry holds the latest two ephemerides for a PRN (REDESIGN FLAGS
// "owning-graph pattern" — corrections and filter parameters reference
// the PRN, never a pointer into this store, so there is no dangling
// reference when a slot rotates).
type entry struct {
	last, prev Eph
}

// Store is the single owner of every tracked ephemeris, read-mostly
// and guarded by a reader-biased lock (spec §5 "Shared resources").
// Writers replace the (last, prev) pair per PRN under exclusive hold;
// readers see either the previous or the next full ephemeris, never a
// torn read.
type Store struct {
	mu   sync.RWMutex
	byID map[prn.Prn]*entry
}

// NewStore returns an empty ephemeris store.
func NewStore() *Store {
	return &Store{byID: make(map[prn.Prn]*entry)}
}

// Put installs eph as the latest ephemeris for its PRN, demoting the
// previous latest to "prev".
func (s *Store) Put(eph Eph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := eph.PRN()
	e, ok := s.byID[id]
	if !ok {
		e = &entry{}
		s.byID[id] = e
	}
	e.prev = e.last
	e.last = eph
}

// Latest returns the most recently installed ephemeris for id, or nil.
func (s *Store) Latest(id prn.Prn) Eph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	return e.last
}

// ByIOD returns whichever of the last two ephemerides for id has the
// given IOD, or nil if neither matches (spec §4.E "missing ephemeris").
func (s *Store) ByIOD(id prn.Prn, iod int) Eph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	if e.last != nil && e.last.IOD() == iod {
		return e.last
	}
	if e.prev != nil && e.prev.IOD() == iod {
		return e.prev
	}
	return nil
}

// Previous returns the ephemeris demoted by the most recent Put, or
// nil. Used by the correction re-anchoring logic of §4.E to compute
// the old-ephemeris position at a rollover.
func (s *Store) Previous(id prn.Prn) Eph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil
	}
	return e.prev
}
