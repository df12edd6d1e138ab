// Package ppp implements the Precise Point Positioning extended Kalman
// filter (component G): state-vector prediction, the iono-free P3/L3
// measurement model, and the two-phase prefit/postfit outlier-rejection
// update. Grounded on the teacher's ppp.go (UpdatePosPPP/UpdateClkPPP/
// UpdateTropPPP/UpdateBiasPPP/PPPResidual/PPPos) and common.go's Filter,
// reused here via the shared internal/linalg core.
package ppp

import (
	"bncgo/internal/linalg"
	"bncgo/internal/prn"
)

// Fixed state layout, grounded on the teacher's NP/IC/IT index family
// (ppp.go) collapsed to the single iono-free-combination case this
// component models (opt.IonoOpt == IONOOPT_IFLC in the teacher's terms):
// position, one reference-system receiver clock, three inter-system
// offsets, and one zenith wet delay. Ambiguities are appended
// dynamically after numFixed, one per tracked (PRN) pair, since the
// active satellite set changes epoch to epoch (REDESIGN FLAGS "journaled
// update" applies to rollback, not to this index bookkeeping, which the
// teacher itself recomputes per epoch via IB()).
const (
	IX    = 0
	IY    = 1
	IZ    = 2
	IDTR  = 3 // receiver clock bias, GPS-referenced (m)
	IDTRG = 4 // GLONASS system-time offset (m)
	IDTRE = 5 // Galileo system-time offset (m)
	IDTRC = 6 // BDS system-time offset (m)
	ITrop = 7 // zenith wet delay (m)

	numFixed = 8
)

// Default a-priori variances, grounded on VAR_POS/VAR_CLK/VAR_GRA and
// the teacher's PPPVarianceErr scaling (ppp.go).
const (
	VarPos0   = 900.0    // (30 m)^2: unconstrained first fix
	VarClk0   = 1e10     // effectively unconstrained white-noise clock
	VarTrop0  = 0.15 * 0.15
	VarSysOff = 1e6 // system-time offsets start essentially free
	VarAmb0   = 900.0
)

// State is the PPP filter's state vector/covariance plus the ambiguity
// bookkeeping the spec calls out: column reshuffling as satellites are
// added/dropped, grounded on the teacher's per-satellite IB() index and
// Outc-based reset in UpdateBiasPPP.
type State struct {
	X []float64 // length N
	P []float64 // N x N, column-major (internal/linalg convention)

	ambIndex map[prn.Prn]int // PRN -> index into X/P, >= numFixed

	Time float64 // last update's GPS seconds-of-week-free epoch (monotonic)
}

// NewState returns a filter state with only the fixed parameters
// allocated (zero ambiguities).
func NewState() *State {
	n := numFixed
	return &State{
		X:        linalg.Mat(n, 1),
		P:        linalg.Mat(n, n),
		ambIndex: make(map[prn.Prn]int),
	}
}

// N is the current state dimension.
func (s *State) N() int { return len(s.X) }

// AmbiguityIndex returns the state index for sat's ambiguity parameter,
// allocating a fresh column/row (grown, not reshuffled in place — the
// teacher's fixed-size NX pads unused slots with zero/negative variance
// instead; growing here keeps the matrix small since PPP typically
// tracks under 40 satellites at once) if sat is not yet tracked.
func (s *State) AmbiguityIndex(sat prn.Prn) int {
	if idx, ok := s.ambIndex[sat]; ok {
		return idx
	}
	oldN := s.N()
	newN := oldN + 1
	newX := linalg.Mat(newN, 1)
	newP := linalg.Mat(newN, newN)
	copy(newX, s.X)
	for i := 0; i < oldN; i++ {
		for j := 0; j < oldN; j++ {
			newP[i+j*newN] = s.P[i+j*oldN]
		}
	}
	s.X = newX
	s.P = newP
	s.ambIndex[sat] = oldN
	return oldN
}

// DropAmbiguity removes sat's ambiguity parameter entirely, compacting
// the state (column/row reshuffle), grounded on the spec's "ambiguity
// bookkeeping" requirement — the teacher instead keeps a fixed-size slot
// and simply zeroes it (initx(rtk,0,0,IB(...))), which this component
// generalizes since the state here is not bounded by MAXSAT*NFREQ.
func (s *State) DropAmbiguity(sat prn.Prn) {
	idx, ok := s.ambIndex[sat]
	if !ok {
		return
	}
	oldN := s.N()
	newN := oldN - 1
	newX := linalg.Mat(newN, 1)
	newP := linalg.Mat(newN, newN)

	remap := make([]int, oldN)
	k := 0
	for i := 0; i < oldN; i++ {
		if i == idx {
			remap[i] = -1
			continue
		}
		remap[i] = k
		k++
	}
	for i := 0; i < oldN; i++ {
		if remap[i] < 0 {
			continue
		}
		newX[remap[i]] = s.X[i]
		for j := 0; j < oldN; j++ {
			if remap[j] < 0 {
				continue
			}
			newP[remap[i]+remap[j]*newN] = s.P[i+j*oldN]
		}
	}
	s.X = newX
	s.P = newP
	delete(s.ambIndex, sat)
	for sat2, i2 := range s.ambIndex {
		if i2 > idx {
			s.ambIndex[sat2] = i2 - 1
		}
	}
}

// InitParam sets X[i]=v and P[i,i]=variance, zeroing cross-covariance
// with every other parameter — grounded on the teacher's initx (ppp.go).
func (s *State) InitParam(i int, v, variance float64) {
	n := s.N()
	for j := 0; j < n; j++ {
		s.P[i+j*n] = 0
		s.P[j+i*n] = 0
	}
	s.X[i] = v
	s.P[i+i*n] = variance
}

// Snapshot copies X/P for the update loop's checkpoint/rollback sequence
// (§4.G, §9 "journaled update").
func (s *State) Snapshot() (x, p []float64) {
	return append([]float64(nil), s.X...), append([]float64(nil), s.P...)
}

// Restore replaces X/P with a previously taken Snapshot.
func (s *State) Restore(x, p []float64) {
	copy(s.X, x)
	copy(s.P, p)
}
