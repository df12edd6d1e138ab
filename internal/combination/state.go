package combination

import (
	"bncgo/internal/linalg"
	"bncgo/internal/prn"
)

const (
	varACOffset0    = 100.0 // m^2, re-initialized every epoch (§4.H "AC-offset is epoch-specific")
	varACSatOffset0 = 1.0   // m^2, initial variance; no process noise is added across epochs
	varSatClock0    = 1e6   // m^2, re-initialized every epoch
)

// State is the combination engine's Kalman parameterization:
// {AC-offset(AC_i), AC-per-sat-offset(AC_i,prn), sat-clock(prn)},
// grounded on §4.H's filter-method state vector description.
type State struct {
	x []float64
	p []float64

	acOffset    map[string]int
	acSatOffset map[string]int // key: acName + "\x00" + prn.String()
	satClock    map[prn.Prn]int
}

// NewState returns an empty combination-engine Kalman state.
func NewState() *State {
	return &State{
		acOffset:    make(map[string]int),
		acSatOffset: make(map[string]int),
		satClock:    make(map[prn.Prn]int),
	}
}

func (s *State) n() int { return len(s.x) }

func (s *State) grow() int {
	oldN := s.n()
	newN := oldN + 1
	newX := linalg.Mat(newN, 1)
	newP := linalg.Mat(newN, newN)
	copy(newX, s.x)
	for i := 0; i < oldN; i++ {
		for j := 0; j < oldN; j++ {
			newP[i+j*newN] = s.p[i+j*oldN]
		}
	}
	s.x, s.p = newX, newP
	return oldN
}

func acSatKey(ac string, sat prn.Prn) string { return ac + "\x00" + sat.String() }

// clockObs is one analysis center's per-satellite clock observation
// (meters), the combination engine's unit of Kalman observation.
type clockObs struct {
	acName string
	sat    prn.Prn
	clkM   float64
}

// ensureParams allocates any not-yet-tracked AC-offset / AC-sat-offset /
// sat-clock parameters for the given epoch's observation rows, and
// re-initializes the epoch-specific parameters (AC-offset, sat-clock)
// per §4.H's process-noise description ("AC-offset is epoch-specific
// (reinitialized)... sat-clock is epoch-specific").
func (s *State) ensureParams(rows []clockObs) {
	for _, row := range rows {
		if _, ok := s.acOffset[row.acName]; !ok {
			idx := s.grow()
			s.acOffset[row.acName] = idx
		}
		s.initParam(s.acOffset[row.acName], 0, varACOffset0)

		key := acSatKey(row.acName, row.sat)
		if _, ok := s.acSatOffset[key]; !ok {
			idx := s.grow()
			s.acSatOffset[key] = idx
			s.initParam(idx, 0, varACSatOffset0)
		}

		if _, ok := s.satClock[row.sat]; !ok {
			idx := s.grow()
			s.satClock[row.sat] = idx
		}
		s.initParam(s.satClock[row.sat], 0, varSatClock0)
	}
}

func (s *State) initParam(i int, v, variance float64) {
	n := s.n()
	for j := 0; j < n; j++ {
		s.p[i+j*n] = 0
		s.p[j+i*n] = 0
	}
	s.x[i] = v
	s.p[i+i*n] = variance
}

func (s *State) acOffsetIndex(ac string) int       { return s.acOffset[ac] }
func (s *State) acSatOffsetIndex(ac string, sat prn.Prn) int {
	return s.acSatOffset[acSatKey(ac, sat)]
}
func (s *State) satClockIndex(sat prn.Prn) int { return s.satClock[sat] }

func (s *State) satClockIndices() []int {
	out := make([]int, 0, len(s.satClock))
	for _, i := range s.satClock {
		out = append(out, i)
	}
	return out
}

func (s *State) sumSatClock() float64 {
	sum := 0.0
	for _, i := range s.satClock {
		sum += s.x[i]
	}
	return sum
}

func (s *State) numGPSSats() int { return len(s.gpsSats()) }

func (s *State) gpsSats() []prn.Prn {
	out := make([]prn.Prn, 0)
	for sat := range s.satClock {
		if sat.System == prn.GPS {
			out = append(out, sat)
		}
	}
	return out
}

func (s *State) acSatOffsetIndicesFor(sat prn.Prn) []int {
	out := make([]int, 0)
	for key, idx := range s.acSatOffset {
		if keySat(key) == sat.String() {
			out = append(out, idx)
		}
	}
	return out
}

func (s *State) sumAcSatOffset(sat prn.Prn) float64 {
	sum := 0.0
	for _, idx := range s.acSatOffsetIndicesFor(sat) {
		sum += s.x[idx]
	}
	return sum
}

func (s *State) resetAcSatOffset(ac string, sat prn.Prn) {
	idx, ok := s.acSatOffset[acSatKey(ac, sat)]
	if !ok {
		return
	}
	s.initParam(idx, 0, varACSatOffset0)
}

func keySat(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[i+1:]
		}
	}
	return key
}
