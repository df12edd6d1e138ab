package ppp

import (
	"math"

	"bncgo/internal/prn"
)

// ProcessNoise carries the random-walk/white-noise spectral densities
// driving Predict, grounded on Opt.Prn[0..5] (ppp.go PrcOpt).
type ProcessNoise struct {
	PosRandomWalk  float64 // m/sqrt(s), kinematic mode only
	TropRandomWalk float64 // m/sqrt(s)
	SysOffsetNoise float64 // m/sqrt(s), Galileo/BDS random-walk term
	AmbRandomWalk  float64 // cycles/sqrt(s), ~0
}

// DefaultProcessNoise matches the teacher's typical PPP configuration
// (kinematic troposphere + static/near-static position).
var DefaultProcessNoise = ProcessNoise{
	PosRandomWalk:  1e-4,
	TropRandomWalk: 1e-4,
	SysOffsetNoise: 0.1, // (0.1 m)^2 per the spec's Galileo/BDS random-walk note
	AmbRandomWalk:  0,
}

// Predict advances the filter by dt seconds (kinematic position random
// walk, white-noise receiver-clock reinitialization, tropospheric and
// system-offset random walk), grounded on UpdatePosPPP/UpdateClkPPP/
// UpdateTropPPP (ppp.go). haveGLO reinitializes the GLONASS offset
// every epoch per the spec's "GLONASS per-epoch reinit" rule, since
// GLONASS's FDMA inter-frequency bias does not carry information
// between epochs the way GPS/Galileo/BDS clock offsets do.
func (s *State) Predict(dt float64, pn ProcessNoise, haveGLO bool) {
	if dt < 0 {
		dt = 0
	}
	n := s.N()

	for _, i := range []int{IX, IY, IZ} {
		s.P[i+i*n] += pn.PosRandomWalk * pn.PosRandomWalk * dt
	}

	// Receiver clock is white noise: the teacher reinitializes it from
	// the point-positioning solution every epoch rather than
	// propagating it (UpdateClkPPP never adds process noise, only
	// initx()'s fresh variance). Here we simply inflate variance to
	// "unconstrained" and let the next measurement update re-pin it.
	s.InitParam(IDTR, s.X[IDTR], VarClk0)

	if haveGLO {
		s.InitParam(IDTRG, 0, VarSysOff)
	} else {
		s.P[IDTRG+IDTRG*n] += pn.SysOffsetNoise * pn.SysOffsetNoise * dt
	}
	s.P[IDTRE+IDTRE*n] += pn.SysOffsetNoise * pn.SysOffsetNoise * dt
	s.P[IDTRC+IDTRC*n] += pn.SysOffsetNoise * pn.SysOffsetNoise * dt

	if s.X[ITrop] == 0 {
		s.InitParam(ITrop, 0.1, VarTrop0)
	} else {
		s.P[ITrop+ITrop*n] += pn.TropRandomWalk * pn.TropRandomWalk * dt
	}

	for _, idx := range s.ambIndex {
		s.P[idx+idx*n] += pn.AmbRandomWalk * pn.AmbRandomWalk * dt
	}
}

// ResetOnGap drops every ambiguity and reinitializes the clock/position
// variance, grounded on the spec's 60s-gap reset trigger (the teacher's
// analogous behavior is UpdateBiasPPP's per-satellite Outc-based reset,
// generalized here to a single whole-filter reset since a 60s data gap
// invalidates the entire epoch, not just one satellite).
func (s *State) ResetOnGap() {
	for sat := range s.ambIndex {
		s.DropAmbiguity(sat)
	}
	n := s.N()
	for _, i := range []int{IX, IY, IZ} {
		s.P[i+i*n] = VarPos0
	}
	s.InitParam(IDTR, 0, VarClk0)
}

const gapResetThreshold = 60.0

// NeedsReset reports whether a gap of dt seconds since the last update
// exceeds the reset threshold (§4.G "reset trigger at 60s gap").
func NeedsReset(dt float64) bool { return dt > gapResetThreshold }

// satElevationWeight is the elevation-dependent down-weighting the
// measurement model applies, grounded on PPPVarianceErr's sinel
// division (ppp.go): low-elevation observations get inflated variance.
func satElevationWeight(elevRad float64) float64 {
	sinel := math.Sin(math.Max(elevRad, 5*math.Pi/180.0))
	return 1.0 / sinel
}

// systemWeightFactor applies the spec's GLONASS (x5) / BDS (x2)
// measurement-variance inflation, grounded on EFACT_GLO/EFACT_SBS in
// PPPVarianceErr (ppp.go), generalized to the BDS factor the spec adds.
func systemWeightFactor(sys prn.System) float64 {
	switch sys {
	case prn.GLO:
		return 5.0
	case prn.BDS:
		return 2.0
	default:
		return 1.0
	}
}
