package ppp

import (
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/physical"
	"bncgo/internal/prn"
)

// f1/f2 pairs per constellation, Hz, used for the iono-free (P3/L3)
// combination, grounded on FREQ1/FREQ2/FREQ1_GLO/... (rtklib-style
// constants the teacher carries in rtcm3.go).
var carrierFreqs = map[prn.System][2]float64{
	prn.GPS: {1575.42e6, 1227.60e6},
	prn.GAL: {1575.42e6, 1176.45e6},
	prn.BDS: {1561.098e6, 1268.52e6},
	prn.GLO: {1602.0e6, 1246.0e6}, // nominal; FDMA channel offset applied by caller
}

const speedOfLight = 299792458.0

// ionoFreeCoeffs returns the (a,b) weights for the P3 = a*P1+b*P2
// combination, grounded on the teacher's IONO-free combination in
// ppp.go (alpha = f1^2/(f1^2-f2^2), beta = -f2^2/(f1^2-f2^2)).
func ionoFreeCoeffs(sys prn.System) (a, b float64) {
	f, ok := carrierFreqs[sys]
	if !ok {
		f = carrierFreqs[prn.GPS]
	}
	f1, f2 := f[0], f[1]
	a = f1 * f1 / (f1*f1 - f2*f2)
	b = -f2 * f2 / (f1*f1 - f2*f2)
	return a, b
}

// WavelengthIfLC returns the iono-free carrier-phase combination's
// equivalent wavelength (m/cycle), grounded on ppp.go's lam_LC usage:
// the ambiguity parameter is carried in metric units by pre-scaling
// the cycle count by this wavelength before it enters the filter.
func WavelengthIfLC(sys prn.System) float64 {
	f, ok := carrierFreqs[sys]
	if !ok {
		f = carrierFreqs[prn.GPS]
	}
	f1, f2 := f[0], f[1]
	return speedOfLight / (f1 - f2)
}

// Observation is one satellite's dual-frequency code/phase pair for an
// epoch, already corrected for broadcast+SSR ephemeris/clock (component
// B/E) but not yet for the physical propagation terms this component
// adds.
type Observation struct {
	Sat       prn.Prn
	SatPos    gtime.Vec3 // ECEF, m, already SSR-corrected
	SatVel    gtime.Vec3
	SatClk    float64 // s, already SSR-corrected
	P1, P2    float64 // pseudorange, m
	L1, L2    float64 // carrier phase, cycles
	Elevation float64 // rad, computed by caller from SatPos/receiver
	Azimuth   float64 // rad
}

// Residual is one iono-free prefit observation equation's pieces:
// predicted-minus-observed value, partials w.r.t. the filter's fixed
// parameters, the ambiguity column index, and measurement variance.
type Residual struct {
	Sat        prn.Prn
	IsPhase    bool
	Value      float64            // observed - computed, m
	Partials   [numFixed]float64  // d(residual)/d(fixed state)
	AmbIdx     int                // -1 if IsPhase==false
	AmbCoeff   float64            // usually 1 or -wavelength, applied at AmbIdx
	Variance   float64
	Wavelength float64
}

// ElevationAzimuth derives topocentric elevation/azimuth of satPos as
// seen from recPos (both ECEF), grounded on the teacher's common.go
// Pos2Sph/GeoDist pair.
func ElevationAzimuth(recPos, satPos gtime.Vec3) (elev, azi float64, err error) {
	lat, lon, _, e := gtime.EcefToGeodetic(recPos)
	if e != nil {
		return 0, 0, e
	}
	d := gtime.Vec3{satPos[0] - recPos[0], satPos[1] - recPos[1], satPos[2] - recPos[2]}
	n, ee, u := gtime.EcefToTopocentric(lat, lon, d)
	horiz := math.Hypot(n, ee)
	elev = math.Atan2(u, horiz)
	azi = math.Atan2(ee, n)
	if azi < 0 {
		azi += 2 * math.Pi
	}
	return elev, azi, nil
}

// BuildResidual forms the iono-free code (P3) or phase (L3) prefit
// residual for one observation against the current filter state,
// grounded on PPPResidual (ppp.go): geometric range via the fixed-point
// direction cosines, receiver-clock and inter-system-offset partials,
// troposphere mapping via a simple 1/sin(elev) wet mapping function
// applied to state.ITrop, and (for phase) the ambiguity term.
func BuildResidual(s *State, obs Observation, isPhase bool, tropModel func(elev float64) float64) Residual {
	dx := obs.SatPos[0] - s.X[IX]
	dy := obs.SatPos[1] - s.X[IY]
	dz := obs.SatPos[2] - s.X[IZ]
	rng := math.Sqrt(dx*dx + dy*dy + dz*dz)

	var r Residual
	r.Sat = obs.Sat
	r.IsPhase = isPhase
	r.AmbIdx = -1

	// Direction cosines point FROM the receiver's current estimate
	// TOWARD the satellite; the partial of range w.r.t. receiver
	// position is the negative of that.
	r.Partials[IX] = -dx / rng
	r.Partials[IY] = -dy / rng
	r.Partials[IZ] = -dz / rng
	r.Partials[IDTR] = 1.0

	switch obs.Sat.System {
	case prn.GLO:
		r.Partials[IDTRG] = 1.0
	case prn.GAL:
		r.Partials[IDTRE] = 1.0
	case prn.BDS:
		r.Partials[IDTRC] = 1.0
	}

	// tropModel supplies the a-priori slant delay at obs.Elevation
	// (e.g. SaastamoinenDelay), added as is; the filter's ITrop parameter
	// carries the residual zenith wet delay, mapped to the slant by the
	// simple 1/sin(elev) function mf, matching UpdateTropPPP's split of
	// fixed-vs-estimated troposphere.
	mf := 1.0 / math.Max(math.Sin(obs.Elevation), 0.05)
	fixedTrop := 0.0
	if tropModel != nil {
		fixedTrop = tropModel(obs.Elevation)
	}
	tropDelay := fixedTrop + mf*s.X[ITrop]
	r.Partials[ITrop] = mf

	a, b := ionoFreeCoeffs(obs.Sat.System)
	computed := rng - speedOfLight*obs.SatClk + tropDelay

	if !isPhase {
		p3 := a*obs.P1 + b*obs.P2
		r.Value = p3 - computed
		r.Variance = systemWeightFactor(obs.Sat.System) * math.Pow(satElevationWeight(obs.Elevation), 2) * 0.09 // (0.3m)^2 base
		return r
	}

	lam := WavelengthIfLC(obs.Sat.System)
	l3 := a*obs.L1*speedOfLight/carrierFreqs[obs.Sat.System][0] + b*obs.L2*speedOfLight/carrierFreqs[obs.Sat.System][1]
	ambIdx := s.AmbiguityIndex(obs.Sat)
	r.AmbIdx = ambIdx
	r.AmbCoeff = 1.0
	r.Wavelength = lam
	r.Value = l3 - (computed + s.X[ambIdx])
	r.Variance = systemWeightFactor(obs.Sat.System) * math.Pow(satElevationWeight(obs.Elevation), 2) * 0.0009 // (3mm)^2 base
	return r
}

// ApplyPropagationCorrections subtracts the phase wind-up (cycles) at
// recPos from obs.L1 and obs.L2 before BuildResidual is called, and does
// nothing when windUp is nil. Troposphere is applied in BuildResidual via
// tropModel, recPos is used as given (any solid-earth tide displacement
// is applied upstream), and recHeight is not used.
func ApplyPropagationCorrections(obs *Observation, recHeight float64, windUp *physical.WindUp, t gtime.Time, recPos gtime.Vec3) {
	if windUp == nil {
		return
	}
	n := windUp.Value(t, obs.Sat, recPos, obs.SatPos)
	obs.L1 -= n
	obs.L2 -= n
}
