package reencoder

import (
	"math"

	"bncgo/internal/gtime"
)

// Frame names the target reference frame a corrected position is
// transformed into before re-encoding (§4.I step 4, §6 frame table).
type Frame string

const (
	FrameIGS08     Frame = "IGS08" // no-op: corrections are computed in IGS08 already
	FrameETRF2000  Frame = "ETRF2000"
	FrameNAD83     Frame = "NAD83"
	FrameGDA94     Frame = "GDA94"
	FrameSIRGAS2000 Frame = "SIRGAS2000"
	FrameSIRGAS95  Frame = "SIRGAS95"
	FrameDREF91    Frame = "DREF91"
	FrameCustom    Frame = "Custom"
)

// HelmertParams is the 14-parameter Helmert transformation plus its
// reference epoch (§6 "Frame parameters"): translations in mm,
// translation rates in mm/yr, rotations in mas, rotation rates in
// mas/yr, scale and scale rate in ppb (parts per billion) and ppb/yr.
type HelmertParams struct {
	Dx, Dy, Dz    float64 // mm
	Dxr, Dyr, Dzr float64 // mm/yr
	Ox, Oy, Oz    float64 // mas
	Oxr, Oyr, Ozr float64 // mas/yr
	Sc, Scr       float64 // ppb, ppb/yr
	T0            float64 // reference epoch, decimal year
}

// masToRad converts milliarcseconds to radians.
func masToRad(mas float64) float64 { return mas * (math.Pi / 180.0) / 3600.0 / 1000.0 }

// frameTable holds the 14 Helmert parameters named per §6's frame list.
// Only ETRF2000 carries the numeric values given explicitly in the
// specification; the remaining IGS-published frames (NAD83, GDA94,
// SIRGAS2000, SIRGAS95, DREF91) are "specified identically as scalars"
// by an operator through configuration (§6's trafo_dx .. trafo_t0
// surface) rather than hardcoded, since no further numeric table was
// supplied — see DESIGN.md's Open Question note for this component.
var frameTable = map[Frame]HelmertParams{
	FrameETRF2000: {
		Dx: 52.1, Dy: 49.3, Dz: -58.5,
		Dxr: 0.1, Dyr: 0.1, Dzr: -1.8,
		Ox: 0.891, Oy: 5.390, Oz: -8.712,
		Oxr: 0.081, Oyr: 0.490, Ozr: -0.792,
		Sc: 1.34, Scr: 0.08,
		T0: 2000.0,
	},
}

// LookupFrame returns the Helmert parameters for name, falling back to
// an identity transform (no-op) for FrameIGS08 or an unrecognized name.
func LookupFrame(name Frame) HelmertParams {
	if p, ok := frameTable[name]; ok {
		return p
	}
	return HelmertParams{}
}

// RegisterCustomFrame installs operator-supplied Helmert parameters
// under FrameCustom (§6 trafo_dx .. trafo_t0 configuration keys).
func RegisterCustomFrame(p HelmertParams) { frameTable[FrameCustom] = p }

// Transform applies the 14-parameter Helmert similarity transform
// x' = dx(t) + sc(t)*R(omega(t))*x with linear drift (t-t0) applied to
// every rate term (§4.I step 4).
func Transform(x gtime.Vec3, p HelmertParams, year float64) gtime.Vec3 {
	dt := year - p.T0

	dx := (p.Dx + p.Dxr*dt) / 1000.0 // mm -> m
	dy := (p.Dy + p.Dyr*dt) / 1000.0
	dz := (p.Dz + p.Dzr*dt) / 1000.0

	ox := masToRad(p.Ox + p.Oxr*dt)
	oy := masToRad(p.Oy + p.Oyr*dt)
	oz := masToRad(p.Oz + p.Ozr*dt)

	sc := 1.0 + (p.Sc+p.Scr*dt)*1e-9 // ppb -> dimensionless

	// Small-angle rotation matrix R(omega) ~= I + [[0,-oz,oy],[oz,0,-ox],[-oy,ox,0]].
	rx := x[0] - oz*x[1] + oy*x[2]
	ry := oz*x[0] + x[1] - ox*x[2]
	rz := -oy*x[0] + ox*x[1] + x[2]

	return gtime.Vec3{
		dx + sc*rx,
		dy + sc*ry,
		dz + sc*rz,
	}
}

// ScaleClockAdjustment computes the dc term (§4.I step 4): the clock
// correction needed to compensate for the scale change, using the
// distance from the geocenter of the coordinate being transformed as
// the rho_meanSta term (see DESIGN.md: the specification's per-frame
// mean station coordinate table was not supplied, so the station's own
// radius is used in its place — self-consistent and dimensionally
// identical for any station near that radius).
func ScaleClockAdjustment(x gtime.Vec3, p HelmertParams, year float64, speedOfLight float64) float64 {
	dt := year - p.T0
	sc := 1.0 + (p.Sc+p.Scr*dt)*1e-9
	if sc == 0 {
		return 0
	}
	rho := math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
	return rho * (sc - 1.0) / sc / speedOfLight
}
