package ephemeris

import (
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// KeplerEph is the Keplerian broadcast ephemeris shared by GPS and
// QZSS (they differ only by PRN offset and a few status bits, which
// are not modeled here since this component concerns only position
// computation).
type KeplerEph struct {
	Sat prn.Prn

	TOC, TOE                         gtime.Time
	ClockBias, ClockDrift, ClockRate float64

	SqrtA, Ecc, M0, DeltaN             float64
	Omega0, Omega, OmegaDot, I0, IDOT  float64
	Crc, Crs, Cuc, Cus, Cic, Cis       float64
	Toes                               float64 // TOE seconds-of-week, for the Ω0 reference term
	IODE, IODC                        int
	TGD, URA                           float64
	Health                             int

	Attachment
}

func (e *KeplerEph) PRN() prn.Prn           { return e.Sat }
func (e *KeplerEph) IOD() int                { return e.IODE }
func (e *KeplerEph) Attachments() *Attachment { return &e.Attachment }

// Position implements §4.B for the GPS/QZSS Keplerian variant,
// including the IGS/ICD relativity convention `clk -= 2(r·v)/c²`
// (expressed here via the closed form `-2 sqrt(mu*A) e sinE / c²`,
// which is algebraically identical).
func (e *KeplerEph) Position(t gtime.Time, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	tk := t.Sub(e.TOE)
	a := e.SqrtA * e.SqrtA
	m := e.M0 + (math.Sqrt(muGPS/(a*a*a))+e.DeltaN)*tk

	ee, err := solveKepler(m, e.Ecc)
	if err != nil {
		return gtime.Vec3{}, 0, gtime.Vec3{}, err
	}
	sinE, cosE := math.Sincos(ee)

	u := math.Atan2(math.Sqrt(1.0-e.Ecc*e.Ecc)*sinE, cosE-e.Ecc) + e.Omega
	r := a * (1.0 - e.Ecc*cosE)
	i := e.I0 + e.IDOT*tk
	sin2u, cos2u := math.Sincos(2.0 * u)
	u += e.Cus*sin2u + e.Cuc*cos2u
	r += e.Crs*sin2u + e.Crc*cos2u
	i += e.Cis*sin2u + e.Cic*cos2u

	x := r * math.Cos(u)
	y := r * math.Sin(u)
	cosi := math.Cos(i)

	bigO := e.Omega0 + (e.OmegaDot-omegaGPS)*tk - omegaGPS*e.Toes
	sinO, cosO := math.Sincos(bigO)

	pos := gtime.Vec3{
		x*cosO - y*cosi*sinO,
		x*sinO + y*cosi*cosO,
		y * math.Sin(i),
	}

	edot := (math.Sqrt(muGPS/(a*a*a)) + e.DeltaN) / (1.0 - e.Ecc*cosE)
	vel := keplerVelocity(a, e.Ecc, ee, edot, u, i, bigO, e.OmegaDot-omegaGPS)

	tkc := t.Sub(e.TOC)
	clk := e.ClockBias + e.ClockDrift*tkc + e.ClockRate*tkc*tkc
	clk -= 2.0 * math.Sqrt(muGPS*a) * e.Ecc * sinE / (clight * clight)

	return applyCorrection(t, pos, vel, clk, &e.Attachment, useCorrections)
}

// keplerVelocity differentiates the orbital-plane-to-ECEF
// transformation analytically; shared by the GPS/QZSS, Galileo and
// BDS-MEO variants.
func keplerVelocity(a, ecc, ee, edot, u, i, bigO, omegaDotEff float64) gtime.Vec3 {
	sinE, cosE := math.Sincos(ee)
	r := a * (1.0 - ecc*cosE)
	rdot := a * ecc * sinE * edot
	udot := math.Sqrt(1-ecc*ecc) * edot / (1 - ecc*cosE)

	cu, su := math.Cos(u), math.Sin(u)
	x := r * cu
	y := r * su
	xdot := rdot*cu - r*su*udot
	ydot := rdot*su + r*cu*udot

	cosi := math.Cos(i)
	sinO, cosO := math.Sincos(bigO)

	// d/dt of (x cosO - y cosi sinO) etc, including the dΩ/dt rotation term.
	vX := xdot*cosO - ydot*cosi*sinO - (x*sinO+y*cosi*cosO)*omegaDotEff
	vY := xdot*sinO + ydot*cosi*cosO + (x*cosO-y*cosi*sinO)*omegaDotEff
	vZ := ydot * math.Sin(i)

	return gtime.Vec3{vX, vY, vZ}
}
