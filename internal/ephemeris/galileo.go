package ephemeris

import (
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// GalileoEph is the Galileo Keplerian ephemeris. It carries its own
// struct (rather than reusing KeplerEph) because it has its own
// relativity convention, its own broadcast group delays, and a
// per-signal health/validity model absent from GPS/QZSS.
type GalileoEph struct {
	Sat prn.Prn

	TOC, TOE                         gtime.Time
	ClockBias, ClockDrift, ClockRate float64

	SqrtA, Ecc, M0, DeltaN            float64
	Omega0, Omega, OmegaDot, I0, IDOT float64
	Crc, Crs, Cuc, Cus, Cic, Cis       float64
	Toes                               float64

	BGDE1E5a, BGDE1E5b float64
	SISA               float64
	DVS, HS            [2]int // per-signal (E1, E5b/E5a) data-validity / health bits
	FNav               bool   // true: F/NAV message, false: I/NAV
	IODnav             int

	Attachment
}

func (e *GalileoEph) PRN() prn.Prn           { return e.Sat }
func (e *GalileoEph) IOD() int                { return e.IODnav }
func (e *GalileoEph) Attachments() *Attachment { return &e.Attachment }

// Position implements §4.B for Galileo, using the ICD/SSR-standard
// relativity convention `clk -= 4.442807633e-10 * e * sqrtA * sinE`.
func (e *GalileoEph) Position(t gtime.Time, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	tk := t.Sub(e.TOE)
	a := e.SqrtA * e.SqrtA
	m := e.M0 + (math.Sqrt(muGAL/(a*a*a))+e.DeltaN)*tk

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

	bigO := e.Omega0 + (e.OmegaDot-omegaGAL)*tk - omegaGAL*e.Toes
	sinO, cosO := math.Sincos(bigO)

	pos := gtime.Vec3{
		x*cosO - y*cosi*sinO,
		x*sinO + y*cosi*cosO,
		y * math.Sin(i),
	}

	edot := (math.Sqrt(muGAL/(a*a*a)) + e.DeltaN) / (1.0 - e.Ecc*cosE)
	vel := keplerVelocity(a, e.Ecc, ee, edot, u, i, bigO, e.OmegaDot-omegaGAL)

	tkc := t.Sub(e.TOC)
	clk := e.ClockBias + e.ClockDrift*tkc + e.ClockRate*tkc*tkc
	clk -= 4.442807633e-10 * e.Ecc * e.SqrtA * sinE

	return applyCorrection(t, pos, vel, clk, &e.Attachment, useCorrections)
}
