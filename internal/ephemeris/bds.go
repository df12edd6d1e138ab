package ephemeris

import (
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// geoInclinationThreshold is the §4.B boundary: i0 < 10° triggers the
// GEO branch, i0 == 10° exactly stays on the MEO/IGSO branch (strict
// inequality, per the spec's boundary-behavior table).
const geoInclinationThreshold = 10.0 * math.Pi / 180.0

// BDSEph is the BeiDou Keplerian ephemeris. BDS shares GPS's Keplerian
// shape but needs its own variant because of the IGSO/MEO-vs-GEO
// discrimination and the differing relativity convention. IOD returns
// the broadcast IODE; no CRC24Q-derived IOD is computed for BDS.
type BDSEph struct {
	Sat prn.Prn

	TOC, TOE                         gtime.Time
	ClockBias, ClockDrift, ClockRate float64

	SqrtA, Ecc, M0, DeltaN            float64
	Omega0, Omega, OmegaDot, I0, IDOT float64
	Crc, Crs, Cuc, Cus, Cic, Cis       float64
	Toes                               float64
	IODE, IODC                         int
	TGD1, TGD2                         float64
	URA                                float64
	Health                             int

	Attachment
}

func (e *BDSEph) PRN() prn.Prn            { return e.Sat }
func (e *BDSEph) IOD() int                { return e.IODE }
func (e *BDSEph) Attachments() *Attachment { return &e.Attachment }

// isGEO reports whether this satellite uses the rotated GEO frame.
func (e *BDSEph) isGEO() bool { return e.I0 < geoInclinationThreshold }

// geoRotate applies the BDS GEO frame matrix M(angle) = Rz(angle) "folded
// with" Rx(-5°) — the exact transform used by the ICD for a GEO
// satellite's orbital-plane coordinates — to vector p.
func geoRotate(p gtime.Vec3, sino, coso float64) gtime.Vec3 {
	return gtime.Vec3{
		p[0]*coso + p[1]*sino*cos5deg + p[2]*sino*sin5deg,
		-p[0]*sino + p[1]*coso*cos5deg + p[2]*coso*sin5deg,
		-p[1]*sin5deg + p[2]*cos5deg,
	}
}

// geoRotateDeriv applies ∂M/∂angle to p; multiplying by dangle/dt gives
// the chain-rule velocity contribution from the time-varying rotation.
// This resolves the REDESIGN FLAGS open question on the BDS GEO
// velocity matrix by direct differentiation of geoRotate, which is
// built from the spec's adopted U = [[-S,+C,0],[-C,-S,0],[0,0,0]] form.
func geoRotateDeriv(p gtime.Vec3, sino, coso float64) gtime.Vec3 {
	return gtime.Vec3{
		-p[0]*sino + p[1]*coso*cos5deg + p[2]*coso*sin5deg,
		-p[0]*coso - p[1]*sino*cos5deg - p[2]*sino*sin5deg,
		0,
	}
}

// Position implements §4.B for BDS, including the GEO special
// handling: compute as for MEO, then apply Rz(ω_BDS·t_k)·Rx(-5°) to
// the ECEF position, with the matching velocity correction.
func (e *BDSEph) Position(t gtime.Time, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	tk := t.Sub(e.TOE)
	a := e.SqrtA * e.SqrtA
	m := e.M0 + (math.Sqrt(muBDS/(a*a*a))+e.DeltaN)*tk

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
	edot := (math.Sqrt(muBDS/(a*a*a)) + e.DeltaN) / (1.0 - e.Ecc*cosE)

	var pos, vel gtime.Vec3
	if e.isGEO() {
		bigO := e.Omega0 + e.OmegaDot*tk - omegaBDS*e.Toes
		sinO, cosO := math.Sincos(bigO)
		pRaw := gtime.Vec3{
			x*cosO - y*cosi*sinO,
			x*sinO + y*cosi*cosO,
			y * math.Sin(i),
		}
		vRaw := keplerVelocity(a, e.Ecc, ee, edot, u, i, bigO, e.OmegaDot)

		sino, coso := math.Sincos(omegaBDS * tk)
		pos = geoRotate(pRaw, sino, coso)
		vRot := geoRotate(vRaw, sino, coso)
		dRot := geoRotateDeriv(pRaw, sino, coso)
		vel = gtime.Vec3{
			vRot[0] + omegaBDS*dRot[0],
			vRot[1] + omegaBDS*dRot[1],
			vRot[2] + omegaBDS*dRot[2],
		}
	} else {
		bigO := e.Omega0 + (e.OmegaDot-omegaBDS)*tk - omegaBDS*e.Toes
		sinO, cosO := math.Sincos(bigO)
		pos = gtime.Vec3{
			x*cosO - y*cosi*sinO,
			x*sinO + y*cosi*cosO,
			y * math.Sin(i),
		}
		vel = keplerVelocity(a, e.Ecc, ee, edot, u, i, bigO, e.OmegaDot-omegaBDS)
	}

	tkc := t.Sub(e.TOC)
	clk := e.ClockBias + e.ClockDrift*tkc + e.ClockRate*tkc*tkc
	clk -= 4.442807633e-10 * e.Ecc * e.SqrtA * sinE

	return applyCorrection(t, pos, vel, clk, &e.Attachment, useCorrections)
}
