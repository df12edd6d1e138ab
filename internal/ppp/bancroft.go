package ppp

import (
	"errors"
	"math"

	"bncgo/internal/gtime"
)

// ErrBancroftDegenerate is returned when the Lorentz quadratic has no
// real root or the observation geometry is degenerate (fewer than 4
// satellites, or a near-singular B matrix).
var ErrBancroftDegenerate = errors.New("ppp: bancroft solution degenerate")

// bancroftObs is one pseudorange observation for the closed-form
// initial-position solver.
type bancroftObs struct {
	X, Y, Z float64 // satellite ECEF position, m
	Pr      float64 // pseudorange, m (iono-free, SSR- and sat-clock-corrected)
}

// earthRotationRate is t_CST::omega (pppModel.cpp/bncutils.h), the WGS84
// rotation rate used to Sagnac-correct each satellite position to the
// Earth-fixed frame at signal reception rather than transmission time.
const earthRotationRate = 7.2921151467e-5

// sagnacCorrect rotates a satellite ECEF position backward by the
// Earth's rotation during the signal's travel time tau = pr/c, grounded
// on the spec's explicit "corrects for Earth rotation during
// traveltime" requirement for the Bancroft solver.
func sagnacCorrect(x, y float64, tau float64) (cx, cy float64) {
	theta := earthRotationRate * tau
	s, c := math.Sincos(theta)
	return c*x + s*y, -s*x + c*y
}

// BancroftSolve computes a closed-form single-epoch receiver
// position+clock-bias estimate from four or more pseudoranges, used to
// seed State on the very first epoch (and after a gap-triggered reset)
// before the Kalman filter has any prior. Unlike every other piece of
// this component, this algorithm has no counterpart in the teacher
// repo (grounded instead in the published closed-form solution, S.
// Bancroft, "An Algebraic Solution of the GPS Equations", IEEE
// Trans. Aerospace & Electronic Systems, 1985) since the teacher always
// iterates from a seeded approximate position (ppp.go's PPPos never
// cold-starts). See DESIGN.md for why no in-pack source grounds this
// file.
func BancroftSolve(obs []bancroftObs) (pos gtime.Vec3, clkBias float64, err error) {
	n := len(obs)
	if n < 4 {
		return gtime.Vec3{}, 0, ErrBancroftDegenerate
	}

	// B is n x 4: (x, y, z, pr) rows, Sagnac-corrected to the Earth-fixed
	// frame at reception time using tau = pr/c, solved via the Lorentz
	// inner product <u,v> = u1v1+u2v2+u3v3-u4v4.
	b := make([][4]float64, n)
	a := make([]float64, n) // lorentz(row,row)/2
	for i, o := range obs {
		tau := o.Pr / speedOfLight
		cx, cy := sagnacCorrect(o.X, o.Y, tau)
		b[i] = [4]float64{cx, cy, o.Z, o.Pr}
		a[i] = 0.5 * lorentzQuad(b[i], b[i])
	}

	// Solve (B^T B) u = B^T 1 and (B^T B) v = B^T a via the 4x4 normal
	// equations, for n==4 as well as n>4.
	u, v, err := bancroftSolveLinear(b, a)
	if err != nil {
		return gtime.Vec3{}, 0, err
	}

	// Solve the Lorentz quadratic for lambda = <r,r>/2, where r is the
	// receiver (x, y, z, c*dt) and M*r = v + lambda*u with
	// M = diag(1,1,1,-1):
	// <u,u>*lambda^2 + 2*(<u,v>-1)*lambda + <v,v> = 0.
	uu := lorentzQuad(u, u)
	uv := lorentzQuad(u, v)
	vv := lorentzQuad(v, v)

	if math.Abs(uu) < 1e-30 {
		return gtime.Vec3{}, 0, ErrBancroftDegenerate
	}
	disc := (uv-1)*(uv-1) - uu*vv
	if disc < 0 {
		return gtime.Vec3{}, 0, ErrBancroftDegenerate
	}
	sq := math.Sqrt(disc)
	lam1 := (-(uv - 1) + sq) / uu
	lam2 := (-(uv - 1) - sq) / uu

	// Each candidate is M*r; negating the 4th component gives c*dt.
	x1 := addScaled(v, u, lam1)
	x2 := addScaled(v, u, lam2)
	x1[3], x2[3] = -x1[3], -x2[3]

	// Both roots solve the Lorentz quadratic; per the spec, break the
	// tie by picking whichever reproduces the FIRST satellite's
	// pseudorange more closely, rather than a plausibility heuristic.
	pick := x1
	if firstSatResidual(x2, b[0]) < firstSatResidual(x1, b[0]) {
		pick = x2
	}
	for _, c := range pick {
		if math.IsNaN(c) {
			return gtime.Vec3{}, 0, ErrBancroftDegenerate
		}
	}

	pos = gtime.Vec3{pick[0], pick[1], pick[2]}
	clkBias = pick[3] / speedOfLight
	return pos, clkBias, nil
}

// firstSatResidual is |computed range + clock bias - observed pseudorange|
// for the first satellite row, the tie-break criterion the spec names
// explicitly ("choose the one whose first-satellite residual is
// smaller").
func firstSatResidual(cand [4]float64, row [4]float64) float64 {
	dx, dy, dz := row[0]-cand[0], row[1]-cand[1], row[2]-cand[2]
	rng := math.Sqrt(dx*dx + dy*dy + dz*dz)
	return math.Abs(rng + cand[3] - row[3])
}

func lorentzQuad(p, q [4]float64) float64 {
	return p[0]*q[0] + p[1]*q[1] + p[2]*q[2] - p[3]*q[3]
}

func addScaled(u, v [4]float64, lam float64) [4]float64 {
	return [4]float64{u[0] + lam*v[0], u[1] + lam*v[1], u[2] + lam*v[2], u[3] + lam*v[3]}
}

// bancroftSolveLinear solves for u = (B^T B)^-1 B^T 1 and
// v = (B^T B)^-1 B^T a using Gaussian elimination on the 4x4 normal
// equations, avoiding a dependency on internal/linalg's general Inv
// for this tiny fixed-size system (kept self-contained since Bancroft
// is itself ungrounded in the teacher's dense-matrix idiom).
func bancroftSolveLinear(b [][4]float64, a []float64) (u, v [4]float64, err error) {
	n := len(b)
	var bt1, bta [4]float64
	var btb [4][4]float64
	for i := 0; i < n; i++ {
		for r := 0; r < 4; r++ {
			bt1[r] += b[i][r] * 1.0
			bta[r] += b[i][r] * a[i]
			for c := 0; c < 4; c++ {
				btb[r][c] += b[i][r] * b[i][c]
			}
		}
	}

	u, err = solve4(btb, bt1)
	if err != nil {
		return [4]float64{}, [4]float64{}, err
	}
	v, err = solve4(btb, bta)
	if err != nil {
		return [4]float64{}, [4]float64{}, err
	}
	return u, v, nil
}

func solve4(m [4][4]float64, rhs [4]float64) ([4]float64, error) {
	var a [4][5]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = m[r][c]
		}
		a[r][4] = rhs[r]
	}
	for col := 0; col < 4; col++ {
		piv := col
		maxAbs := math.Abs(a[col][col])
		for r := col + 1; r < 4; r++ {
			if math.Abs(a[r][col]) > maxAbs {
				piv, maxAbs = r, math.Abs(a[r][col])
			}
		}
		if maxAbs < 1e-12 {
			return [4]float64{}, ErrBancroftDegenerate
		}
		a[col], a[piv] = a[piv], a[col]
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c < 5; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	var x [4]float64
	for r := 0; r < 4; r++ {
		x[r] = a[r][4] / a[r][r]
	}
	return x, nil
}
