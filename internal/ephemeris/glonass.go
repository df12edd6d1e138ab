package ephemeris

import (
	"errors"
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// ErrIntegrationSpan is returned when the RK4 propagation span exceeds
// the 24-hour validity window.
var ErrIntegrationSpan = errors.New("ephemeris: glonass integration span exceeds 24h")

// GLOEph is the GLONASS ephemeris: a state vector (position, velocity,
// luni-solar acceleration) at TOC plus clock bias and frequency-channel
// metadata, propagated by numerical integration rather than a closed
// Kepler form.
type GLOEph struct {
	Sat  prn.Prn
	TOC  gtime.Time
	Pos  gtime.Vec3 // m
	Vel  gtime.Vec3 // m/s
	Acc  gtime.Vec3 // m/s^2, luni-solar
	Tau  float64    // clock bias, s
	Gamma float64   // clock drift, s/s
	FreqChannel int
	Slot        int

	Attachment
}

func (e *GLOEph) PRN() prn.Prn { return e.Sat }

// IOD for GLONASS is derived from the 15-minute grid of the Moscow
// time-of-day: floor(secOfDay/900).
func (e *GLOEph) IOD() int {
	// TOC is on the GPS timescale: UTC = GPS + LeapSeconds(), Moscow = UTC+3h.
	moscow := e.TOC.Add(e.TOC.LeapSeconds() + 3*3600)
	return int(math.Floor(moscow.Daysec() / 900.0))
}

func (e *GLOEph) Attachments() *Attachment { return &e.Attachment }

const (
	c20Glo    = -1082.6257e-6
	gloRKStep = 10.0 // nominal RK4 step, s
)

// gloDeriv evaluates the GLONASS orbit differential equation: position
// and velocity derivatives under J2, Earth rotation, and the supplied
// luni-solar acceleration constants.
func gloDeriv(x [6]float64, acc gtime.Vec3) [6]float64 {
	r2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	if r2 <= 0 {
		return [6]float64{}
	}
	r3 := r2 * math.Sqrt(r2)
	omg2 := omegaGLO * omegaGLO

	a := 1.5 * (-c20Glo) * muGLO * reGlo * reGlo / r2 / r3
	b := 5.0 * x[2] * x[2] / r2
	c := -muGLO/r3 - a*(1.0-b)

	var xdot [6]float64
	xdot[0], xdot[1], xdot[2] = x[3], x[4], x[5]
	xdot[3] = (c+omg2)*x[0] + 2.0*omegaGLO*x[4] + acc[0]
	xdot[4] = (c+omg2)*x[1] - 2.0*omegaGLO*x[3] + acc[1]
	xdot[5] = (c-2.0*a)*x[2] + acc[2]
	return xdot
}

func gloRK4Step(x [6]float64, dt float64, acc gtime.Vec3) [6]float64 {
	add := func(a, b [6]float64, scale float64) [6]float64 {
		var r [6]float64
		for i := range r {
			r[i] = a[i] + b[i]*scale
		}
		return r
	}
	k1 := gloDeriv(x, acc)
	k2 := gloDeriv(add(x, k1, dt/2), acc)
	k3 := gloDeriv(add(x, k2, dt/2), acc)
	k4 := gloDeriv(add(x, k3, dt), acc)
	var out [6]float64
	for i := range out {
		out[i] = x[i] + (k1[i]+2*k2[i]+2*k3[i]+k4[i])*dt/6.0
	}
	return out
}

// Position implements §4.B for GLONASS: RK4 integration with nominal
// step 10s, actual step dt/nSteps with nSteps = ceil(|dt|/10)+1, failing
// if the span exceeds 24h.
func (e *GLOEph) Position(t gtime.Time, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	dt := t.Sub(e.TOC)
	if math.Abs(dt) > 24*3600 {
		return gtime.Vec3{}, 0, gtime.Vec3{}, ErrIntegrationSpan
	}
	nSteps := int(math.Ceil(math.Abs(dt)/gloRKStep)) + 1
	step := dt / float64(nSteps)

	x := [6]float64{e.Pos[0], e.Pos[1], e.Pos[2], e.Vel[0], e.Vel[1], e.Vel[2]}
	for i := 0; i < nSteps; i++ {
		x = gloRK4Step(x, step, e.Acc)
	}
	pos := gtime.Vec3{x[0], x[1], x[2]}
	vel := gtime.Vec3{x[3], x[4], x[5]}

	// clock: linear model referenced at TOC, tau stored with the GLONASS
	// sign convention (bias = -tau + gamma*dt).
	clk := -e.Tau + e.Gamma*dt

	return applyCorrection(t, pos, vel, clk, &e.Attachment, useCorrections)
}
