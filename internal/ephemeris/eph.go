// Package ephemeris implements the multi-constellation broadcast
// ephemeris model (component B): per-system orbit propagation and the
// common SSR-correction attachment shared with the correction model.
package ephemeris

import (
	"errors"
	"math"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// Gravitational constants and Earth rotation rate per constellation
// (spec §6).
const (
	muGPS = 3.986005e14
	muGAL = 3.98600444e14
	muGLO = 3.98600444e14
	muBDS = 3.986004418e14

	omegaGPS = gtime.Omega
	omegaGAL = gtime.Omega
	omegaBDS = 7.292115e-5
	omegaGLO = 7.292115e-5

	clight = 299792458.0

	j2Glo     = 1.0826257e-3
	reGlo     = 6378136.0
	tstepGlo  = 60.0
	errEphGlo = 5.0

	rtolKepler    = 1e-13
	maxIterKepler = 30

	sin5deg = -0.0871557427476582
	cos5deg = 0.9961946980917456
)

// CheckState records the health/validity of an ephemeris entry.
type CheckState int

const (
	Unchecked CheckState = iota
	OK
	Bad
	Outdated
)

// OrbCorr is an SSR radial/along/cross orbit correction (component E).
type OrbCorr struct {
	Prn       prn.Prn
	Iod       int
	StaID     string
	Time      gtime.Time
	UpdateInt float64
	Xr        gtime.Vec3 // RSW offset, m
	DotXr     gtime.Vec3 // RSW rate, m/s
}

// ClkCorr is an SSR clock correction (component E), stored in seconds.
type ClkCorr struct {
	Prn        prn.Prn
	Iod        int
	StaID      string
	Time       gtime.Time
	UpdateInt  float64
	DClk       float64 // s
	DotDClk    float64 // s/s
	DotDotDClk float64 // s/s^2
}

// ErrMissingCorrection is returned by Position when useCorrections is
// requested but no OrbCorr/ClkCorr is attached.
var ErrMissingCorrection = errors.New("ephemeris: correction requested but not attached")

// ErrKeplerDidNotConverge flags an orbit that failed to converge.
var ErrKeplerDidNotConverge = errors.New("ephemeris: kepler iteration did not converge")

// Eph is the common interface over every constellation variant.
type Eph interface {
	// Position evaluates satellite position, clock bias (s), and
	// velocity at targetTime. If useCorrections is true, any attached
	// OrbCorr/ClkCorr is applied per §4.B; it is an error to request
	// corrections that are not attached.
	Position(targetTime gtime.Time, useCorrections bool) (xyz gtime.Vec3, clk float64, vel gtime.Vec3, err error)

	// PRN identifies the satellite this ephemeris belongs to.
	PRN() prn.Prn

	// IOD returns the issue-of-data value anchoring corrections to
	// this ephemeris.
	IOD() int

	// Attachments returns the mutable correction attachment header.
	Attachments() *Attachment
}

// Attachment is the common correction-attachment header embedded in
// every ephemeris variant (REDESIGN FLAGS "variant dispatch").
type Attachment struct {
	OrbCorr *OrbCorr
	ClkCorr *ClkCorr
	Check   CheckState
}

// Attach atomically replaces both corrections; a nil argument leaves
// the existing attachment for that slot untouched.
func (a *Attachment) Attach(orb *OrbCorr, clk *ClkCorr) {
	if orb != nil {
		a.OrbCorr = orb
	}
	if clk != nil {
		a.ClkCorr = clk
	}
}

// applyCorrection implements the half-update-interval centering rule
// of §4.B, common to every Kepler-based and state-vector variant.
func applyCorrection(t gtime.Time, pos, vel gtime.Vec3, clk float64, att *Attachment, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	if !useCorrections {
		return pos, clk, vel, nil
	}
	if att.OrbCorr == nil || att.ClkCorr == nil {
		return pos, clk, vel, ErrMissingCorrection
	}
	oc, cc := att.OrbCorr, att.ClkCorr

	dtOrb := t.Sub(oc.Time) - oc.UpdateInt/2
	dXrsw := gtime.Vec3{
		oc.Xr[0] + oc.DotXr[0]*dtOrb,
		oc.Xr[1] + oc.DotXr[1]*dtOrb,
		oc.Xr[2] + oc.DotXr[2]*dtOrb,
	}
	dXecef := gtime.RswToEcef(pos, vel, dXrsw)
	newPos := gtime.Vec3{pos[0] - dXecef[0], pos[1] - dXecef[1], pos[2] - dXecef[2]}

	dVecef := gtime.RswToEcef(pos, vel, oc.DotXr)
	newVel := gtime.Vec3{vel[0] - dVecef[0], vel[1] - dVecef[1], vel[2] - dVecef[2]}

	dtClk := t.Sub(cc.Time) - cc.UpdateInt/2
	newClk := clk + cc.DClk + cc.DotDClk*dtClk + cc.DotDotDClk*dtClk*dtClk

	return newPos, newClk, newVel, nil
}

func solveKepler(m, e float64) (float64, error) {
	ek := 0.0
	ee := m
	n := 0
	for ; math.Abs(ee-ek) > rtolKepler && n < maxIterKepler; n++ {
		ek = ee
		ee -= (ee - e*math.Sin(ee) - m) / (1.0 - e*math.Cos(ee))
	}
	if n >= maxIterKepler {
		return 0, ErrKeplerDidNotConverge
	}
	return ee, nil
}
