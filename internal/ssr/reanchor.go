package ssr

import (
	"github.com/sirupsen/logrus"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// Reanchor completes component E's ephemeris-rollover handling: when a
// newly-decoded correction's IOD differs from the ephemeris currently
// attached in store, the correction was built against a broadcast
// ephemeris the receiver has since superseded. Re-anchoring recomputes
// the RSW offset/rate and clock delta between the old and new broadcast
// ephemeris at the correction's clock time and folds that delta into the
// held correction, so downstream Position() calls keep using a single
// ephemeris/correction pair.
//
// log receives one line per PRN whose IOD actually changed, of the form
// "<prn> <oldIOD> -> <newIOD>" together with the applied delta-clock in
// meters, per §4.E.
func Reanchor(store *ephemeris.Store, id prn.Prn, oc *ephemeris.OrbCorr, cc *ephemeris.ClkCorr, logger *logrus.Logger) (*ephemeris.OrbCorr, *ephemeris.ClkCorr) {
	newEph := store.Latest(id)
	if newEph == nil {
		return oc, cc
	}
	newIOD := newEph.IOD()

	var oldIOD int
	var have bool
	if oc != nil {
		oldIOD, have = oc.Iod, true
	} else if cc != nil {
		oldIOD, have = cc.Iod, true
	}
	if !have || oldIOD == newIOD {
		return oc, cc
	}

	oldEph := store.ByIOD(id, oldIOD)
	if oldEph == nil {
		// The superseded ephemeris already rotated out of the
		// two-slot store; nothing to difference against, so the
		// correction is dropped rather than silently misapplied
		// (§7 "missing ephemeris").
		if logger != nil {
			logger.WithField("prn", id.String()).Warn("ssr: cannot re-anchor, old ephemeris no longer available")
		}
		return nil, nil
	}

	t := gtime.Time{}
	if cc != nil {
		t = cc.Time
	} else if oc != nil {
		t = oc.Time
	}

	oldPos, oldClk, oldVel, err1 := oldEph.Position(t, false)
	newPos, newClk, newVel, err2 := newEph.Position(t, false)
	if err1 != nil || err2 != nil {
		return oc, cc
	}

	dPos := gtime.Vec3{oldPos[0] - newPos[0], oldPos[1] - newPos[1], oldPos[2] - newPos[2]}
	dVel := gtime.Vec3{oldVel[0] - newVel[0], oldVel[1] - newVel[1], oldVel[2] - newVel[2]}
	radial, along, cross := gtime.EcefToRSW(newPos, newVel, dPos)
	radialV, alongV, crossV := gtime.EcefToRSW(newPos, newVel, dVel)
	dClk := oldClk - newClk

	var adjOrb *ephemeris.OrbCorr
	if oc != nil {
		o := *oc
		o.Iod = newIOD
		o.Xr = gtime.Vec3{o.Xr[0] + radial, o.Xr[1] + along, o.Xr[2] + cross}
		o.DotXr = gtime.Vec3{o.DotXr[0] + radialV, o.DotXr[1] + alongV, o.DotXr[2] + crossV}
		adjOrb = &o
	}
	var adjClk *ephemeris.ClkCorr
	if cc != nil {
		c := *cc
		c.Iod = newIOD
		c.DClk = c.DClk + dClk
		adjClk = &c
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"prn":       id.String(),
			"old_iod":   oldIOD,
			"new_iod":   newIOD,
			"dclk_m":    dClk * clight,
		}).Info("ssr: re-anchored correction across ephemeris rollover")
	}

	return adjOrb, adjClk
}
