package ssr

import (
	"math"
	"testing"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func circularEph(sat prn.Prn, iode int, toe gtime.Time, raanShift float64) *ephemeris.KeplerEph {
	return &ephemeris.KeplerEph{
		Sat:    sat,
		TOC:    toe,
		TOE:    toe,
		SqrtA:  5153.7,
		Ecc:    0.0,
		M0:     0.1,
		Omega0: 0.5 + raanShift,
		I0:     0.9,
		Toes:   toe.GpsSec(),
		IODE:   iode,
	}
}

func TestReanchorLeavesUnchangedWhenIODMatches(t *testing.T) {
	store := ephemeris.NewStore()
	id := prn.Prn{System: prn.GPS, Number: 3}
	toe := gtime.FromGpsWeekSec(2200, 100000)
	store.Put(circularEph(id, 10, toe, 0))

	oc := &ephemeris.OrbCorr{Prn: id, Iod: 10, Time: toe}
	cc := &ephemeris.ClkCorr{Prn: id, Iod: 10, Time: toe, DClk: 1e-7}

	gotOC, gotCC := Reanchor(store, id, oc, cc, nil)
	if gotOC != oc || gotCC != cc {
		t.Fatalf("expected untouched correction when IOD matches the latest ephemeris")
	}
}

func TestReanchorAdjustsOnRollover(t *testing.T) {
	store := ephemeris.NewStore()
	id := prn.Prn{System: prn.GPS, Number: 3}
	toe := gtime.FromGpsWeekSec(2200, 100000)
	store.Put(circularEph(id, 10, toe, 0))
	store.Put(circularEph(id, 11, toe, 0.01)) // small RAAN shift models a rollover

	oc := &ephemeris.OrbCorr{Prn: id, Iod: 10, Time: toe}
	cc := &ephemeris.ClkCorr{Prn: id, Iod: 10, Time: toe, DClk: 1e-7}

	gotOC, gotCC := Reanchor(store, id, oc, cc, nil)
	if gotOC == nil || gotCC == nil {
		t.Fatalf("expected adjusted corrections, got nil")
	}
	if gotOC.Iod != 11 || gotCC.Iod != 11 {
		t.Fatalf("expected re-anchored IOD 11, got orb=%d clk=%d", gotOC.Iod, gotCC.Iod)
	}
	if gotOC == oc || gotCC == cc {
		t.Fatalf("expected new correction values, not the original pointers")
	}
	// The RAAN shift moves the satellite by a non-trivial distance; the
	// re-anchored RSW offset should reflect that rather than staying 0.
	mag := math.Sqrt(gotOC.Xr[0]*gotOC.Xr[0] + gotOC.Xr[1]*gotOC.Xr[1] + gotOC.Xr[2]*gotOC.Xr[2])
	if mag < 1.0 {
		t.Fatalf("expected a material RSW offset from the ephemeris rollover, got magnitude %g", mag)
	}
}

func TestReanchorDropsWhenOldEphemerisUnavailable(t *testing.T) {
	store := ephemeris.NewStore()
	id := prn.Prn{System: prn.GPS, Number: 3}
	toe := gtime.FromGpsWeekSec(2200, 100000)
	store.Put(circularEph(id, 11, toe, 0))

	oc := &ephemeris.OrbCorr{Prn: id, Iod: 999, Time: toe}
	cc := &ephemeris.ClkCorr{Prn: id, Iod: 999, Time: toe}

	gotOC, gotCC := Reanchor(store, id, oc, cc, nil)
	if gotOC != nil || gotCC != nil {
		t.Fatalf("expected nil corrections when the old ephemeris has rotated out of the store")
	}
}
