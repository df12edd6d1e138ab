package combination

import (
	"testing"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func sat(n int) prn.Prn { return prn.Prn{System: prn.GPS, Number: n} }

func TestScreenOrbitOutliersDropsSingleObservationSat(t *testing.T) {
	streams := []ACStream{
		{Name: "AC1", Orbit: map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Xr: gtime.Vec3{0, 0, 0}}}},
	}
	survivors := ScreenOrbitOutliers(streams)
	if _, ok := survivors[sat(1)]; ok {
		t.Fatalf("a PRN with only one AC observation must be dropped")
	}
}

func TestScreenOrbitOutliersRejectsFarOutlier(t *testing.T) {
	streams := []ACStream{
		{Name: "AC1", Orbit: map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Xr: gtime.Vec3{0, 0, 0}}}},
		{Name: "AC2", Orbit: map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Xr: gtime.Vec3{0.01, 0, 0}}}},
		{Name: "AC3", Orbit: map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Xr: gtime.Vec3{5.0, 0, 0}}}},
	}
	survivors := ScreenOrbitOutliers(streams)
	names := survivors[sat(1)]
	for _, n := range names {
		if n == "AC3" {
			t.Fatalf("AC3's 5m outlier should have been screened out, got %v", names)
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected the two close ACs to survive, got %v", names)
	}
}

func TestEnginePromotesMasterAfterMissingThreshold(t *testing.T) {
	e := NewEngine("AC1", 0, nil)
	streams := []ACStream{{Name: "AC2", Weight: 1.0}}
	got := e.promoteMaster(streams)
	if got != "AC2" {
		t.Fatalf("expected promotion to the only present AC, got %q", got)
	}
}

func TestCombineEmitsConsensusClock(t *testing.T) {
	e := NewEngine("AC1", 0, nil)
	s := NewState()
	streams := []ACStream{
		{
			Name:   "AC1",
			Weight: 1.0,
			Orbit:  map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Prn: sat(1), Xr: gtime.Vec3{0, 0, 0}}},
			Clock:  map[prn.Prn]*ephemeris.ClkCorr{sat(1): {Prn: sat(1), DClk: 1e-8}},
		},
		{
			Name:   "AC2",
			Weight: 1.0,
			Orbit:  map[prn.Prn]*ephemeris.OrbCorr{sat(1): {Prn: sat(1), Xr: gtime.Vec3{0.01, 0, 0}}},
			Clock:  map[prn.Prn]*ephemeris.ClkCorr{sat(1): {Prn: sat(1), DClk: 1.1e-8}},
		},
	}
	consensus := e.Combine(streams, s)
	if _, ok := consensus.Clock[sat(1)]; !ok {
		t.Fatalf("expected a consensus clock for the surviving PRN, got %+v", consensus.Clock)
	}
	if _, ok := consensus.Orbit[sat(1)]; !ok {
		t.Fatalf("expected the master AC's orbit correction to pass through")
	}
}
