package gtime

import (
	"math"
	"testing"
)

func TestGpsWeekRollover(t *testing.T) {
	tm := FromGpsWeekSec(2200, 604799.5)
	tm = tm.Add(1.0)
	if tm.GpsWeek() != 2201 {
		t.Fatalf("expected week rollover, got week=%d sec=%f", tm.GpsWeek(), tm.GpsSec())
	}
	if math.Abs(tm.GpsSec()-0.5) > 1e-9 {
		t.Fatalf("expected sec~0.5 after rollover, got %f", tm.GpsSec())
	}
}

func TestBdsWeekSecOffset(t *testing.T) {
	tm := FromGpsWeekSec(2200, 100.0)
	if tm.BdsWeek() != 2200-1356 {
		t.Fatalf("bds week mismatch")
	}
	if math.Abs(tm.BdsSec()-(100.0-14.0)) > 1e-9 {
		t.Fatalf("bds sec mismatch: %f", tm.BdsSec())
	}
}

func TestBdsSecWrap(t *testing.T) {
	tm := FromGpsWeekSec(2200, 5.0) // 5 - 14 < 0, must wrap
	if tm.BdsSec() < 0 {
		t.Fatalf("bds sec should wrap into [0,604800): got %f", tm.BdsSec())
	}
}

func TestEcefGeodeticRoundTrip(t *testing.T) {
	xyz := Vec3{4027893.6, 307041.9, 4919474.9}
	lat, lon, h, err := EcefToGeodetic(xyz)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back := GeodeticToEcef(lat, lon, h)
	for i := range xyz {
		if math.Abs(xyz[i]-back[i]) > 1e-3 {
			t.Fatalf("round trip mismatch at %d: %f vs %f", i, xyz[i], back[i])
		}
	}
}

func TestRswRoundTrip(t *testing.T) {
	r := Vec3{26000000, 1000000, 2000000}
	v := Vec3{-1000, 2000, 3000}
	d := Vec3{1.5, -2.3, 0.7}
	rad, along, cross := EcefToRSW(r, v, d)
	back := RswToEcef(r, v, Vec3{rad, along, cross})
	for i := range d {
		if math.Abs(d[i]-back[i]) > 1e-9 {
			t.Fatalf("rsw round trip mismatch at %d: %f vs %f", i, d[i], back[i])
		}
	}
}
