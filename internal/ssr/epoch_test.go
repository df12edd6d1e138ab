package ssr

import (
	"testing"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestReconstructEpochGPSDefaultNoReference(t *testing.T) {
	got := ReconstructEpoch(prn.GPS, 100000, 2200, gtime.Time{})
	want := gtime.FromGpsWeekSec(2200, 100000)
	if got.Sub(want) != 0 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReconstructEpochBDSAddsFourteenSecondsAndWraps(t *testing.T) {
	// raw=604790 -> +14 = 604804, wraps past the 604800s week boundary.
	got := ReconstructEpoch(prn.BDS, 604790, 2200, gtime.Time{})
	want := gtime.FromGpsWeekSec(2200, 4)
	if got.Sub(want) != 0 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReconstructEpochBDSNoWrap(t *testing.T) {
	got := ReconstructEpoch(prn.BDS, 1000, 2200, gtime.Time{})
	want := gtime.FromGpsWeekSec(2200, 1014)
	if got.Sub(want) != 0 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReconstructEpochRollsToNearestLastWeek(t *testing.T) {
	last := gtime.FromGpsWeekSec(2200, 603000)
	got := ReconstructEpoch(prn.GPS, 100, 2200, last)
	want := gtime.FromGpsWeekSec(2201, 100)
	if got.Sub(want) != 0 {
		t.Fatalf("got %v want %v", got, want)
	}
	if d := got.Sub(last); d < -43200 || d > 43200 {
		t.Fatalf("rolled epoch %v not within 12h of last %v (delta %gs)", got, last, d)
	}
}

func TestReconstructEpochWithinWindowDoesNotRoll(t *testing.T) {
	last := gtime.FromGpsWeekSec(2200, 100000)
	got := ReconstructEpoch(prn.GPS, 100030, 2200, last)
	want := gtime.FromGpsWeekSec(2200, 100030)
	if got.Sub(want) != 0 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReconstructEpochGLONASSStaysNearHostTime(t *testing.T) {
	host := gtime.FromGpsWeekSec(2200, 200000)
	got := ReconstructEpoch(prn.GLO, 43200, 2200, host)
	if !got.Valid() {
		t.Fatalf("expected a valid reconstructed GLONASS epoch")
	}
	if d := got.Sub(host); d < -4*3600-43200 || d > 4*3600+43200 {
		t.Fatalf("GLONASS epoch %v too far from host time %v (delta %gs)", got, host, d)
	}
}

func TestFirstPresentSystemFollowsPriorityOrder(t *testing.T) {
	present := map[prn.System]bool{prn.BDS: true, prn.GAL: true}
	got, ok := FirstPresentSystem(present)
	if !ok || got != prn.GAL {
		t.Fatalf("got %v,%v want GAL,true (GAL precedes BDS in priority order)", got, ok)
	}
}

func TestFirstPresentSystemNoneReported(t *testing.T) {
	if _, ok := FirstPresentSystem(map[prn.System]bool{}); ok {
		t.Fatalf("expected ok=false for an empty presence map")
	}
}
