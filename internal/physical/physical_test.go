package physical

import (
	"math"
	"strings"
	"testing"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestSaastamoinenDelayZenithMatchesZeroHeight(t *testing.T) {
	d := SaastamoinenDelay(0, math.Pi/2.0)
	if d <= 2.0 || d >= 2.5 {
		t.Fatalf("expected ~2.3m zenith delay at sea level, got %g", d)
	}
}

func TestSaastamoinenDelayZeroAtHorizon(t *testing.T) {
	if d := SaastamoinenDelay(0, 0); d != 0 {
		t.Fatalf("expected 0 delay at zero elevation, got %g", d)
	}
}

func TestSaastamoinenDelayClampsHeightAboveTable(t *testing.T) {
	// Heights above 5km must not index past bHeightCoef; this would
	// panic before the ii>5 clamp was restored.
	d := SaastamoinenDelay(8000, 1.0)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		t.Fatalf("delay at high altitude is not finite: %g", d)
	}
}

func TestSaastamoinenDelayIncreasesNearHorizon(t *testing.T) {
	dZenith := SaastamoinenDelay(0, math.Pi/2.0)
	dLow := SaastamoinenDelay(0, 10*math.Pi/180.0)
	if dLow <= dZenith {
		t.Fatalf("expected low-elevation delay %g to exceed zenith delay %g", dLow, dZenith)
	}
}

func TestSolidEarthTideMagnitudeIsSubMeter(t *testing.T) {
	ti := gtime.FromGpsWeekSec(2200, 100000)
	sun, moon := SunMoonPositionECEF(ti)
	lat, lon := 0.6, 1.2
	eu := gtime.Vec3{math.Cos(lat) * math.Cos(lon), math.Cos(lat) * math.Sin(lon), math.Sin(lat)}
	dr := SolidEarthTide(sun, moon, lat, lon, eu, GMST(ti))
	mag := norm3(dr)
	if mag <= 0 || mag > 1.0 {
		t.Fatalf("expected a sub-meter tide displacement, got %g m", mag)
	}
}

func TestWindUpFirstCallSeedsWithoutJump(t *testing.T) {
	w := NewWindUp()
	ti := gtime.FromGpsWeekSec(2200, 100000)
	rSat := gtime.Vec3{20000e3, 0, 15000e3}
	rRec := gtime.Vec3{6378137, 0, 0}
	v := w.Value(ti, testPrn(), rRec, rSat)
	if math.Abs(v) > 0.5 {
		t.Fatalf("first wind-up sample should be within half a cycle of zero, got %g", v)
	}
}

func TestWindUpRepeatedEpochReturnsCachedValue(t *testing.T) {
	w := NewWindUp()
	ti := gtime.FromGpsWeekSec(2200, 100000)
	rSat := gtime.Vec3{20000e3, 0, 15000e3}
	rRec := gtime.Vec3{6378137, 0, 0}
	first := w.Value(ti, testPrn(), rRec, rSat)
	second := w.Value(ti, testPrn(), rRec, rSat)
	if first != second {
		t.Fatalf("expected identical wind-up for an unchanged epoch: %g vs %g", first, second)
	}
}

func TestVTecLayerValueNonNegative(t *testing.T) {
	c := [][]float64{{10}, {1, 1}}
	s := [][]float64{{0}, {0, 1}}
	pp := PiercePoint{PhiPP: 0.3, LonS: 0.2}
	v := VTecLayerValue(c, s, pp)
	if v < 0 {
		t.Fatalf("vtec must be clamped to >=0, got %g", v)
	}
}

func TestAssociatedLegendreDegreeZero(t *testing.T) {
	if got := associatedLegendre(0, 0, 0.5); got != 1.0 {
		t.Fatalf("P_0^0 must be 1 for all t, got %g", got)
	}
}

func TestComputePiercePointWithinReasonableRange(t *testing.T) {
	pp := ComputePiercePoint(450e3, 0.5, 1.0, 0, 0.8, 0.2, 40000)
	if math.Abs(pp.PhiPP) > math.Pi/2.0 {
		t.Fatalf("pierce point latitude out of range: %g", pp.PhiPP)
	}
}

func TestParseAntexLooksUpByTypeAndFallsBackToNull(t *testing.T) {
	atx := strings.Join([]string{
		pad("                                                            START OF ANTENNA"),
		pad("NULLANTENNA                                                TYPE / SERIAL NO"),
		pad("     1                                                     START OF FREQUENCY"),
		pad("   0.0   0.0   0.1                                         NORTH / EAST / UP"),
		pad("    0     0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00  0.00   NOAZI"),
		pad("     1                                                     END OF FREQUENCY"),
		pad("                                                            END OF ANTENNA"),
	}, "\n")

	tbl, err := ParseAntex(strings.NewReader(atx))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pcv, exact := tbl.Lookup("SOME/UNKNOWN/RADOME")
	if exact {
		t.Fatalf("expected a fallback lookup, not an exact match")
	}
	n, e, u := pcv.NEU(0)
	if n != 0 || e != 0 || u != 0 {
		t.Fatalf("unmapped frequency 0 should report a zero offset, got %v %v %v", n, e, u)
	}
}

func pad(s string) string {
	// Test fixture lines already right-pad their label into column 61+;
	// nothing further to do, kept as a named helper for readability.
	return s
}

func testPrn() prn.Prn { return prn.Prn{System: prn.GPS, Number: 1} }
