package rinex

import (
	"testing"

	"bncgo/internal/prn"
)

func TestV3to2P1P2(t *testing.T) {
	if got := V3to2(prn.GPS, "1W"); got != "P1" {
		t.Fatalf("GPS 1W -> %q, want P1", got)
	}
	if got := V3to2(prn.GAL, "1P"); got != "P1" {
		t.Fatalf("GAL 1P -> %q, want P1", got)
	}
	if got := V3to2(prn.GPS, "2W"); got != "P2" {
		t.Fatalf("GPS 2W -> %q, want P2", got)
	}
	if got := V3to2(prn.GPS, "1C"); got != "1C" {
		t.Fatalf("GPS 1C -> %q, want identity", got)
	}
}

func TestV2to3RoundTripP1(t *testing.T) {
	v3 := V2to3(prn.GPS, "P1")
	if v3 != "1W" {
		t.Fatalf("V2to3(GPS,P1) = %q, want 1W", v3)
	}
	if back := V3to2(prn.GPS, v3); back != "P1" {
		t.Fatalf("round trip broke: %q", back)
	}
}

func TestPreferredV3GPS(t *testing.T) {
	// L1 band: priority is C before S before L... "1&CSLXPWYMN"
	got := PreferredV3(prn.GPS, []string{"1X", "1C", "1W"})
	if got != "1C" {
		t.Fatalf("PreferredV3 = %q, want 1C", got)
	}
}

func TestPreferredV3NoMatch(t *testing.T) {
	if got := PreferredV3(prn.GPS, []string{"9Z"}); got != "" {
		t.Fatalf("expected no match, got %q", got)
	}
}
