package rinexout

import (
	"bytes"
	"strings"
	"testing"

	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestWriteHeaderEmitsEndOfHeader(t *testing.T) {
	var buf bytes.Buffer
	cw := NewClockWriter(&buf, "bncgo", "unknown")
	if err := cw.WriteHeader(gtime.Set(2024, 1, 1, 0, 0, 0), []prn.Prn{{System: prn.GPS, Number: 1}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "RINEX VERSION / TYPE") {
		t.Fatalf("missing version record: %s", out)
	}
	if !strings.Contains(out, "END OF HEADER") {
		t.Fatalf("missing end-of-header record: %s", out)
	}
	if !strings.Contains(out, "G01") {
		t.Fatalf("expected PRN list to contain G01: %s", out)
	}
}

func TestWriteEpochAutoWritesHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	cw := NewClockWriter(&buf, "bncgo", "unknown")
	clocks := map[prn.Prn]*ephemeris.ClkCorr{
		{System: prn.GPS, Number: 5}: {DClk: 0.0001},
	}
	tt := gtime.Set(2024, 1, 1, 0, 0, 0)
	if err := cw.WriteEpoch(tt, clocks); err != nil {
		t.Fatalf("WriteEpoch: %v", err)
	}
	if err := cw.WriteEpoch(tt.Add(30), clocks); err != nil {
		t.Fatalf("WriteEpoch: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "RINEX VERSION / TYPE") != 1 {
		t.Fatalf("expected header written exactly once, got:\n%s", out)
	}
	if strings.Count(out, "AS G05") != 2 {
		t.Fatalf("expected two AS records for G05, got:\n%s", out)
	}
}
