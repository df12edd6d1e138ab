package reencoder

import (
	"strings"
	"testing"

	"bncgo/internal/bitio"
	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestParseRTNetEpochHeaderAndSatBlock(t *testing.T) {
	src := `* 2026 07 31 12 0 0.000
G01 APC 3 -11044123.456 22310456.789 10456789.123 Clk 1 123456.789 CodeBias 2 1C 0.12 2W -0.08 PhaseBias 1 1C 0.045 1 0 3
IND 1 0
EOE
`
	ep, err := NewRTNetScanner(strings.NewReader(src)).Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(ep.Sats) != 1 {
		t.Fatalf("expected 1 sat record, got %d", len(ep.Sats))
	}
	rec := ep.Sats[0]
	if !rec.HasAPC || rec.APC[1] != 22310456.789 {
		t.Fatalf("APC not parsed correctly: %+v", rec)
	}
	if !rec.HasClk || rec.Clk != 123456.789 {
		t.Fatalf("Clk not parsed correctly: %+v", rec)
	}
	if len(rec.CodeBias) != 2 || rec.CodeBias[0].Code != "1C" {
		t.Fatalf("CodeBias not parsed correctly: %+v", rec.CodeBias)
	}
	if len(rec.PhaseBias) != 1 || rec.PhaseBias[0].WideLaneIndicator != 0 {
		t.Fatalf("PhaseBias not parsed correctly: %+v", rec.PhaseBias)
	}
	if !ep.DispersiveBiasCons || ep.MWCons {
		t.Fatalf("IND indicators not parsed correctly: disp=%v mw=%v", ep.DispersiveBiasCons, ep.MWCons)
	}
}

func TestParseVTecLine(t *testing.T) {
	line := "VTEC 300 1 0 1 1 450000.0 1.0 2.0 3.0 4.0 0.1 0.2 0.3 0.4"
	v, err := parseVTec(line)
	if err != nil {
		t.Fatalf("parseVTec: %v", err)
	}
	if len(v.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(v.Layers))
	}
	layer := v.Layers[0]
	if layer.N != 1 || layer.M != 1 || layer.Height != 450000.0 {
		t.Fatalf("layer header wrong: %+v", layer)
	}
	if layer.C[0][0] != 1.0 || layer.C[1][1] != 4.0 || layer.S[0][0] != 0.1 {
		t.Fatalf("coefficients wrong: %+v", layer)
	}
}

func TestTransformIdentityWhenParamsZero(t *testing.T) {
	x := gtime3(1, 2, 3)
	out := Transform(x, HelmertParams{}, 2020.0)
	if out != x {
		t.Fatalf("identity transform should not move the point, got %v want %v", out, x)
	}
}

func TestTransformETRF2000DriftScalesWithYear(t *testing.T) {
	x := gtime3(6378137, 0, 0)
	p := LookupFrame(FrameETRF2000)
	near := Transform(x, p, p.T0)
	far := Transform(x, p, p.T0+10)
	if near == far {
		t.Fatalf("a 10-year drift should change the transformed point")
	}
}

func TestScaleClockAdjustmentZeroAtReferenceScale(t *testing.T) {
	x := gtime3(6378137, 0, 0)
	p := HelmertParams{Sc: 0, T0: 2000}
	dc := ScaleClockAdjustment(x, p, 2000, 299792458.0)
	if dc != 0 {
		t.Fatalf("zero scale offset should produce zero dc, got %v", dc)
	}
}

func TestFrameRoundTripWithinOneMillimeter(t *testing.T) {
	// §8 "Helmert transform is its own inverse modulo sign of (dx, omega,
	// sc) — round-trip identity within 1 mm."
	p := LookupFrame(FrameETRF2000)
	x := gtime3(4027893.985, 307041.863, 4919474.714)
	year := 2020.0
	fwd := Transform(x, p, year)

	inv := HelmertParams{
		Dx: -p.Dx, Dy: -p.Dy, Dz: -p.Dz,
		Dxr: -p.Dxr, Dyr: -p.Dyr, Dzr: -p.Dzr,
		Ox: -p.Ox, Oy: -p.Oy, Oz: -p.Oz,
		Oxr: -p.Oxr, Oyr: -p.Oyr, Ozr: -p.Ozr,
		Sc: -p.Sc, Scr: -p.Scr,
		T0: p.T0,
	}
	back := Transform(fwd, inv, year)
	for i := 0; i < 3; i++ {
		if d := back[i] - x[i]; d > 1e-3 || d < -1e-3 {
			t.Fatalf("round trip drifted by %.6f m on axis %d: got %v want %v", d, i, back, x)
		}
	}
}

func TestOrbitMessageFramesWithValidCRC(t *testing.T) {
	e := &Encoder{ProviderID: 1, SolutionID: 1}
	orbits := map[prn.Prn]*ephemeris.OrbCorr{
		{System: prn.GPS, Number: 1}: {
			Prn: prn.Prn{System: prn.GPS, Number: 1},
			Iod: 5,
			Xr:  gtime.Vec3{0.12, -0.34, 0.05},
		},
	}
	frame, err := e.OrbitMessage(prn.GPS, false, 5, 5.0, 0, orbits)
	if err != nil {
		t.Fatalf("OrbitMessage: %v", err)
	}
	if len(frame) < 6 || frame[0] != rtcm3Preamble {
		t.Fatalf("expected a preamble-led frame, got %x", frame[:min(len(frame), 6)])
	}
	n := len(frame)
	want := bitio.CRC24Q(frame[:n-3])
	got := bitio.GetBitU(frame, (n-3)*8, 24)
	if got != want {
		t.Fatalf("CRC mismatch: frame CRC=%x computed=%x", got, want)
	}
}

func TestCombinedMessageFramesWithValidCRC(t *testing.T) {
	e := &Encoder{ProviderID: 2, SolutionID: 1}
	sat1 := prn.Prn{System: prn.GPS, Number: 1}
	orbits := map[prn.Prn]*ephemeris.OrbCorr{sat1: {Prn: sat1, Iod: 3, Xr: gtime.Vec3{0.1, 0.2, 0.3}}}
	clocks := map[prn.Prn]*ephemeris.ClkCorr{sat1: {Prn: sat1, Iod: 3, DClk: 1.23e-9}}
	frame, err := e.CombinedMessage(prn.GPS, false, 3, 5.0, 0, orbits, clocks)
	if err != nil {
		t.Fatalf("CombinedMessage: %v", err)
	}
	n := len(frame)
	if bitio.GetBitU(frame, (n-3)*8, 24) != bitio.CRC24Q(frame[:n-3]) {
		t.Fatalf("CRC mismatch in combined message")
	}
}

func TestOrbitMessageErrorsWithNoSatellites(t *testing.T) {
	e := &Encoder{}
	if _, err := e.OrbitMessage(prn.GPS, false, 0, 5.0, 0, nil); err == nil {
		t.Fatalf("expected an error with no orbit corrections")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func gtime3(x, y, z float64) gtime.Vec3 { return gtime.Vec3{x, y, z} }
