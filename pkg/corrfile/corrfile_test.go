package corrfile

import (
	"bytes"
	"io"
	"testing"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestWriteThenReadClockBlockRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	tt := gtime.Set(2024, 3, 15, 12, 0, 0)
	recs := []ClockRecord{
		{Prn: prn.Prn{System: prn.GPS, Number: 5}, Iod: 12, DClk: 0.0012, DotDClk: -1e-6, DotDot: 0},
	}
	w := NewWriter(&buf)
	if err := w.WriteClocks(tt, 5, "STA1", recs); err != nil {
		t.Fatalf("WriteClocks: %v", err)
	}

	r := NewReader(&buf)
	ep, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ep.Type != TypeClock || len(ep.Clocks) != 1 {
		t.Fatalf("unexpected epoch: %+v", ep)
	}
	if ep.Clocks[0].Prn.Number != 5 || ep.Clocks[0].Iod != 12 {
		t.Fatalf("unexpected clock record: %+v", ep.Clocks[0])
	}
	if ep.StaID != "STA1" {
		t.Fatalf("expected staID STA1, got %q", ep.StaID)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestWriteThenReadPhaseBiasPreservesIndicators(t *testing.T) {
	var buf bytes.Buffer
	tt := gtime.Set(2024, 3, 15, 12, 0, 0)
	recs := []PhaseBiasRecord{
		{Prn: prn.Prn{System: prn.GPS, Number: 1}, YawDeg: 12.5, YawRate: 0.01,
			Biases: []PhaseValue{{Code: "1C", Value: 0.05, IntegerInd: 1, WideLaneInd: 0, JumpCounter: 3}}},
	}
	w := NewWriter(&buf)
	if err := w.WritePhaseBiases(tt, 5, "STA1", true, false, recs); err != nil {
		t.Fatalf("WritePhaseBiases: %v", err)
	}

	r := NewReader(&buf)
	ep, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ep.DispersiveCons || ep.MWCons {
		t.Fatalf("expected dispersiveCons=true mwCons=false, got %v %v", ep.DispersiveCons, ep.MWCons)
	}
	if len(ep.PhaseBiases) != 1 || len(ep.PhaseBiases[0].Biases) != 1 {
		t.Fatalf("unexpected phase biases: %+v", ep.PhaseBiases)
	}
	pv := ep.PhaseBiases[0].Biases[0]
	if pv.Code != "1C" || pv.IntegerInd != 1 || pv.JumpCounter != 3 {
		t.Fatalf("unexpected phase-bias entry: %+v", pv)
	}
}

func TestWriteThenReadVTecPreservesCoefficientMatrices(t *testing.T) {
	var buf bytes.Buffer
	tt := gtime.Set(2024, 3, 15, 12, 0, 0)
	recs := []VTecRecord{
		{Idx: 0, N: 1, M: 1, Height: 450000,
			Cos: [][]float64{{1, 2}, {3, 4}},
			Sin: [][]float64{{5, 6}, {7, 8}}},
	}
	w := NewWriter(&buf)
	if err := w.WriteVTec(tt, 300, "", recs); err != nil {
		t.Fatalf("WriteVTec: %v", err)
	}

	r := NewReader(&buf)
	ep, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(ep.VTec) != 1 {
		t.Fatalf("expected 1 VTEC layer, got %d", len(ep.VTec))
	}
	got := ep.VTec[0]
	if got.Cos[1][1] != 4 || got.Sin[1][1] != 8 {
		t.Fatalf("coefficient mismatch: %+v", got)
	}
}

func TestReaderSkipsCommentsAndBlankLines(t *testing.T) {
	input := "! a comment\n\n> CLOCK 2024 03 15 12 00 00.000000 5 0 STA1\n"
	r := NewReader(bytes.NewBufferString(input))
	ep, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ep.Type != TypeClock || len(ep.Clocks) != 0 {
		t.Fatalf("unexpected epoch: %+v", ep)
	}
}
