package ssr

import (
	"testing"

	"bncgo/internal/bitio"
	"bncgo/internal/prn"
)

// allPending flattens a Decoder's pending buffer. The flush policy only
// releases a key once something strictly newer has arrived, so a lone
// decode() call never returns its own events via decode()'s return value —
// tests inspect the buffer directly instead of relying on that return value.
func allPending(d *Decoder) []Event {
	var out []Event
	for _, evs := range d.pending {
		out = append(out, evs...)
	}
	return out
}

// orbitHeader packs the common SSR header fields (epoch through nsat) into
// payload starting at bit 24, matching ssrHead's layout for a constellation
// whose header carries the reference-datum bit.
func orbitHeader(payload []byte, epochRaw uint32, udi, iod, providerID, solutionID, nsat int) int {
	i := 24
	bitio.SetBitU(payload, i, 20, epochRaw)
	i += 20
	bitio.SetBitU(payload, i, 4, uint32(udi))
	i += 4
	bitio.SetBitU(payload, i, 1, 1) // sync
	i += 1
	bitio.SetBitU(payload, i, 1, 0) // refDatum
	i += 1
	bitio.SetBitU(payload, i, 4, uint32(iod))
	i += 4
	bitio.SetBitU(payload, i, 16, uint32(providerID))
	i += 16
	bitio.SetBitU(payload, i, 4, uint32(solutionID))
	i += 4
	bitio.SetBitU(payload, i, 6, uint32(nsat))
	i += 6
	return i
}

func TestDecodeOrbitGPS(t *testing.T) {
	payload := make([]byte, 27)
	bitio.SetBitU(payload, 0, 12, 1057) // GPS orbit

	i := orbitHeader(payload, 100000, 5, 3, 256, 2, 1)

	bitio.SetBitU(payload, i, 6, 5) // PRN 5
	i += 6
	bitio.SetBitU(payload, i, 8, 10) // IODE 10
	i += 8
	bitio.SetBits(payload, i, 22, 100)
	i += 22
	bitio.SetBits(payload, i, 20, 50)
	i += 20
	bitio.SetBits(payload, i, 20, -50)
	i += 20
	bitio.SetBits(payload, i, 21, 10)
	i += 21
	bitio.SetBits(payload, i, 19, 5)
	i += 19
	bitio.SetBits(payload, i, 19, -5)
	i += 19

	d := NewDecoder(2200)
	if _, err := d.decode(payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	events := allPending(d)
	var got *Event
	for idx := range events {
		if events[idx].OrbCorr != nil {
			got = &events[idx]
		}
	}
	if got == nil {
		t.Fatalf("no OrbCorr event among %d pending events", len(events))
	}
	oc := got.OrbCorr
	if oc.Prn != (prn.Prn{System: prn.GPS, Number: 5}) {
		t.Fatalf("prn: got %v", oc.Prn)
	}
	if oc.Iod != 10 {
		t.Fatalf("iod (expect satellite IODE, not header iod): got %d", oc.Iod)
	}
	if d.iodByPrn[oc.Prn] != 10 {
		t.Fatalf("iodByPrn not anchored to satellite IODE: got %d", d.iodByPrn[oc.Prn])
	}
	wantXr := [3]float64{0.01, 0.02, -0.02}
	if oc.Xr != wantXr {
		t.Fatalf("xr: got %v want %v", oc.Xr, wantXr)
	}
	// Same float64 products as the decoder's LSB scaling (10 x 1e-6 is
	// not exactly 1e-5 in binary floating point).
	dotScale := [3]float64{1e-6, 4e-6, 4e-6}
	wantDotXr := [3]float64{10 * dotScale[0], 5 * dotScale[1], -5 * dotScale[2]}
	if oc.DotXr != wantDotXr {
		t.Fatalf("dotXr: got %v want %v", oc.DotXr, wantDotXr)
	}
}

func TestDecodeClockAnchorsToPriorOrbitIOD(t *testing.T) {
	d := NewDecoder(2200)

	orbit := make([]byte, 27)
	bitio.SetBitU(orbit, 0, 12, 1057)
	i := orbitHeader(orbit, 100000, 5, 3, 256, 2, 1)
	bitio.SetBitU(orbit, i, 6, 5)
	i += 6
	bitio.SetBitU(orbit, i, 8, 77) // IODE 77
	i += 8
	bitio.SetBits(orbit, i, 22, 0)
	i += 22
	bitio.SetBits(orbit, i, 20, 0)
	i += 20
	bitio.SetBits(orbit, i, 20, 0)
	i += 20
	bitio.SetBits(orbit, i, 21, 0)
	i += 21
	bitio.SetBits(orbit, i, 19, 0)
	i += 19
	bitio.SetBits(orbit, i, 19, 0)
	i += 19
	if _, err := d.decode(orbit); err != nil {
		t.Fatalf("seed orbit decode: %v", err)
	}

	clock := make([]byte, 20)
	bitio.SetBitU(clock, 0, 12, 1058) // GPS clock
	ci := 24
	bitio.SetBitU(clock, ci, 20, 100010)
	ci += 20
	bitio.SetBitU(clock, ci, 4, 5)
	ci += 4
	bitio.SetBitU(clock, ci, 1, 1) // sync, no refDatum bit for plain clock
	ci += 1
	bitio.SetBitU(clock, ci, 4, 3)
	ci += 4
	bitio.SetBitU(clock, ci, 16, 256)
	ci += 16
	bitio.SetBitU(clock, ci, 4, 2)
	ci += 4
	bitio.SetBitU(clock, ci, 6, 1)
	ci += 6
	bitio.SetBitU(clock, ci, 6, 5) // PRN 5
	ci += 6
	bitio.SetBits(clock, ci, 22, 500)
	ci += 22
	bitio.SetBits(clock, ci, 21, 0)
	ci += 21
	bitio.SetBits(clock, ci, 27, 0)

	if _, err := d.decode(clock); err != nil {
		t.Fatalf("decode clock: %v", err)
	}

	events := allPending(d)
	var got *Event
	for idx := range events {
		if events[idx].ClkCorr != nil {
			got = &events[idx]
		}
	}
	if got == nil {
		t.Fatalf("no ClkCorr event among %d pending events", len(events))
	}
	if got.ClkCorr.Iod != 77 {
		t.Fatalf("clock not anchored to orbit IODE: got %d", got.ClkCorr.Iod)
	}
	wantDClk := 500 * 1e-4 / clight
	if got.ClkCorr.DClk != wantDClk {
		t.Fatalf("dclk: got %g want %g", got.ClkCorr.DClk, wantDClk)
	}
}

func TestDecodeClockSkipsUnanchoredSatellite(t *testing.T) {
	d := NewDecoder(2200)
	clock := make([]byte, 20)
	bitio.SetBitU(clock, 0, 12, 1058)
	ci := 24
	bitio.SetBitU(clock, ci, 20, 100000)
	ci += 20
	bitio.SetBitU(clock, ci, 4, 5)
	ci += 4
	ci += 1 // sync
	bitio.SetBitU(clock, ci, 4, 0)
	ci += 4
	bitio.SetBitU(clock, ci, 16, 1)
	ci += 16
	bitio.SetBitU(clock, ci, 4, 0)
	ci += 4
	bitio.SetBitU(clock, ci, 6, 1)
	ci += 6
	bitio.SetBitU(clock, ci, 6, 9) // PRN never seen by an orbit message

	events, err := d.decode(clock)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, ev := range append(events, allPending(d)...) {
		if ev.ClkCorr != nil {
			t.Fatalf("expected unanchored clock correction to be skipped, got %+v", ev.ClkCorr)
		}
	}
}

func TestDecodeCombinedEmitsBothOrbitAndClock(t *testing.T) {
	payload := make([]byte, 40)
	bitio.SetBitU(payload, 0, 12, 1060) // GPS combined (1057+3)
	i := orbitHeader(payload, 200000, 5, 1, 10, 0, 1)

	bitio.SetBitU(payload, i, 6, 12) // PRN 12
	i += 6
	bitio.SetBitU(payload, i, 8, 21) // IODE 21
	i += 8
	bitio.SetBits(payload, i, 22, 0)
	i += 22
	bitio.SetBits(payload, i, 20, 0)
	i += 20
	bitio.SetBits(payload, i, 20, 0)
	i += 20
	bitio.SetBits(payload, i, 21, 0)
	i += 21
	bitio.SetBits(payload, i, 19, 0)
	i += 19
	bitio.SetBits(payload, i, 19, 0)
	i += 19
	bitio.SetBits(payload, i, 22, 1000)
	i += 22
	bitio.SetBits(payload, i, 21, 0)
	i += 21
	bitio.SetBits(payload, i, 27, 0)
	i += 27

	d := NewDecoder(2200)
	if _, err := d.decode(payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	events := allPending(d)
	var haveOrbit, haveClock bool
	for _, ev := range events {
		if ev.OrbCorr != nil {
			haveOrbit = true
			if ev.OrbCorr.Iod != 21 {
				t.Fatalf("combined orbit iod: got %d want 21", ev.OrbCorr.Iod)
			}
		}
		if ev.ClkCorr != nil {
			haveClock = true
			if ev.ClkCorr.Iod != 21 {
				t.Fatalf("combined clock iod: got %d want 21 (shares the satellite's own orbit IOD)", ev.ClkCorr.Iod)
			}
			wantDClk := 1000 * 1e-4 / clight
			if ev.ClkCorr.DClk != wantDClk {
				t.Fatalf("combined dclk: got %g want %g", ev.ClkCorr.DClk, wantDClk)
			}
		}
	}
	if !haveOrbit || !haveClock {
		t.Fatalf("combined message must emit both orbit and clock events: orbit=%v clock=%v", haveOrbit, haveClock)
	}
	if d.iodByPrn[prn.Prn{System: prn.GPS, Number: 12}] != 21 {
		t.Fatalf("combined message must also anchor iodByPrn for later standalone clock messages")
	}
}
