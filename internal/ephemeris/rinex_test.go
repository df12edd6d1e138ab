package ephemeris

import (
	"strings"
	"testing"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

func TestGPSRinexRoundTrip(t *testing.T) {
	toe := gtime.FromGpsWeekSec(2200, 345600)
	e := &KeplerEph{
		Sat:        prn.Prn{System: prn.GPS, Number: 12},
		TOC:        toe,
		TOE:        toe,
		ClockBias:  1.234e-5,
		ClockDrift: 2.3e-11,
		ClockRate:  0,
		SqrtA:      5153.7,
		Ecc:        0.0123,
		M0:         1.1,
		DeltaN:     4.3e-9,
		Omega0:     2.1,
		Omega:      0.9,
		OmegaDot:   -8.1e-9,
		I0:         0.96,
		IDOT:       1.2e-10,
		Crc:        210.5,
		Crs:        -15.2,
		Cuc:        1.1e-6,
		Cus:        5.2e-6,
		Cic:        -3.1e-8,
		Cis:        2.2e-8,
		Toes:       345600,
		IODE:       42,
		IODC:       42,
		TGD:        -1.1e-8,
		URA:        2.0,
		Health:     0,
	}

	text := ToStringGPS(e, 3)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	got, err := ParseGPS(lines, prn.GPS)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	text2 := ToStringGPS(got, 3)
	if text != text2 {
		t.Fatalf("toString->parse->toString not a fixed point:\n%s\nvs\n%s", text, text2)
	}
	if got.IODE != 42 || got.Sat.Number != 12 {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}
