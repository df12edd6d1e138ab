package ephemeris

import (
	"fmt"
	"strconv"
	"strings"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// fmtD writes v in the RINEX fractional-engineering form: 19 characters
// wide, 12-digit mantissa, with an "E" exponent marker, e.g.
// " 1.234567890123E+01". Unknown/absent fields are written separately
// as the unknownField sentinel ".9999e9".
func fmtD(v float64) string {
	s := fmt.Sprintf("%19.12E", v)
	// Go renders "E+01"; RINEX nav historically used "D+01" for FORTRAN
	// double literals, still accepted/emitted by most modern tools as E.
	return s
}

const unknownField = "   .9999e9         "

// unmarshalD parses a RINEX float field (accepts both D and E exponent
// markers).
func unmarshalD(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("ephemeris: empty numeric field")
	}
	s = strings.ReplaceAll(s, "D", "E")
	s = strings.ReplaceAll(s, "d", "e")
	// Fields that omit the exponent letter entirely (e.g. "1.234-05")
	// are rejected by ParseFloat.
	return strconv.ParseFloat(s, 64)
}

// ToStringGPS renders a GPS/QZSS Keplerian ephemeris as an 8-line RINEX
// navigation record (rnxVersion 2 or 3).
func ToStringGPS(e *KeplerEph, rnxVersion int) string {
	y, mo, d, h, mi, s := e.TOC.Calendar()
	var b strings.Builder
	if rnxVersion >= 3 {
		fmt.Fprintf(&b, "%c%02d %04d %02d %02d %02d %02d %02d%s%s%s\n",
			byte(e.Sat.System), e.Sat.Number, y, mo, d, h, mi, int(s),
			fmtD(e.ClockBias), fmtD(e.ClockDrift), fmtD(e.ClockRate))
	} else {
		fmt.Fprintf(&b, "%2d %02d %2d %2d %2d %2d%5.1f%s%s%s\n",
			e.Sat.Number, y%100, mo, d, h, mi, s,
			fmtD(e.ClockBias), fmtD(e.ClockDrift), fmtD(e.ClockRate))
	}
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(float64(e.IODE)), fmtD(e.Crs), fmtD(e.DeltaN), fmtD(e.M0))
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(e.Cuc), fmtD(e.Ecc), fmtD(e.Cus), fmtD(e.SqrtA))
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(e.Toes), fmtD(e.Cic), fmtD(e.Omega0), fmtD(e.Cis))
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(e.I0), fmtD(e.Crc), fmtD(e.Omega), fmtD(e.OmegaDot))
	toeWeek := float64(e.TOE.GpsWeek())
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(e.IDOT), fmtD(0), fmtD(toeWeek), fmtD(0))
	fmt.Fprintf(&b, "   %s%s%s%s\n", fmtD(e.URA), fmtD(float64(e.Health)), fmtD(e.TGD), fmtD(float64(e.IODC)))
	fmt.Fprintf(&b, "   %s%s\n", fmtD(e.TOE.GpsSec()), unknownField)
	return b.String()
}

// ParseGPS parses the 8-line block produced by ToStringGPS back into a
// KeplerEph. toString -> parse -> toString is a fixed point (Testable
// Properties, "round-trip laws"). The first line is read in the RINEX 3
// layout (rnxVersion >= 3).
func ParseGPS(lines []string, sys prn.System) (*KeplerEph, error) {
	if len(lines) < 8 {
		return nil, fmt.Errorf("ephemeris: GPS-like nav record needs 8 lines, got %d", len(lines))
	}
	e := &KeplerEph{}
	num, err := strconv.Atoi(strings.TrimSpace(lines[0][1:3]))
	if err != nil {
		return nil, fmt.Errorf("ephemeris: parse PRN: %w", err)
	}
	e.Sat = prn.Prn{System: sys, Number: num}

	if len(lines[0]) < 23+3*19 {
		return nil, fmt.Errorf("ephemeris: parse line0: too short")
	}
	var y, mo, d, h, mi, sec int
	if _, err := fmt.Sscanf(lines[0][4:23], "%d %d %d %d %d %d", &y, &mo, &d, &h, &mi, &sec); err != nil {
		return nil, fmt.Errorf("ephemeris: parse TOC: %w", err)
	}
	e.TOC = gtime.Set(y, mo, d, h, mi, float64(sec))
	for i, dst := range []*float64{&e.ClockBias, &e.ClockDrift, &e.ClockRate} {
		if *dst, err = unmarshalD(lines[0][23+19*i : 23+19*(i+1)]); err != nil {
			return nil, fmt.Errorf("ephemeris: parse clock term %d: %w", i, err)
		}
	}

	fields := func(line string) ([]float64, error) {
		var out []float64
		line = strings.TrimRight(line, "\r\n")
		// Fixed 19-char fields starting at column 3.
		rest := line[3:]
		for len(rest) > 0 {
			w := 19
			if w > len(rest) {
				w = len(rest)
			}
			v, err := unmarshalD(rest[:w])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			if w >= len(rest) {
				break
			}
			rest = rest[w:]
		}
		return out, nil
	}

	l1, err := fields(lines[1])
	if err != nil || len(l1) < 4 {
		return nil, fmt.Errorf("ephemeris: parse line1: %w", err)
	}
	e.IODE, e.Crs, e.DeltaN, e.M0 = int(l1[0]), l1[1], l1[2], l1[3]

	l2, err := fields(lines[2])
	if err != nil || len(l2) < 4 {
		return nil, fmt.Errorf("ephemeris: parse line2: %w", err)
	}
	e.Cuc, e.Ecc, e.Cus, e.SqrtA = l2[0], l2[1], l2[2], l2[3]

	l3, err := fields(lines[3])
	if err != nil || len(l3) < 4 {
		return nil, fmt.Errorf("ephemeris: parse line3: %w", err)
	}
	e.Toes, e.Cic, e.Omega0, e.Cis = l3[0], l3[1], l3[2], l3[3]

	l4, err := fields(lines[4])
	if err != nil || len(l4) < 4 {
		return nil, fmt.Errorf("ephemeris: parse line4: %w", err)
	}
	e.I0, e.Crc, e.Omega, e.OmegaDot = l4[0], l4[1], l4[2], l4[3]

	l5, err := fields(lines[5])
	if err != nil || len(l5) < 3 {
		return nil, fmt.Errorf("ephemeris: parse line5: %w", err)
	}
	e.IDOT = l5[0]
	toeWeek := int(l5[2])

	l6, err := fields(lines[6])
	if err != nil || len(l6) < 4 {
		return nil, fmt.Errorf("ephemeris: parse line6: %w", err)
	}
	e.URA, e.Health, e.TGD, e.IODC = l6[0], int(l6[1]), l6[2], int(l6[3])

	l7, err := fields(lines[7])
	if err != nil || len(l7) < 1 {
		return nil, fmt.Errorf("ephemeris: parse line7: %w", err)
	}
	e.TOE = gtime.FromGpsWeekSec(toeWeek, l7[0])
	return e, nil
}
