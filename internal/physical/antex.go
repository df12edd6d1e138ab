package physical

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// nullAntenna is the ANTEX wildcard entry used when no exact antenna/
// radome match exists (§4.F "missing ANTEX entry").
const nullAntenna = "NULLANTENNA"

// AntennaPCV is one ANTEX "START OF ANTENNA" block: per-frequency phase
// center offset (NEU, m) and zenith/nadir-indexed variation pattern (m),
// grounded on the Pcv type (types.go) and ReadAntex (common.go).
type AntennaPCV struct {
	Type string
	// Offset and Variation are keyed by the wire frequency number
	// (1, 2, 5, ...), matching ReadAntex's freqs table.
	Offset    map[int][3]float64
	Variation map[int][19]float64
}

// AntexTable is a parsed ANTEX file, looked up by antenna type string.
type AntexTable struct {
	byType map[string]*AntennaPCV
}

// ParseAntex reads an ANTEX (.atx) stream, grounded on ReadAntex
// (common.go): column layout and block delimiters ("START/END OF
// ANTENNA", "START/END OF FREQUENCY", "NORTH / EAST / UP", "NOAZI")
// follow the same fixed-width convention. Only receiver antennas
// (entries with no satellite code) are modeled, matching this
// component's PPP-antenna use.
func ParseAntex(r io.Reader) (*AntexTable, error) {
	t := &AntexTable{byType: make(map[string]*AntennaPCV)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var cur *AntennaPCV
	var freq int
	inBlock := false

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 61 {
			continue
		}
		label := strings.TrimSpace(line[60:])
		if strings.Contains(label, "COMMENT") {
			continue
		}

		switch {
		case strings.Contains(label, "START OF ANTENNA"):
			cur = &AntennaPCV{Offset: map[int][3]float64{}, Variation: map[int][19]float64{}}
			inBlock = true
			continue
		case strings.Contains(label, "END OF ANTENNA"):
			if cur != nil {
				t.byType[strings.TrimSpace(cur.Type)] = cur
			}
			cur = nil
			inBlock = false
			continue
		}
		if !inBlock || cur == nil {
			continue
		}

		switch {
		case strings.Contains(label, "TYPE / SERIAL NO"):
			if len(line) >= 20 {
				cur.Type = strings.TrimSpace(line[:20])
			}
		case strings.Contains(label, "START OF FREQUENCY"):
			fields := strings.Fields(line[:60])
			if len(fields) == 0 {
				continue
			}
			code := fields[0]
			freq = freqFromCode(code)
		case strings.Contains(label, "END OF FREQUENCY"):
			freq = 0
		case strings.Contains(label, "NORTH / EAST / UP"):
			if freq == 0 {
				continue
			}
			vals := parseFloats(line[:60], 3)
			if len(vals) < 3 {
				continue
			}
			// Receiver antenna fields are north/east/up on the wire;
			// they are stored reordered as (e,n,u), as ReadAntex does.
			cur.Offset[freq] = [3]float64{vals[1], vals[0], vals[2]}
		case strings.Contains(label, "NOAZI"):
			if freq == 0 {
				continue
			}
			vals := parseFloats(line[8:], 19)
			var pat [19]float64
			last := 0.0
			for i := 0; i < 19; i++ {
				if i < len(vals) {
					pat[i] = vals[i]
					last = vals[i]
				} else {
					pat[i] = last
				}
			}
			cur.Variation[freq] = pat
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("physical: parse antex: %w", err)
	}
	return t, nil
}

var antexFreqCodes = map[string]int{"G01": 1, "G02": 2, "G05": 5, "R01": 1, "R02": 2, "E01": 1, "E05": 5, "C02": 1, "C06": 2, "C07": 5}

func freqFromCode(code string) int {
	if f, ok := antexFreqCodes[code]; ok {
		return f
	}
	return 0
}

func parseFloats(s string, n int) []float64 {
	out := make([]float64, 0, n)
	for _, f := range strings.Fields(s) {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Lookup returns the antenna entry for typ, falling back to the
// NULLANTENNA wildcard and finally to a zero-valued entry if neither
// exists (§4.F "missing ANTEX entry": warn, value=0 — the caller is
// expected to log the fallback).
func (t *AntexTable) Lookup(typ string) (*AntennaPCV, bool) {
	if p, ok := t.byType[strings.TrimSpace(typ)]; ok {
		return p, true
	}
	if p, ok := t.byType[nullAntenna]; ok {
		return p, false
	}
	return &AntennaPCV{Offset: map[int][3]float64{}, Variation: map[int][19]float64{}}, false
}

// PCV returns the zenith-interpolated phase center variation (m) for
// frequency freq at zenith angle zenDeg (degrees, 0-90), grounded on
// InterPVar (common.go): the 19-entry pattern is sampled every 5
// degrees of zenith/nadir, with the edge indices clamped.
func (p *AntennaPCV) PCV(freq int, zenDeg float64) float64 {
	pat, ok := p.Variation[freq]
	if !ok {
		return 0
	}
	a := zenDeg / 5.0
	i := int(a)
	if i < 0 {
		return pat[0]
	} else if i >= 18 {
		return pat[18]
	}
	return pat[i]*(1.0-a+float64(i)) + pat[i+1]*(a-float64(i))
}

// NEU returns the phase-center offset (north, east, up, m) for freq.
func (p *AntennaPCV) NEU(freq int) (n, e, u float64) {
	off, ok := p.Offset[freq]
	if !ok {
		return 0, 0, 0
	}
	return off[1], off[0], off[2]
}
