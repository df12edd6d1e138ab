package rinex

import (
	"strings"

	"bncgo/internal/prn"
)

// V3to2 translates a RINEX v3 2-character signal code to its v2
// equivalent for the given constellation (§4.C "v2 <-> v3 signal
// translation"):
//   - P1 <-> C1W for GPS, else C1P
//   - P2 <-> C2W for GPS, else C2P
//   - otherwise v2 is just the first two characters of the v3 code.
func V3to2(sys prn.System, v3 string) string {
	switch {
	case sys == prn.GPS && v3 == "1W":
		return "P1"
	case sys != prn.GPS && v3 == "1P":
		return "P1"
	case sys == prn.GPS && v3 == "2W":
		return "P2"
	case sys != prn.GPS && v3 == "2P":
		return "P2"
	}
	if len(v3) >= 2 {
		return v3[:2]
	}
	return v3
}

// V2to3 translates a RINEX v2 code to a v3 signal code. Unlike V3to2 this
// direction is not generally invertible (a v2 code may map to several v3
// codes); where the spec calls out an explicit pair it is used, otherwise
// the v2 code is returned unchanged (identity), to be disambiguated by
// PreferredV3 using the observed band/attribute priority list.
func V2to3(sys prn.System, v2 string) string {
	switch v2 {
	case "P1":
		if sys == prn.GPS {
			return "1W"
		}
		return "1P"
	case "P2":
		if sys == prn.GPS {
			return "2W"
		}
		return "2P"
	}
	return v2
}

// attributePriority is the per-system, ordered list of "<band>&<attribs>"
// (or bare "<attribs>") preference strings used to pick a v3 signal code
// when writing RINEX v2 from v3 records (§4.C, §6 default priority
// tables). '_' in an attribute position matches "no attribute" (a bare
// v2-style code with no trailing letter); '?' matches any attribute.
var attributePriority = map[prn.System][]string{
	prn.GPS:  {"1&CSLXPWYMN", "2&CSLXPWYMND", "5&QXI"},
	prn.GLO:  {"1&CP", "2&CP", "3&IQX"},
	prn.GAL:  {"1&CABXZ", "5&QXI", "7&QXI", "8&QXI", "6&ABCXZ"},
	prn.BDS:  {"2&IQX", "7&IQX", "6&IQX", "1&DPXIQ", "5&DPX"},
	prn.QZSS: {"1&CSLXZ", "2&SLX", "5&QXIDP", "6&SLXEZ"},
	prn.SBAS: {"1&C", "5&IQX"},
}

// PreferredV3 picks the first candidate v3 code (from those present on a
// satellite) whose band matches a v2 band and whose attribute is the
// leftmost preferred one for sys, per the priority lists above. candidates
// is the list of 2-char v3 codes actually observed for one satellite;
// PreferredV3 returns "" if none match any priority entry.
func PreferredV3(sys prn.System, candidates []string) string {
	prios, ok := attributePriority[sys]
	if !ok || len(candidates) == 0 {
		return ""
	}
	for _, entry := range prios {
		band, attrs, ok := splitPriorityEntry(entry)
		if !ok {
			continue
		}
		for _, attr := range attrs {
			for _, c := range candidates {
				if len(c) != 2 || (band != 0 && c[0] != band) {
					continue
				}
				ca := rune(c[1])
				if attr == '?' || (attr == '_' && ca == '_') || ca == attr {
					return c
				}
			}
		}
	}
	return ""
}

// splitPriorityEntry parses "1&CSLXPWYMN" into ('1', ['C','S','L',...]).
// A bare attribute string with no "&" applies to every band (ok is still
// true, band is the zero byte and every candidate's band check is
// skipped by the caller's membership loop — callers pass full entries so
// this form is currently unused but kept for completeness of the §6
// grammar, matching entries like "?" alone).
func splitPriorityEntry(entry string) (band byte, attrs []rune, ok bool) {
	i := strings.IndexByte(entry, '&')
	if i < 0 {
		if entry == "" {
			return 0, nil, false
		}
		return 0, []rune(entry), true
	}
	if i != 1 {
		return 0, nil, false
	}
	return entry[0], []rune(entry[i+1:]), true
}
