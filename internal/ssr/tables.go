package ssr

import "bncgo/internal/prn"

// UpdateIntervalCode maps the SSR wire update-interval code (0-15) to
// seconds. The table is not linear — piecewise per §4.D.
var UpdateIntervalCode = [16]float64{
	1, 2, 5, 10, 15, 30, 60, 120, 240, 300, 600, 900, 1800, 3600, 7200, 10800,
}

// obsCodes is the RINEX-3 signal-code string table indexed by the raw
// code-type integer carried on the wire, grounded verbatim on
// obscodes[] ("1C","1P","1W",...) — every 2-char code from GPS L1 through
// the L9/L4 bands used by IRNSS/BDS-3.
var obsCodes = []string{
	"", "1C", "1P", "1W", "1Y", "1M", "1N", "1S", "1L", "1E",
	"1A", "1B", "1X", "1Z", "2C", "2D", "2S", "2L", "2X", "2P",
	"2W", "2Y", "2M", "2N", "5I", "5Q", "5X", "7I", "7Q", "7X",
	"6A", "6B", "6C", "6X", "6Z", "6S", "6L", "8L", "8Q", "8X",
	"2I", "2Q", "6I", "6Q", "3I", "3Q", "3X", "1I", "1Q", "5A",
	"5B", "5C", "9A", "9B", "9C", "9X", "1D", "5D", "5P", "5Z",
	"6E", "7D", "7P", "7Z", "8D", "8P", "4A", "4B", "4X", "",
}

// CodeToRinex translates a raw wire code-type index into its 2-character
// RINEX-v3 signal code, or "" if the index is out of range.
func CodeToRinex(code int) string {
	if code < 0 || code >= len(obsCodes) {
		return ""
	}
	return obsCodes[code]
}

// satFieldWidths describes the per-constellation bit widths used by the
// SSR orbit/clock/bias header and per-satellite blocks: PRN field width,
// IODE width, IOD-CRC width (BDS/SBAS only), and the PRN numbering offset
// applied after extraction (used by SBAS, whose PRNs are numbered from
// 120 on the wire but offset in the internal table).
type satFieldWidths struct {
	prnBits, iodeBits, iodCrcBits, prnOffset int
}

// SelectSys returns the per-constellation field widths for the SSR
// satellite loop (§4.D), mirroring the teacher's selectsys dispatch. ok is
// false for a constellation with no defined SSR encoding.
func SelectSys(sys prn.System) (w satFieldWidths, ok bool) {
	switch sys {
	case prn.GPS, prn.GAL:
		return satFieldWidths{prnBits: 6, iodeBits: 8, iodCrcBits: 0}, true
	case prn.QZSS:
		return satFieldWidths{prnBits: 4, iodeBits: 8, iodCrcBits: 0, prnOffset: 192}, true
	case prn.GLO:
		return satFieldWidths{prnBits: 5, iodeBits: 8, iodCrcBits: 0}, true
	case prn.BDS:
		return satFieldWidths{prnBits: 6, iodeBits: 0, iodCrcBits: 24}, true
	case prn.SBAS:
		return satFieldWidths{prnBits: 6, iodeBits: 0, iodCrcBits: 24, prnOffset: 119}, true
	}
	return satFieldWidths{}, false
}
