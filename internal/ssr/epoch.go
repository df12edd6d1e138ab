package ssr

import (
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// systemPriority is the constellation search order used to reconstruct
// the SSR epoch time when a message batch carries more than one system
// (§4.D "Epoch time reconstruction").
var systemPriority = []prn.System{prn.GPS, prn.GLO, prn.GAL, prn.QZSS, prn.SBAS, prn.BDS}

// ReconstructEpoch derives the absolute epoch time for a raw SSR
// second-of-week/day field, given the host's current GPS week (used to
// resolve the week number the wire format omits) and the decoder's last
// known epoch (used to roll GLONASS/BDS raw seconds into the expected
// window).
//
// raw is the second-of-week for GPS/GAL/QZS/SBAS/BDS, or the
// second-of-day for GLONASS.
func ReconstructEpoch(sys prn.System, raw float64, hostWeek int, last gtime.Time) gtime.Time {
	ref := last
	if !ref.Valid() {
		ref = gtime.FromGpsWeekSec(hostWeek, 0)
	}
	var t gtime.Time
	switch sys {
	case prn.GLO:
		// Moscow second-of-day -> GPS, 4-hour window (REDESIGN FLAGS).
		t = gtime.MoscowToGps(ref, hostWeek, raw)
	case prn.BDS:
		sec := raw + 14
		if sec >= 604800 {
			sec -= 604800
		}
		t = gtime.FromGpsWeekSec(hostWeek, sec)
	default: // GPS, GAL, QZS, SBAS
		t = gtime.FromGpsWeekSec(hostWeek, raw)
	}
	if last.Valid() {
		t = gtime.RollToNearest(t, last, 12*3600)
	}
	return t
}

// FirstPresentSystem returns the first constellation in systemPriority
// order for which present reports true, or false if none do.
func FirstPresentSystem(present map[prn.System]bool) (prn.System, bool) {
	for _, s := range systemPriority {
		if present[s] {
			return s, true
		}
	}
	return 0, false
}
