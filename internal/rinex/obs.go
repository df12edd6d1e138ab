// Package rinex holds the observation data model: RINEX headers, the
// per-epoch satellite observation records, and the v2<->v3 signal-code
// translation used to read and write both RINEX generations.
package rinex

import (
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// FreqObs is a single frequency/signal observation within a SatObs: code
// range in meters, carrier phase in cycles, Doppler in Hz, carrier/noise
// ratio, the receiver's lock-time and loss-of-lock/slip bookkeeping, and
// the originating 2-character RINEX v3 signal code (e.g. "1C", "2W").
type FreqObs struct {
	Code      float64 // pseudorange, m
	Phase     float64 // carrier phase, cycles
	Doppler   float64 // Hz
	SNR       float64 // dBHz
	LockTime  float64 // s
	LLI       bool    // loss-of-lock indicator
	SlipCount int
	BiasJumps int
	RinexCode string // "1C", "2W", ...
}

// SatObs is one satellite's observation record at a given epoch.
type SatObs struct {
	StaID string
	Prn   prn.Prn
	Time  gtime.Time
	Freqs []FreqObs
}

// ObsHeader is the RINEX observation file header (component C, §4.C):
// identifiers, approximate position, antenna offsets, sampling interval,
// per-system ordered signal type lists, and GLONASS-specific metadata
// (code-phase biases, frequency-slot assignments) that downstream code
// needs to interpret GLONASS pseudoranges correctly.
type ObsHeader struct {
	RinexVersion float64 // 2.xx or 3.xx
	MarkerName   string
	AntennaType  string
	ReceiverType string
	ApproxXYZ    gtime.Vec3
	AntennaENU   gtime.Vec3 // eccentricity: east, north, up
	Interval     float64
	StartTime    gtime.Time

	// ObsTypes lists the ordered signal codes broadcast per constellation,
	// e.g. ObsTypes['G'] = []string{"1C","1W","2W","2X",...}.
	ObsTypes map[prn.System][]string

	// PhaseShift holds the per-system, per-code phase-shift correction
	// (cycles) applied to carrier observations, RINEX 3 "SYS / PHASE SHIFT".
	PhaseShift map[prn.System]map[string]float64

	// GlonassCodePhaseBias holds the "GLONASS COD/PHS/BIS" per-code bias
	// in meters, keyed by signal code ("C1C","C1P","C2C","C2P").
	GlonassCodePhaseBias map[string]float64

	// GlonassSlots maps a GLONASS slot number to its frequency channel.
	GlonassSlots map[int]int
}

// DefaultObsTypes is used by SetDefault when a header carries no typing
// information and the caller permits proceeding with standard coding
// (§4.C "setDefault").
var DefaultObsTypes = map[prn.System][]string{
	prn.GPS:   {"1C", "1W", "2W", "2X", "5X"},
	prn.GLO:   {"1C", "1P", "2C", "2P"},
	prn.GAL:   {"1X", "5X", "7X", "8X"},
	prn.BDS:   {"2I", "7I", "6I"},
	prn.QZSS:  {"1C", "2X", "5X"},
	prn.SBAS:  {"1C", "5X"},
}

// SetDefault fills h.ObsTypes with DefaultObsTypes for any constellation
// missing an entry. It returns false (without modifying h) when the header
// has no typing at all and allowDefault is false — the caller is expected
// to reject the file in that case.
func (h *ObsHeader) SetDefault(allowDefault bool) bool {
	if h.ObsTypes == nil {
		if !allowDefault {
			return false
		}
		h.ObsTypes = make(map[prn.System][]string, len(DefaultObsTypes))
	}
	for sys, codes := range DefaultObsTypes {
		if _, ok := h.ObsTypes[sys]; !ok {
			if !allowDefault {
				return false
			}
			cp := make([]string, len(codes))
			copy(cp, codes)
			h.ObsTypes[sys] = cp
		}
	}
	return true
}
