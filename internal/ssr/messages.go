package ssr

import (
	"fmt"

	"bncgo/internal/bitio"
	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// ssrBlockBase is the first orbit-message number of each constellation's
// contiguous 6-message SSR block (orbit, clock, code-bias, combined, URA,
// HR-clock, in that wire order), mirroring RTCM3 types 1057-1068 and the
// 1240+ draft block used for Galileo/QZSS/SBAS/BDS.
var ssrBlockBase = map[prn.System]int{
	prn.GPS:  1057,
	prn.GLO:  1063,
	prn.GAL:  1240,
	prn.QZSS: 1246,
	prn.SBAS: 1252,
	prn.BDS:  1258,
}

// phaseBiasType is the RTCM "tentative" phase-bias message number per
// constellation (types 11-14 in the teacher's dispatch; no block-relative
// offset is defined for these yet).
var phaseBiasType = map[prn.System]int{
	prn.GPS: 11,
	prn.GAL: 12,
	prn.QZSS: 13,
	prn.BDS: 14,
}

// vtecMessageType is the RTCM 10403.3 Amendment 2 VTEC message number.
// The teacher's decoder predates this amendment and has no equivalent
// function; the decode below is new code written directly from the
// spherical-harmonic field layout in §4.F/§3.
const vtecMessageType = 1264

// classifyMessageType maps a raw 12-bit RTCM3 message type to its
// constellation, SSR message kind, and IGS-SSR subtype (0 for native
// RTCM SSR).
func classifyMessageType(msgType int) (sys prn.System, kind int, subtype int, ok bool) {
	if msgType == vtecMessageType {
		return 0, msgKindVTec, 0, true
	}
	for s, pb := range phaseBiasType {
		if msgType == pb {
			return s, msgKindPhaseBias, 0, true
		}
	}
	for s, base := range ssrBlockBase {
		if msgType >= base && msgType < base+6 {
			offset := msgType - base
			kinds := []int{msgKindOrbit, msgKindClock, msgKindCodeBias, msgKindCombined, msgKindURA, msgKindHRClock}
			return s, kinds[offset], 0, true
		}
	}
	return 0, 0, 0, false
}

// ssrHead decodes the common SSR satellite-block header shared by every
// message kind (§4.D, teacher's decode_ssr1_head/decode_ssr2_head): epoch
// time, update-interval code, sync flag, IOD, provider/solution IDs, and
// satellite count. bitOffset is the starting bit (after the 12-bit
// message type + 12-bit reserved/ver fields already consumed by the
// caller).
type ssrHead struct {
	epoch     gtime.Time
	updateInt float64
	sync      bool
	refDatum  bool
	iod       int
	provider  ProviderID
	nsat      int
	bitPos    int
}

func (d *Decoder) ssrHead(msg []byte, sys prn.System, hasRefDatum bool, nsatBits int) (ssrHead, error) {
	i := 24
	var raw float64
	if sys == prn.GLO {
		raw = float64(bitio.GetBitU(msg, i, 17))
		i += 17
	} else {
		raw = float64(bitio.GetBitU(msg, i, 20))
		i += 20
	}
	epoch := ReconstructEpoch(sys, raw, d.hostWeek, d.lastTime)

	udi := int(bitio.GetBitU(msg, i, 4))
	i += 4
	sync := bitio.GetBitU(msg, i, 1) != 0
	i += 1
	var refd bool
	if hasRefDatum {
		refd = bitio.GetBitU(msg, i, 1) != 0
		i += 1
	}
	iod := int(bitio.GetBitU(msg, i, 4))
	i += 4
	providerID := int(bitio.GetBitU(msg, i, 16))
	i += 16
	solutionID := int(bitio.GetBitU(msg, i, 4))
	i += 4
	nsat := int(bitio.GetBitU(msg, i, nsatBits))
	i += nsatBits

	if udi < 0 || udi >= len(UpdateIntervalCode) {
		return ssrHead{}, fmt.Errorf("ssr: bad update-interval code %d", udi)
	}

	return ssrHead{
		epoch:     epoch,
		updateInt: UpdateIntervalCode[udi],
		sync:      sync,
		refDatum:  refd,
		iod:       iod,
		provider:  ProviderID{ProviderID: providerID, SolutionID: solutionID, IOD: iod},
		nsat:      nsat,
		bitPos:    i,
	}, nil
}

func satPrn(sys prn.System, w satFieldWidths, msg []byte, i int) (prn.Prn, int) {
	num := int(bitio.GetBitU(msg, i, w.prnBits)) + w.prnOffset
	return prn.Prn{System: sys, Number: num}, i + w.prnBits
}

// decodeOrbit decodes an SSR1-kind (orbit correction) message into
// OrbCorr events, bit-for-bit matching the teacher's decode_ssr1.
func (d *Decoder) decodeOrbit(msg []byte, sys prn.System, subtype int) ([]Event, error) {
	w, ok := SelectSys(sys)
	if !ok {
		return nil, nil
	}
	h, err := d.ssrHead(msg, sys, true, satCountBits(sys))
	if err != nil {
		return nil, err
	}
	changed := d.noteProvider(h.provider)

	i := h.bitPos
	var events []Event
	if changed {
		events = append(events, Event{ProviderChanged: true, Log: "ssr: provider changed"})
	}
	for s := 0; s < h.nsat; s++ {
		if i+121+w.iodeBits+w.iodCrcBits > len(msg)*8 {
			break
		}
		var p prn.Prn
		var satIOD int
		p, i = satPrn(sys, w, msg, i)
		satIOD, i = readSatIOD(msg, i, w)

		var xr, dotXr gtime.Vec3
		xr, dotXr, i = readOrbitFields(msg, i)

		d.iodByPrn[p] = satIOD
		events = append(events, Event{OrbCorr: &ephemeris.OrbCorr{
			Prn:       p,
			Iod:       satIOD,
			StaID:     "",
			Time:      h.epoch,
			UpdateInt: h.updateInt,
			Xr:        xr,
			DotXr:     dotXr,
		}})
	}
	return events, nil
}

// readSatIOD decodes the satellite-level issue-of-data field anchoring an
// orbit correction to a broadcast ephemeris (§4.E "IOD anchoring"):
// GPS/GAL/QZSS carry an explicit IODE field, BDS/SBAS carry a CRC24Q
// value in its place (w.iodCrcBits > 0).
func readSatIOD(msg []byte, i int, w satFieldWidths) (int, int) {
	if w.iodeBits > 0 {
		v := int(bitio.GetBitU(msg, i, w.iodeBits))
		return v, i + w.iodeBits
	}
	if w.iodCrcBits > 0 {
		v := int(bitio.GetBitU(msg, i, w.iodCrcBits))
		return v, i + w.iodCrcBits
	}
	return 0, i
}

// readOrbitFields decodes the 3+3 radial/along/cross offset and rate
// fields shared by the orbit block, per decode_ssr1's bit widths.
func readOrbitFields(msg []byte, i int) (xr, dotXr gtime.Vec3, next int) {
	xr[0] = float64(bitio.GetBits(msg, i, 22)) * 1e-4
	i += 22
	xr[1] = float64(bitio.GetBits(msg, i, 20)) * 4e-4
	i += 20
	xr[2] = float64(bitio.GetBits(msg, i, 20)) * 4e-4
	i += 20
	dotXr[0] = float64(bitio.GetBits(msg, i, 21)) * 1e-6
	i += 21
	dotXr[1] = float64(bitio.GetBits(msg, i, 19)) * 4e-6
	i += 19
	dotXr[2] = float64(bitio.GetBits(msg, i, 19)) * 4e-6
	i += 19
	return xr, dotXr, i
}

// decodeClock decodes an SSR2-kind (clock correction) message into
// ClkCorr events, per decode_ssr2. The dClk fields arrive in
// meters on the wire and are divided by c here, so ClkCorr holds §4.B's
// seconds form.
func (d *Decoder) decodeClock(msg []byte, sys prn.System, subtype int) ([]Event, error) {
	w, ok := SelectSys(sys)
	if !ok {
		return nil, nil
	}
	h, err := d.ssrHead(msg, sys, false, satCountBits(sys))
	if err != nil {
		return nil, err
	}
	changed := d.noteProvider(h.provider)
	i := h.bitPos
	var events []Event
	if changed {
		events = append(events, Event{ProviderChanged: true, Log: "ssr: provider changed"})
	}
	for s := 0; s < h.nsat; s++ {
		if i+70+w.prnBits > len(msg)*8 {
			break
		}
		var p prn.Prn
		p, i = satPrn(sys, w, msg, i)

		dClk := float64(bitio.GetBits(msg, i, 22)) * 1e-4
		i += 22
		dotDClk := float64(bitio.GetBits(msg, i, 21)) * 1e-6
		i += 21
		dotDotDClk := float64(bitio.GetBits(msg, i, 27)) * 2e-8
		i += 27

		anchoredIOD, seen := d.iodByPrn[p]
		if !seen {
			continue // no orbit IOD observed yet for this PRN (§4.D anchoring)
		}
		events = append(events, Event{ClkCorr: &ephemeris.ClkCorr{
			Prn:        p,
			Iod:        anchoredIOD,
			StaID:      "",
			Time:       h.epoch,
			UpdateInt:  h.updateInt,
			DClk:       dClk / clight,
			DotDClk:    dotDClk / clight,
			DotDotDClk: dotDotDClk / clight,
		}})
	}
	return events, nil
}

// decodeCombined decodes an SSR4-kind (combined orbit+clock) message: a
// single header (with the satellite-reference-datum bit, like the orbit
// message) followed by per-satellite orbit and clock fields back to back,
// per decode_ssr4. Unlike the standalone orbit/clock messages this is
// NOT two independently-headed sub-messages concatenated — it shares one
// header and one per-satellite loop, so it gets its own decode function
// rather than delegating to decodeOrbit/decodeClock.
func (d *Decoder) decodeCombined(msg []byte, sys prn.System, subtype int) ([]Event, error) {
	w, ok := SelectSys(sys)
	if !ok {
		return nil, nil
	}
	h, err := d.ssrHead(msg, sys, true, satCountBits(sys))
	if err != nil {
		return nil, err
	}
	changed := d.noteProvider(h.provider)
	i := h.bitPos
	var events []Event
	if changed {
		events = append(events, Event{ProviderChanged: true, Log: "ssr: provider changed"})
	}
	for s := 0; s < h.nsat; s++ {
		if i+191+w.iodeBits+w.iodCrcBits > len(msg)*8 {
			break
		}
		var p prn.Prn
		var satIOD int
		p, i = satPrn(sys, w, msg, i)
		satIOD, i = readSatIOD(msg, i, w)

		var xr, dotXr gtime.Vec3
		xr, dotXr, i = readOrbitFields(msg, i)

		dClk := float64(bitio.GetBits(msg, i, 22)) * 1e-4
		i += 22
		dotDClk := float64(bitio.GetBits(msg, i, 21)) * 1e-6
		i += 21
		dotDotDClk := float64(bitio.GetBits(msg, i, 27)) * 2e-8
		i += 27

		d.iodByPrn[p] = satIOD
		events = append(events,
			Event{OrbCorr: &ephemeris.OrbCorr{
				Prn: p, Iod: satIOD, Time: h.epoch, UpdateInt: h.updateInt,
				Xr: xr, DotXr: dotXr,
			}},
			Event{ClkCorr: &ephemeris.ClkCorr{
				Prn: p, Iod: satIOD, Time: h.epoch, UpdateInt: h.updateInt,
				DClk: dClk / clight, DotDClk: dotDClk / clight, DotDotDClk: dotDotDClk / clight,
			}},
		)
	}
	return events, nil
}

// decodeCodeBias decodes an SSR3-kind message, per decode_ssr3.
func (d *Decoder) decodeCodeBias(msg []byte, sys prn.System, subtype int) ([]Event, error) {
	w, ok := SelectSys(sys)
	if !ok {
		return nil, nil
	}
	h, err := d.ssrHead(msg, sys, false, satCountBits(sys))
	if err != nil {
		return nil, err
	}
	i := h.bitPos
	var events []Event
	for s := 0; s < h.nsat; s++ {
		if i+5+w.prnBits > len(msg)*8 {
			break
		}
		var p prn.Prn
		p, i = satPrn(sys, w, msg, i)
		nbias := int(bitio.GetBitU(msg, i, 5))
		i += 5
		bias := make(map[string]float64, nbias)
		for k := 0; k < nbias && i+19 <= len(msg)*8; k++ {
			mode := int(bitio.GetBitU(msg, i, 5))
			i += 5
			val := float64(bitio.GetBits(msg, i, 14)) * 0.01
			i += 14
			if code := CodeToRinex(mode); code != "" {
				bias[code] = val
			}
		}
		events = append(events, Event{CodeBias: &SatCodeBias{
			Prn: p, Time: h.epoch, UpdateInt: h.updateInt, Bias: bias,
		}})
	}
	return events, nil
}

// decodePhaseBias decodes a phase-bias message. The teacher's
// decode_ssr7 carries the same per-satellite shape as code bias plus
// yaw/consistency/per-signal indicators; field widths here follow the
// RTCM 10403.3 Amendment 1 phase-bias layout (dispersive/MW consistency
// bits, 9-bit yaw angle at 1/256 semicircle, 8-bit yaw rate at
// 1/8192 semicircle/s, per-signal fix/WL indicators and a 20-bit phase
// bias at 0.0001 m, mirroring the scale factors decode_ssr3 uses for the
// code-bias counterpart).
func (d *Decoder) decodePhaseBias(msg []byte, sys prn.System, subtype int) ([]Event, error) {
	w, ok := SelectSys(sys)
	if !ok {
		return nil, nil
	}
	h, err := d.ssrHead(msg, sys, false, satCountBits(sys))
	if err != nil {
		return nil, err
	}
	i := h.bitPos
	if i+2 > len(msg)*8 {
		return nil, nil
	}
	dispersive := bitio.GetBitU(msg, i, 1) != 0
	i += 1
	mw := bitio.GetBitU(msg, i, 1) != 0
	i += 1

	var events []Event
	for s := 0; s < h.nsat; s++ {
		if i+5+9+8+w.prnBits > len(msg)*8 {
			break
		}
		var p prn.Prn
		p, i = satPrn(sys, w, msg, i)
		nbias := int(bitio.GetBitU(msg, i, 5))
		i += 5
		yaw := float64(bitio.GetBitU(msg, i, 9)) * (1.0 / 256.0) * 180.0
		i += 9
		yawRate := float64(bitio.GetBits(msg, i, 8)) * (1.0 / 8192.0) * 180.0
		i += 8

		bias := make(map[string]float64, nbias)
		detail := make(map[string]SignalBiasDetail, nbias)
		for k := 0; k < nbias && i+32 <= len(msg)*8; k++ {
			mode := int(bitio.GetBitU(msg, i, 5))
			i += 5
			fixInd := int(bitio.GetBitU(msg, i, 2))
			i += 2
			wlInd := int(bitio.GetBitU(msg, i, 2))
			i += 2
			disc := int(bitio.GetBitU(msg, i, 3))
			i += 3
			val := float64(bitio.GetBits(msg, i, 20)) * 1e-4
			i += 20
			if code := CodeToRinex(mode); code != "" {
				bias[code] = val
				detail[code] = SignalBiasDetail{FixIndicator: fixInd, WideLaneIndicator: wlInd, DiscontinuityCounter: disc}
			}
		}
		events = append(events, Event{PhaseBias: &SatPhaseBias{
			SatCodeBias: SatCodeBias{Prn: p, Time: h.epoch, UpdateInt: h.updateInt, Bias: bias},
			Yaw:         yaw,
			YawRate:     yawRate,
			DispersiveConsistency: dispersive,
			MWConsistency:         mw,
			PerSignal:             detail,
		}})
	}
	return events, nil
}

// decodeVTec decodes an RTCM 1264 VTEC message: header (epoch, update
// interval, quality indicator, layer count) followed by one
// spherical-harmonic layer per entry (height, max degree/order, then the
// C/S coefficient matrices), per §3/§4.F's field description.
func (d *Decoder) decodeVTec(msg []byte) ([]Event, error) {
	i := 24
	raw := float64(bitio.GetBitU(msg, i, 20))
	i += 20
	epoch := ReconstructEpoch(prn.GPS, raw, d.hostWeek, d.lastTime)
	udi := int(bitio.GetBitU(msg, i, 4))
	i += 4
	if udi < 0 || udi >= len(UpdateIntervalCode) {
		return nil, fmt.Errorf("ssr: bad vtec update-interval code %d", udi)
	}
	i += 1 // quality indicator, unused downstream
	nlayers := int(bitio.GetBitU(msg, i, 2)) + 1
	i += 2

	layers := make([]VTecLayer, 0, nlayers)
	for l := 0; l < nlayers; l++ {
		if i+8+4+4 > len(msg)*8 {
			break
		}
		height := float64(bitio.GetBitU(msg, i, 8)) * 10000.0
		i += 8
		degree := int(bitio.GetBitU(msg, i, 4))
		i += 4
		order := int(bitio.GetBitU(msg, i, 4))
		i += 4
		c := make([][]float64, degree+1)
		s := make([][]float64, degree+1)
		for n := 0; n <= degree; n++ {
			c[n] = make([]float64, order+1)
			s[n] = make([]float64, order+1)
			for m := 0; m <= order && m <= n; m++ {
				if i+16 > len(msg)*8 {
					break
				}
				c[n][m] = float64(bitio.GetBits(msg, i, 16)) * 0.005
				i += 16
				if m > 0 {
					if i+16 > len(msg)*8 {
						break
					}
					s[n][m] = float64(bitio.GetBits(msg, i, 16)) * 0.005
					i += 16
				}
			}
		}
		layers = append(layers, VTecLayer{Height: height, C: c, S: s})
	}

	return []Event{{VTec: &VTec{
		Time:      epoch,
		UpdateInt: UpdateIntervalCode[udi],
		Layers:    layers,
	}}}, nil
}

func satCountBits(sys prn.System) int {
	if sys == prn.QZSS {
		return 4
	}
	return 6
}

const clight = 299792458.0
