package reencoder

import (
	"fmt"

	"bncgo/internal/bitio"
	"bncgo/internal/ephemeris"
	"bncgo/internal/prn"
)

// msgKind enumerates the SSR correction kinds this encoder produces, in
// the order they are emitted per epoch (§4.I step 7: "clock+orbit, code
// bias, phase bias, VTEC"). This is a package-local re-derivation of the
// wire numbering, not a reuse of internal/ssr's unexported msgKind*
// iota constants — those are ordered for the decoder's internal
// dispatch table and do NOT match the real RTCM message-type offsets;
// the offsets below are read directly off the teacher's
// encode_ssr_head/GenRtcm3 (ctype parameter) and match RTCM 1057..1068.
type msgKind int

const (
	kindOrbit msgKind = iota
	kindClock
	kindCombined
	kindCodeBias
	kindURA
	kindHRClock
	kindPhaseBias
	kindVTec
)

// wireOffset is ctype in the teacher's encode_ssr_head: added to the
// per-constellation message-type base to get the 12-bit RTCM message
// number (e.g. GPS combined = 1057+3 = 1060... consistent with
// msgno = base+ctype, base=1056 for GPS).
var wireOffset = map[msgKind]int{
	kindOrbit:     1,
	kindClock:     2,
	kindCombined:  4,
	kindCodeBias:  3,
	kindURA:       6,
	kindHRClock:   5,
	kindPhaseBias: 7, // IGS-SSR draft numbering (subtype>0 path)
	kindVTec:      7, // shares ctype=7 dispatch, distinguished by subtype in IGS SSR
}

// messageTypeBase is the per-constellation RTCM message-type base that
// wireOffset is added to (teacher's encode_ssr_head switch on sys).
var messageTypeBase = map[prn.System]int{
	prn.GPS:  1056,
	prn.GLO:  1062,
	prn.GAL:  1239,
	prn.QZSS: 1245,
	prn.BDS:  1257,
	prn.SBAS: 1251,
}

// satWidths is this package's own copy of internal/ssr's per-constellation
// field widths (prnBits, iodeBits, iodCrcBits, prnOffset); duplicated
// rather than imported because internal/ssr.SelectSys returns an
// unexported struct type whose fields cannot be read from another
// package. Grounded on the same rtcm3e.go selectsys dispatch.
type satWidths struct {
	prnBits, iodeBits, iodCrcBits, prnOffset int
}

func selectWidths(sys prn.System) (satWidths, bool) {
	switch sys {
	case prn.GPS, prn.GAL:
		return satWidths{prnBits: 6, iodeBits: 8}, true
	case prn.QZSS:
		return satWidths{prnBits: 4, iodeBits: 8, prnOffset: 192}, true
	case prn.GLO:
		return satWidths{prnBits: 5, iodeBits: 8}, true
	case prn.BDS:
		return satWidths{prnBits: 6, iodCrcBits: 24}, true
	case prn.SBAS:
		return satWidths{prnBits: 6, iodCrcBits: 24, prnOffset: 119}, true
	}
	return satWidths{}, false
}

// updateIntervalCode maps a requested update interval in seconds to the
// first wire code whose interval is not shorter than it (rounding up;
// code 15 above 10800 s), mirroring the teacher's ssrudint scan in
// encode_ssr_head.
var updateIntervalTable = [16]float64{
	1, 2, 5, 10, 15, 30, 60, 120, 240, 300, 600, 900, 1800, 3600, 7200, 10800,
}

func updateIntervalCode(udint float64) int {
	for i, v := range updateIntervalTable {
		if v >= udint {
			return i
		}
	}
	return 15
}

// Encoder packs RTCM3 SSR messages, grounded on rtcm3e.go's
// encode_ssr_head / encode_ssr1 / encode_ssr2 / GenRtcm3 frame wrapper.
type Encoder struct {
	ProviderID int
	SolutionID int
}

const rtcm3Preamble = 0xD3

// wrapFrame wraps payload bits (already built by encodeSSRHead+body, without
// the leading 24-bit preamble/reserved/length) into a complete RTCM3
// frame: preamble, 6 reserved bits, 10-bit length, payload, CRC-24Q.
func wrapFrame(payloadBits []byte, nbit int) []byte {
	nbyte := (nbit + 7) / 8
	buff := make([]byte, 3+nbyte+3)
	bitio.SetBitU(buff, 0, 8, rtcm3Preamble)
	bitio.SetBitU(buff, 8, 6, 0)
	bitio.SetBitU(buff, 14, 10, uint32(nbyte))
	copy(buff[3:3+nbyte], payloadBits[:nbyte])
	crc := bitio.CRC24Q(buff[:3+nbyte])
	bitio.SetBitU(buff, (3+nbyte)*8, 24, crc)
	return buff
}

// OrbitMessage encodes one SSR orbit-correction message (ctype=1) for
// every satellite of sys present in orbits, per encode_ssr1's per-PRN
// bit layout (§6 field widths/scales).
func (e *Encoder) OrbitMessage(sys prn.System, sync bool, iod int, udint float64, refDatum int, orbits map[prn.Prn]*ephemeris.OrbCorr) ([]byte, error) {
	w, ok := selectWidths(sys)
	if !ok {
		return nil, fmt.Errorf("reencoder: no SSR orbit encoding for system %c", byte(sys))
	}
	sats := make([]*ephemeris.OrbCorr, 0, len(orbits))
	for _, oc := range orbits {
		if oc.Prn.System == sys {
			sats = append(sats, oc)
		}
	}
	if len(sats) == 0 {
		return nil, fmt.Errorf("reencoder: no orbit corrections for system %c", byte(sys))
	}

	buff := make([]byte, 1024)
	pos := e.encodeSSRHead(buff, kindOrbit, sys, len(sats), boolToInt(sync), iod, udint, refDatum)

	for _, oc := range sats {
		pos = packSatID(buff, pos, w, oc.Prn.Number)
		bitio.SetBitU(buff, pos, w.iodeBits, uint32(oc.Iod&0xFF))
		pos += w.iodeBits
		bitio.SetBitU(buff, pos, w.iodCrcBits, uint32(oc.Iod))
		pos += w.iodCrcBits

		pos = packSigned(buff, pos, 22, oc.Xr[0], 1e-4)
		pos = packSigned(buff, pos, 20, oc.Xr[1], 4e-4)
		pos = packSigned(buff, pos, 20, oc.Xr[2], 4e-4)
		pos = packSigned(buff, pos, 21, oc.DotXr[0], 1e-6)
		pos = packSigned(buff, pos, 19, oc.DotXr[1], 4e-6)
		pos = packSigned(buff, pos, 19, oc.DotXr[2], 4e-6)
	}
	return wrapFrame(buff, pos), nil
}

// CombinedMessage encodes one combined orbit+clock SSR message (ctype=4,
// per encode_ssr4): the same per-satellite orbit fields as OrbitMessage
// immediately followed by the same clock fields as ClockMessage, for
// every PRN present in both maps. Used when the configured combined-
// message sampling interval is 0 (§4.I step 6).
func (e *Encoder) CombinedMessage(sys prn.System, sync bool, iod int, udint float64, refDatum int, orbits map[prn.Prn]*ephemeris.OrbCorr, clocks map[prn.Prn]*ephemeris.ClkCorr) ([]byte, error) {
	w, ok := selectWidths(sys)
	if !ok {
		return nil, fmt.Errorf("reencoder: no SSR combined encoding for system %c", byte(sys))
	}
	type pair struct {
		oc *ephemeris.OrbCorr
		cc *ephemeris.ClkCorr
	}
	var sats []pair
	for p, oc := range orbits {
		if p.System != sys {
			continue
		}
		if cc, ok := clocks[p]; ok {
			sats = append(sats, pair{oc, cc})
		}
	}
	if len(sats) == 0 {
		return nil, fmt.Errorf("reencoder: no combined corrections for system %c", byte(sys))
	}

	buff := make([]byte, 1024)
	pos := e.encodeSSRHead(buff, kindCombined, sys, len(sats), boolToInt(sync), iod, udint, refDatum)

	for _, s := range sats {
		pos = packSatID(buff, pos, w, s.oc.Prn.Number)
		bitio.SetBitU(buff, pos, w.iodeBits, uint32(s.oc.Iod&0xFF))
		pos += w.iodeBits
		bitio.SetBitU(buff, pos, w.iodCrcBits, uint32(s.oc.Iod))
		pos += w.iodCrcBits

		pos = packSigned(buff, pos, 22, s.oc.Xr[0], 1e-4)
		pos = packSigned(buff, pos, 20, s.oc.Xr[1], 4e-4)
		pos = packSigned(buff, pos, 20, s.oc.Xr[2], 4e-4)
		pos = packSigned(buff, pos, 21, s.oc.DotXr[0], 1e-6)
		pos = packSigned(buff, pos, 19, s.oc.DotXr[1], 4e-6)
		pos = packSigned(buff, pos, 19, s.oc.DotXr[2], 4e-6)

		pos = packSigned(buff, pos, 22, s.cc.DClk*speedOfLight, 1e-4)
		pos = packSigned(buff, pos, 21, s.cc.DotDClk*speedOfLight, 1e-6)
		pos = packSigned(buff, pos, 27, s.cc.DotDotDClk*speedOfLight, 2e-8)
	}
	return wrapFrame(buff, pos), nil
}

// ClockMessage encodes one SSR clock-correction message (ctype=2), per
// encode_ssr2's bit layout.
func (e *Encoder) ClockMessage(sys prn.System, sync bool, iod int, udint float64, clocks map[prn.Prn]*ephemeris.ClkCorr) ([]byte, error) {
	w, ok := selectWidths(sys)
	if !ok {
		return nil, fmt.Errorf("reencoder: no SSR clock encoding for system %c", byte(sys))
	}
	sats := make([]*ephemeris.ClkCorr, 0, len(clocks))
	for _, cc := range clocks {
		if cc.Prn.System == sys {
			sats = append(sats, cc)
		}
	}
	if len(sats) == 0 {
		return nil, fmt.Errorf("reencoder: no clock corrections for system %c", byte(sys))
	}

	buff := make([]byte, 1024)
	pos := e.encodeSSRHead(buff, kindClock, sys, len(sats), boolToInt(sync), iod, udint, 0)

	for _, cc := range sats {
		pos = packSatID(buff, pos, w, cc.Prn.Number)
		pos = packSigned(buff, pos, 22, cc.DClk*speedOfLight, 1e-4)
		pos = packSigned(buff, pos, 21, cc.DotDClk*speedOfLight, 1e-6)
		pos = packSigned(buff, pos, 27, cc.DotDotDClk*speedOfLight, 2e-8)
	}
	return wrapFrame(buff, pos), nil
}

// CodeBiasMessage encodes one SSR code-bias message (ctype=3).
func (e *Encoder) CodeBiasMessage(sys prn.System, sync bool, iod int, udint float64, biases map[prn.Prn][]CodeBiasEntry) ([]byte, error) {
	w, ok := selectWidths(sys)
	if !ok {
		return nil, fmt.Errorf("reencoder: no SSR code-bias encoding for system %c", byte(sys))
	}
	type row struct {
		satNum int
		cb     []CodeBiasEntry
	}
	var rows []row
	for p, cb := range biases {
		if p.System == sys && len(cb) > 0 {
			rows = append(rows, row{p.Number, cb})
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reencoder: no code biases for system %c", byte(sys))
	}

	buff := make([]byte, 2048)
	pos := e.encodeSSRHead(buff, kindCodeBias, sys, len(rows), boolToInt(sync), iod, udint, 0)

	for _, r := range rows {
		pos = packSatID(buff, pos, w, r.satNum)
		bitio.SetBitU(buff, pos, 5, uint32(len(r.cb)))
		pos += 5
		for _, b := range r.cb {
			bitio.SetBitU(buff, pos, 5, uint32(codeIndex(b.Code)))
			pos += 5
			pos = packSigned(buff, pos, 14, b.Value, 0.01)
		}
	}
	return wrapFrame(buff, pos), nil
}

// PhaseBiasMessage encodes one SSR phase-bias message (ctype=7, IGS
// draft numbering per encode_ssr_head's subtype>0 branch), carrying the
// epoch-global dispersive-bias/MW consistency indicators plus per-PRN
// yaw angle/rate and tagged phase-bias entries (§4.I step 2/7).
func (e *Encoder) PhaseBiasMessage(sys prn.System, sync bool, iod int, udint float64, dispersiveCons, mwCons bool, sats []SatRecord) ([]byte, error) {
	w, ok := selectWidths(sys)
	if !ok {
		return nil, fmt.Errorf("reencoder: no SSR phase-bias encoding for system %c", byte(sys))
	}
	var rows []SatRecord
	for _, s := range sats {
		if s.Sat.System == sys && len(s.PhaseBias) > 0 {
			rows = append(rows, s)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("reencoder: no phase biases for system %c", byte(sys))
	}

	buff := make([]byte, 4096)
	pos := e.encodeSSRHead(buff, kindPhaseBias, sys, len(rows), boolToInt(sync), iod, udint, 0)
	bitio.SetBitU(buff, pos, 1, boolToBit(dispersiveCons))
	pos++
	bitio.SetBitU(buff, pos, 1, boolToBit(mwCons))
	pos++

	for _, r := range rows {
		pos = packSatID(buff, pos, w, r.Sat.Number)
		pos = packSigned(buff, pos, 9, r.YawAngle, 1.0/256.0)
		pos = packSigned(buff, pos, 8, r.YawRate, 1.0/8192.0)
		bitio.SetBitU(buff, pos, 5, uint32(len(r.PhaseBias)))
		pos += 5
		for _, b := range r.PhaseBias {
			bitio.SetBitU(buff, pos, 5, uint32(codeIndex(b.Code)))
			pos += 5
			bitio.SetBitU(buff, pos, 1, uint32(b.IntegerIndicator))
			pos++
			bitio.SetBitU(buff, pos, 2, uint32(b.WideLaneIndicator))
			pos += 2
			bitio.SetBitU(buff, pos, 4, uint32(b.DiscontinuityCounter))
			pos += 4
			pos = packSigned(buff, pos, 20, b.Value, 0.0001)
		}
	}
	return wrapFrame(buff, pos), nil
}

// encodeSSRHead packs the common SSR header (§4.I step 6, teacher's
// encode_ssr_head): message type, epoch time, update interval, sync
// flag, reference-datum bit (orbit/combined only), IOD, provider/
// solution ID, satellite count. Returns the bit position after the
// header.
func (e *Encoder) encodeSSRHead(buff []byte, kind msgKind, sys prn.System, nsat, sync, iod int, udint float64, refDatum int) int {
	base := messageTypeBase[sys]
	msgno := base + wireOffset[kind]
	pos := 0
	bitio.SetBitU(buff, pos, 12, uint32(msgno))
	pos += 12

	// Epoch time field: GLONASS uses a 17-bit day-seconds field, every
	// other constellation a 20-bit GPS time-of-week field.
	if sys == prn.GLO {
		bitio.SetBitU(buff, pos, 17, 0)
		pos += 17
	} else {
		bitio.SetBitU(buff, pos, 20, 0)
		pos += 20
	}

	bitio.SetBitU(buff, pos, 4, uint32(updateIntervalCode(udint)))
	pos += 4
	bitio.SetBitU(buff, pos, 1, uint32(sync))
	pos++
	if kind == kindOrbit || kind == kindCombined {
		bitio.SetBitU(buff, pos, 1, uint32(refDatum))
		pos++
	}
	bitio.SetBitU(buff, pos, 4, uint32(iod))
	pos += 4
	bitio.SetBitU(buff, pos, 16, uint32(e.ProviderID))
	pos += 16
	bitio.SetBitU(buff, pos, 4, uint32(e.SolutionID))
	pos += 4
	if kind == kindPhaseBias || kind == kindVTec {
		bitio.SetBitU(buff, pos, 1, 0) // dispersive bias consistency (set by caller below for phase-bias)
		pos++
		bitio.SetBitU(buff, pos, 1, 0) // MW consistency
		pos++
	}
	ns := 6
	if sys == prn.QZSS {
		ns = 4
	}
	bitio.SetBitU(buff, pos, ns, uint32(nsat))
	pos += ns
	return pos
}

func packSatID(buff []byte, pos int, w satWidths, satNum int) int {
	bitio.SetBitU(buff, pos, w.prnBits, uint32(satNum-w.prnOffset))
	pos += w.prnBits
	return pos
}

func packSigned(buff []byte, pos, nbit int, value, scale float64) int {
	iv := int32(roundHalfAway(value / scale))
	bitio.SetBits(buff, pos, nbit, iv)
	return pos + nbit
}

func roundHalfAway(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func boolToBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// codeIndex maps a RINEX-3 two-character signal code back to the raw
// wire code-type integer, the inverse of internal/ssr.CodeToRinex; the
// reverse table is small enough to keep local to the encoder rather
// than exporting the forward table's internals from internal/ssr.
var rinexToCode = buildRinexToCode()

func buildRinexToCode() map[string]int {
	// Mirrors internal/ssr's obsCodes ordering (teacher's codes_gps/
	// codes_glo/... SSR signal tables collapse onto the same RINEX
	// code strings used by the decoder side).
	table := []string{
		"", "1C", "1P", "1W", "1Y", "1M", "1N", "1S", "1L", "1E",
		"1A", "1B", "1X", "1Z", "2C", "2D", "2S", "2L", "2X", "2P",
		"2W", "2Y", "2M", "2N", "5I", "5Q", "5X", "7I", "7Q", "7X",
		"6A", "6B", "6C", "6X", "6Z", "6S", "6L", "8L", "8Q", "8X",
		"2I", "2Q", "6I", "6Q", "3I", "3Q", "3X", "1I", "1Q", "5A",
		"5B", "5C", "9A", "9B", "9C", "9X", "1D", "5D", "5P", "5Z",
		"6E", "7D", "7P", "7Z", "8D", "8P", "4A", "4B", "4X", "",
	}
	m := make(map[string]int, len(table))
	for i, c := range table {
		if c != "" {
			m[c] = i
		}
	}
	return m
}

func codeIndex(code string) int {
	if i, ok := rinexToCode[code]; ok {
		return i
	}
	return 0
}
