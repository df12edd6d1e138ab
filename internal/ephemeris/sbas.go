package ephemeris

import (
	"encoding/binary"
	"math"

	"bncgo/internal/bitio"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// SBASEph is the SBAS ephemeris: a state vector identical in shape to
// GLONASS but expressed directly in SI units (meters, not the
// GLONASS km/ms ICD scaling), with a simple two-term clock polynomial.
type SBASEph struct {
	Sat prn.Prn
	T0  gtime.Time
	Pos gtime.Vec3 // m
	Vel gtime.Vec3 // m/s
	Acc gtime.Vec3 // m/s^2
	Agf0, Agf1 float64

	Attachment
}

func (e *SBASEph) PRN() prn.Prn            { return e.Sat }
func (e *SBASEph) Attachments() *Attachment { return &e.Attachment }

// IOD returns the CRC24Q-derived issue-of-data: a CRC over a fixed
// quantized bit-packing of the ephemeris fields (§4.B). SBAS
// ephemerides have no native IODE field, so a checksum over the
// broadcast quantities stands in for it.
func (e *SBASEph) IOD() int {
	return sbasCRC24IOD(e.Pos, e.Vel, e.Acc, e.Agf0, e.Agf1)
}

// sbasCRC24IOD packs position (x/y 30 bits, z 25 bits, × 0.08 m),
// velocity (18 bits × 0.004 m/s per §6 example scaling),
// acceleration and clock terms into a fixed bit
// field and returns the low 24 bits of the CRC24Q over it, truncated
// to a non-negative int.
func sbasCRC24IOD(pos, vel, acc gtime.Vec3, agf0, agf1 float64) int {
	buff := make([]byte, 32)
	bit := 0
	packSigned := func(v float64, scale float64, nbits int) {
		q := int32(math.Round(v / scale))
		bitio.SetBits(buff, bit, nbits, q)
		bit += nbits
	}
	packSigned(pos[0], 0.08, 30)
	packSigned(pos[1], 0.08, 30)
	packSigned(pos[2], 0.08, 25)
	packSigned(vel[0], 0.004, 18)
	packSigned(vel[1], 0.004, 18)
	packSigned(vel[2], 0.004, 18)
	packSigned(acc[0], 0.0000625, 10)
	packSigned(acc[1], 0.0000625, 10)
	packSigned(acc[2], 0.0000625, 10)
	packSigned(agf0, 2e-31*1e6, 12)
	packSigned(agf1, 2e-31*1e10, 8)

	nbytes := (bit + 7) / 8
	crc := bitio.CRC24Q(buff[:nbytes])
	var b4 [4]byte
	binary.BigEndian.PutUint32(b4[:], crc)
	return int(crc & 0xFFFFFF) // non-negative
}

// Position implements §4.B for SBAS: simple quadratic extrapolation of
// the state vector (no numerical integration, unlike GLONASS, since
// SBAS ephemerides already carry acceleration terms for a short
// validity window).
func (e *SBASEph) Position(t gtime.Time, useCorrections bool) (gtime.Vec3, float64, gtime.Vec3, error) {
	dt := t.Sub(e.T0)
	pos := gtime.Vec3{
		e.Pos[0] + e.Vel[0]*dt + e.Acc[0]*dt*dt/2,
		e.Pos[1] + e.Vel[1]*dt + e.Acc[1]*dt*dt/2,
		e.Pos[2] + e.Vel[2]*dt + e.Acc[2]*dt*dt/2,
	}
	vel := gtime.Vec3{
		e.Vel[0] + e.Acc[0]*dt,
		e.Vel[1] + e.Acc[1]*dt,
		e.Vel[2] + e.Acc[2]*dt,
	}
	clk := e.Agf0 + e.Agf1*dt

	return applyCorrection(t, pos, vel, clk, &e.Attachment, useCorrections)
}
