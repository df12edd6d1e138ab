package ssr

import (
	"testing"

	"bncgo/internal/bitio"
)

// buildFrame packs a 3-byte RTCM3 header (preamble + reserved + length) and
// a CRC24Q trailer around payload, mirroring the on-wire layout Framer.Push
// expects.
func buildFrame(payload []byte) []byte {
	buf := make([]byte, 3+len(payload)+3)
	bitio.SetBitU(buf, 0, 8, preamble)
	bitio.SetBitU(buf, 14, 10, uint32(len(payload)))
	copy(buf[3:], payload)
	crc := bitio.CRC24Q(buf[:3+len(payload)])
	buf[3+len(payload)] = byte(crc >> 16)
	buf[3+len(payload)+1] = byte(crc >> 8)
	buf[3+len(payload)+2] = byte(crc)
	return buf
}

func TestFramerRoundTrip(t *testing.T) {
	payload := []byte{0x42, 0x43, 0x44, 0x45}
	frame := buildFrame(payload)

	f := NewFramer()
	var got []byte
	var ok bool
	for _, b := range frame {
		got, ok = f.Push(b)
		if ok {
			break
		}
	}
	if !ok {
		t.Fatalf("framer never completed a message")
	}
	if len(got) != len(payload) {
		t.Fatalf("payload length: got %d want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("payload[%d]: got %x want %x", i, got[i], payload[i])
		}
	}
}

func TestFramerRejectsBadCRC(t *testing.T) {
	frame := buildFrame([]byte{0x01, 0x02})
	frame[len(frame)-1] ^= 0xFF // corrupt trailing CRC byte

	f := NewFramer()
	for _, b := range frame {
		if _, ok := f.Push(b); ok {
			t.Fatalf("framer accepted a frame with a corrupted CRC")
		}
	}
}

func TestFramerResyncsOnGarbagePrefix(t *testing.T) {
	payload := []byte{0x11, 0x22}
	frame := buildFrame(payload)
	withGarbage := append([]byte{0x00, 0xFF, 0x00}, frame...)

	f := NewFramer()
	var got []byte
	var ok bool
	for _, b := range withGarbage {
		got, ok = f.Push(b)
		if ok {
			break
		}
	}
	if !ok || len(got) != len(payload) {
		t.Fatalf("framer failed to resync past garbage prefix")
	}
}
