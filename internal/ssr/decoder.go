// Package ssr implements the RTCM3 SSR (State Space Representation)
// correction decoder: byte-stream framing and the epoch/IOD bookkeeping
// needed to turn a raw correction stream into timestamped OrbCorr/
// ClkCorr/SatCodeBias/SatPhaseBias/VTec values (component D).
//
// Resumability lives entirely in Framer: it buffers incoming bytes until
// a length- and CRC-checked frame is complete before handing the payload
// to decode(), so a message-kind decode function is never invoked on a
// truncated buffer and needs no partial/restore state of its own — the
// four "partial message struct" slots the design calls out collapse into
// Framer's single byte accumulator in this split.
package ssr

import (
	"fmt"

	"bncgo/internal/bitio"
	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// Message kinds the decoder dispatches on. messages.go maps each RTCM
// message number (types 1057-1270 and the phase-bias/VTEC types) to one
// of them, using a contiguous six-message SSR block per constellation.
const (
	msgKindOrbit = iota
	msgKindClock
	msgKindCombined
	msgKindCodeBias
	msgKindURA
	msgKindHRClock
	msgKindPhaseBias
	msgKindVTec
)

// ProviderID identifies the broadcaster/solution/IOD triple whose change
// triggers a downstream flush (§4.D).
type ProviderID struct {
	ProviderID int
	SolutionID int
	IOD        int
}

// Event is one fully decoded correction emitted by the decoder.
type Event struct {
	OrbCorr      *ephemeris.OrbCorr
	ClkCorr      *ephemeris.ClkCorr
	CodeBias     *SatCodeBias
	PhaseBias    *SatPhaseBias
	VTec         *VTec
	ProviderChanged bool
	Log          string
}

// Decoder is the resumable RTCM3 SSR decoder state machine.
type Decoder struct {
	framer   *Framer
	hostWeek int
	lastTime gtime.Time

	provider ProviderID
	haveProv bool

	// epoch -> pending corrections, drained per the flush policy once a
	// key is strictly older than lastTime.
	pending map[gtime.Time][]Event

	// iodByPrn anchors clock corrections to the orbit IOD last seen for
	// that satellite (§4.D "IOD anchoring").
	iodByPrn map[prn.Prn]int
}

// NewDecoder returns a decoder seeded with the host's current GPS week,
// used to resolve the week number SSR messages omit.
func NewDecoder(hostWeek int) *Decoder {
	return &Decoder{
		framer:   NewFramer(),
		hostWeek: hostWeek,
		pending:  make(map[gtime.Time][]Event),
		iodByPrn: make(map[prn.Prn]int),
	}
}

// Feed pushes one byte through the framer and, once a full message is
// assembled, decodes it. It returns any corrections that the flush
// policy releases as a result (corrections strictly older than the new
// lastTime).
func (d *Decoder) Feed(b byte) ([]Event, error) {
	msg, ok := d.framer.Push(b)
	if !ok {
		return nil, nil
	}
	return d.decode(msg)
}

// decode dispatches on the 12-bit RTCM3 message-type field. Framer has
// already verified the frame's CRC, so a short/malformed satellite block
// below the stated count is the §4.D "corrupt" case: the per-satellite
// loops in messages.go simply stop early rather than erroring, which has
// the same effect as the discard-and-resync the spec describes since the
// next Feed call starts a fresh frame regardless.
func (d *Decoder) decode(msg []byte) ([]Event, error) {
	if len(msg) < 2 {
		return nil, fmt.Errorf("ssr: short message")
	}
	msgType := int(bitio.GetBitU(msg, 0, 12))
	sys, kind, subtype, ok := classifyMessageType(msgType)
	if !ok {
		return nil, nil // unrecognized type: not an error, just ignored
	}

	var (
		events []Event
		err    error
	)
	switch kind {
	case msgKindOrbit:
		events, err = d.decodeOrbit(msg, sys, subtype)
	case msgKindClock:
		events, err = d.decodeClock(msg, sys, subtype)
	case msgKindCombined:
		events, err = d.decodeCombined(msg, sys, subtype)
	case msgKindCodeBias:
		events, err = d.decodeCodeBias(msg, sys, subtype)
	case msgKindPhaseBias:
		events, err = d.decodePhaseBias(msg, sys, subtype)
	case msgKindVTec:
		events, err = d.decodeVTec(msg)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.commit(events), nil
}

// commit advances lastTime, applies the flush policy (anything strictly
// older than the new lastTime is released), and folds in a
// provider-changed flush when the provider/solution/IOD triple changes.
func (d *Decoder) commit(events []Event) []Event {
	var out []Event
	for _, ev := range events {
		t := eventTime(ev)
		if t.Valid() && (!d.lastTime.Valid() || t.Sub(d.lastTime) > 0) {
			d.lastTime = t
		}
		d.pending[t] = append(d.pending[t], ev)
	}
	for key, evs := range d.pending {
		if !key.Valid() || key.Sub(d.lastTime) < 0 {
			out = append(out, evs...)
			delete(d.pending, key)
		}
	}
	return out
}

func eventTime(ev Event) gtime.Time {
	switch {
	case ev.OrbCorr != nil:
		return ev.OrbCorr.Time
	case ev.ClkCorr != nil:
		return ev.ClkCorr.Time
	case ev.CodeBias != nil:
		return ev.CodeBias.Time
	case ev.PhaseBias != nil:
		return ev.PhaseBias.Time
	case ev.VTec != nil:
		return ev.VTec.Time
	}
	return gtime.Time{}
}

// noteProvider records the provider/solution/IOD triple of the current
// message and returns true if it changed from the last one seen — the
// caller is expected to flush dependent downstream state on a change.
func (d *Decoder) noteProvider(p ProviderID) bool {
	changed := d.haveProv && p != d.provider
	d.provider = p
	d.haveProv = true
	return changed
}
