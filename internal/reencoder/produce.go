package reencoder

import (
	"bncgo/internal/ephemeris"
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

const speedOfLight = 299792458.0

// Config holds the re-encoder's per-upload configuration (§6 CLI/config
// surface: transformation frame, sampling, provider/solution IDs, CoM
// offset toggle).
type Config struct {
	TargetFrame      Frame
	ApplyCoMOffset   bool
	ProviderID       int
	SolutionID       int
	ClockSamplSec    float64 // upload Sampl Clk Rnx
	OrbitSamplSec    float64 // upload Sampl Sp3
	CombinedSamplSec float64 // uploadSamplRtcmEphCorr; 0 selects the combined message form
}

// usedEph is the epoch-locked ephemeris snapshot (§4.I step 3): for each
// PRN, the broadcast ephemeris whose IOD anchors the corrections being
// produced this epoch, re-sampled only at the configured orbit-sampling
// boundary.
type usedEph struct {
	eph map[prn.Prn]ephemeris.Eph
}

func newUsedEph() *usedEph { return &usedEph{eph: make(map[prn.Prn]ephemeris.Eph)} }

// Lock updates the snapshot for sat if atBoundary is true, or if no
// ephemeris has ever been locked for this PRN; otherwise it keeps the
// previously locked entry so corrections stay anchored within an orbit
// sampling interval (§4.I step 3 "if sampling boundary, update").
func (u *usedEph) Lock(sat prn.Prn, store *ephemeris.Store, atBoundary bool) ephemeris.Eph {
	cur, have := u.eph[sat]
	if !have || atBoundary {
		if e := store.Latest(sat); e != nil {
			u.eph[sat] = e
			return e
		}
	}
	return cur
}

// Producer drives one epoch of §4.I: it holds the IOD-locked ephemeris
// snapshot and the RTCM3 encoder across epochs.
type Producer struct {
	cfg     Config
	store   *ephemeris.Store
	used    *usedEph
	encoder *Encoder
	epochN  int
}

// NewProducer constructs a re-encoder driver bound to store (the shared
// broadcast ephemeris store, §5 "Shared resources").
func NewProducer(cfg Config, store *ephemeris.Store) *Producer {
	return &Producer{
		cfg:     cfg,
		store:   store,
		used:    newUsedEph(),
		encoder: &Encoder{ProviderID: cfg.ProviderID, SolutionID: cfg.SolutionID},
	}
}

// SatDelta is the output of §4.I step 5: the precise-minus-broadcast
// delta for one satellite, already rotated into RSW and with the clock
// scale-adjustment folded in.
type SatDelta struct {
	Sat   prn.Prn
	Orbit ephemeris.OrbCorr
	Clock ephemeris.ClkCorr
}

// ComputeDeltas implements §4.I steps 3-5 for one epoch: for each
// satellite record, locate the IOD-locked broadcast ephemeris, transform
// the precise (RTNet) position into the target frame, take the RSW
// delta against the broadcast position, and compute the clock
// correction with the relativity term removed and the frame's clock
// scale-adjustment applied.
func (p *Producer) ComputeDeltas(ep *Epoch, atOrbitBoundary bool) []SatDelta {
	frameParams := LookupFrame(p.cfg.TargetFrame)
	year := decimalYear(ep.Time)

	var out []SatDelta
	for _, rec := range ep.Sats {
		if !rec.HasAPC || !rec.HasClk {
			continue
		}
		eph := p.used.Lock(rec.Sat, p.store, atOrbitBoundary)
		if eph == nil {
			continue // §7 "missing ephemeris": drop this PRN for the epoch
		}
		xBroadcast, clkBroadcast, vBroadcast, err := eph.Position(ep.Time, false)
		if err != nil {
			continue
		}

		xPrecise := rec.APC
		if p.cfg.ApplyCoMOffset && rec.HasCoM {
			xPrecise = gtime.Vec3{
				rec.APC[0] + rec.CoM[0],
				rec.APC[1] + rec.CoM[1],
				rec.APC[2] + rec.CoM[2],
			}
		}

		dc := 0.0
		if p.cfg.TargetFrame != "" && p.cfg.TargetFrame != FrameIGS08 {
			xPrecise = Transform(xPrecise, frameParams, year)
			dc = ScaleClockAdjustment(xPrecise, frameParams, year, speedOfLight)
		}

		dxyz := gtime.Vec3{
			xPrecise[0] - xBroadcast[0],
			xPrecise[1] - xBroadcast[1],
			xPrecise[2] - xBroadcast[2],
		}
		radial, along, cross := gtime.EcefToRSW(xBroadcast, vBroadcast, dxyz)

		var dvxyz gtime.Vec3
		var dotRadial, dotAlong, dotCross float64
		if rec.HasVel {
			dvxyz = gtime.Vec3{
				rec.Vel[0] - vBroadcast[0],
				rec.Vel[1] - vBroadcast[1],
				rec.Vel[2] - vBroadcast[2],
			}
			dotRadial, dotAlong, dotCross = gtime.EcefToRSW(xBroadcast, vBroadcast, dvxyz)
		}

		// dClk = C - (clk_B - dc)*c, relativity already removed from
		// rec.Clk per step 3's "relativity correction removed before
		// writing RINEX/SP3 clocks" (the RTNet Clk field is post-
		// relativity, matching clkBroadcast which excludes it too).
		dClk := rec.Clk - (clkBroadcast-dc)*speedOfLight

		out = append(out, SatDelta{
			Sat: rec.Sat,
			Orbit: ephemeris.OrbCorr{
				Prn:   rec.Sat,
				Iod:   eph.IOD(),
				Time:  ep.Time,
				Xr:    gtime.Vec3{radial, along, cross},
				DotXr: gtime.Vec3{dotRadial, dotAlong, dotCross},
			},
			Clock: ephemeris.ClkCorr{
				Prn:  rec.Sat,
				Iod:  eph.IOD(),
				Time: ep.Time,
				DClk: dClk / speedOfLight,
			},
		})
	}
	return out
}

func decimalYear(t gtime.Time) float64 {
	y, _, _, _, _, _ := t.Calendar()
	return float64(y) + t.Daysec()/86400.0/365.25
}

// EpochOutput is everything one call to EncodeEpoch produces: the RTCM3
// frames in emission order, plus the VTEC correction-file text blob
// (empty when the epoch carried no VTEC record).
type EpochOutput struct {
	Frames [][]byte
	VTec   string
}

// EncodeEpoch implements §4.I steps 6-7: pack the per-epoch deltas into
// ClockOrbit corrections and emit in order clock+orbit, code bias,
// phase bias, VTEC, selecting the combined vs split message form per
// whether CombinedSamplSec == 0.
func (p *Producer) EncodeEpoch(ep *Epoch, deltas []SatDelta, sync bool) EpochOutput {
	var frames [][]byte

	bySys := make(map[prn.System]map[prn.Prn]*ephemeris.OrbCorr)
	clkBySys := make(map[prn.System]map[prn.Prn]*ephemeris.ClkCorr)
	for i := range deltas {
		d := &deltas[i]
		if bySys[d.Sat.System] == nil {
			bySys[d.Sat.System] = make(map[prn.Prn]*ephemeris.OrbCorr)
			clkBySys[d.Sat.System] = make(map[prn.Prn]*ephemeris.ClkCorr)
		}
		bySys[d.Sat.System][d.Sat] = &d.Orbit
		clkBySys[d.Sat.System][d.Sat] = &d.Clock
	}

	for sys, orbits := range bySys {
		clocks := clkBySys[sys]
		if p.cfg.CombinedSamplSec == 0 {
			iod := orbits[firstKey(orbits)].Iod
			if frame, err := p.encoder.CombinedMessage(sys, sync, iod, p.cfg.ClockSamplSec, 0, orbits, clocks); err == nil {
				frames = append(frames, frame)
				continue
			}
		}
		if frame, err := p.encoder.OrbitMessage(sys, sync, orbits[firstKey(orbits)].Iod, p.cfg.OrbitSamplSec, 0, orbits); err == nil {
			frames = append(frames, frame)
		}
		if frame, err := p.encoder.ClockMessage(sys, sync, clocks[firstKeyClk(clocks)].Iod, p.cfg.ClockSamplSec, clocks); err == nil {
			frames = append(frames, frame)
		}
	}

	biasBySys := make(map[prn.System]map[prn.Prn][]CodeBiasEntry)
	phaseBySys := make(map[prn.System][]SatRecord)
	for _, rec := range ep.Sats {
		if len(rec.CodeBias) > 0 {
			if biasBySys[rec.Sat.System] == nil {
				biasBySys[rec.Sat.System] = make(map[prn.Prn][]CodeBiasEntry)
			}
			biasBySys[rec.Sat.System][rec.Sat] = rec.CodeBias
		}
		if len(rec.PhaseBias) > 0 {
			phaseBySys[rec.Sat.System] = append(phaseBySys[rec.Sat.System], rec)
		}
	}
	for sys, biases := range biasBySys {
		if frame, err := p.encoder.CodeBiasMessage(sys, sync, 0, p.cfg.ClockSamplSec, biases); err == nil {
			frames = append(frames, frame)
		}
	}
	for sys, recs := range phaseBySys {
		if frame, err := p.encoder.PhaseBiasMessage(sys, sync, 0, p.cfg.ClockSamplSec, ep.DispersiveBiasCons, ep.MWCons, recs); err == nil {
			frames = append(frames, frame)
		}
	}

	out := EpochOutput{Frames: frames}
	if ep.VTec != nil {
		out.VTec = EncodeVTecCorrectionFile(ep.VTec)
	}
	return out
}

func firstKey(m map[prn.Prn]*ephemeris.OrbCorr) prn.Prn {
	for k := range m {
		return k
	}
	return prn.Prn{}
}

func firstKeyClk(m map[prn.Prn]*ephemeris.ClkCorr) prn.Prn {
	for k := range m {
		return k
	}
	return prn.Prn{}
}
