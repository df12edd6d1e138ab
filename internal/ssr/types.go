package ssr

import (
	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// SatCodeBias is the per-satellite, per-signal code bias correction
// (§3 "SatCodeBias"), keyed by the 2-character RINEX-v3 signal code.
type SatCodeBias struct {
	Prn       prn.Prn
	StaID     string
	Time      gtime.Time
	UpdateInt float64
	Bias      map[string]float64 // rinexCode -> meters
}

// SignalBiasDetail carries the per-signal phase-bias flags attached to a
// SatPhaseBias entry.
type SignalBiasDetail struct {
	FixIndicator         int
	WideLaneIndicator    int
	DiscontinuityCounter int
}

// SatPhaseBias extends SatCodeBias with the yaw/consistency metadata and
// per-signal bookkeeping phase bias corrections carry (§3).
type SatPhaseBias struct {
	SatCodeBias
	Yaw                     float64
	YawRate                 float64
	DispersiveConsistency   bool
	MWConsistency           bool
	PerSignal               map[string]SignalBiasDetail
}

// VTecLayer is one spherical-harmonic layer of a VTec message: height and
// the cosine/sine coefficient matrices, indexed [degree][order].
type VTecLayer struct {
	Height float64
	C, S   [][]float64
}

// VTec is the slant/vertical TEC spherical-harmonic correction (§3).
type VTec struct {
	Time      gtime.Time
	StaID     string
	UpdateInt float64
	Layers    []VTecLayer
}
