// Package reencoder implements the RTNet-to-RTCM3 SSR re-encoder/
// uploader (component I): parsing the analysis center's ASCII per-epoch
// record format, transforming coordinates between reference frames via
// the 14-parameter Helmert model, and re-encoding the result as RTCM3 SSR
// messages, grounded on the teacher's encode-side counterpart to its SSR
// decoder (`rtcm3e.go`'s `encode_ssr_head`/`encode_ssr1`..`encode_ssr7`).
package reencoder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bncgo/internal/gtime"
	"bncgo/internal/prn"
)

// PhaseBiasEntry is one tagged phase-bias code/value/indicator tuple
// from an RTNet "PhaseBias" block.
type PhaseBiasEntry struct {
	Code                 string
	Value                float64
	IntegerIndicator     int
	WideLaneIndicator    int
	DiscontinuityCounter int
}

// CodeBiasEntry is one tagged code-bias code/value pair.
type CodeBiasEntry struct {
	Code  string
	Value float64
}

// SatRecord is one satellite's worth of fields parsed out of one RTNet
// epoch block (§4.I step 2).
type SatRecord struct {
	Sat        prn.Prn
	APC        gtime.Vec3 // antenna phase center, m
	HasAPC     bool
	Clk        float64 // m
	HasClk     bool
	Vel        gtime.Vec3
	HasVel     bool
	CoM        gtime.Vec3 // center of mass, m
	HasCoM     bool
	CodeBias   []CodeBiasEntry
	YawAngle   float64
	HasYaw     bool
	YawRate    float64
	HasYawRate bool
	PhaseBias  []PhaseBiasEntry
}

// VTecLayer is one spherical-harmonic layer parsed from an RTNet "VTEC"
// line: degree/order bounds, height, and the cosine/sine coefficient
// matrices (§4.I step 2, §6 "VTEC body per layer").
type VTecLayer struct {
	N, M   int
	Height float64
	C, S   [][]float64
}

// VTecData is the global VTEC record of one RTNet epoch, present only
// when the source ASCII carries a "VTEC" line.
type VTecData struct {
	UpdateInt float64
	Layers    []VTecLayer
}

// Epoch is one parsed RTNet block: the timestamp, global indicators, and
// every satellite record in it (§4.I step 1-2).
type Epoch struct {
	Time               gtime.Time
	DispersiveBiasCons bool
	MWCons             bool
	Sats               []SatRecord
	VTec               *VTecData
}

// RTNetScanner reads RTNet-format ASCII epoch blocks from r, grounded on
// the field-tag layout of §4.I step 2 (APC/Clk/Vel/CoM/CodeBias/
// YawAngle/YawRate/PhaseBias/IND). Each call returns the next epoch, or
// io.EOF when the stream is exhausted.
type RTNetScanner struct {
	s *bufio.Scanner
}

func NewRTNetScanner(r io.Reader) *RTNetScanner {
	return &RTNetScanner{s: bufio.NewScanner(r)}
}

// Next parses and returns the next epoch block, or io.EOF.
func (rs *RTNetScanner) Next() (*Epoch, error) {
	var ep *Epoch
	for rs.s.Scan() {
		line := strings.TrimRight(rs.s.Text(), "\r\n")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "*") {
			if ep != nil {
				return ep, nil
			}
			t, err := parseEpochTime(line)
			if err != nil {
				return nil, err
			}
			ep = &Epoch{Time: t}
			continue
		}
		if ep == nil {
			continue // data before any epoch header: skip per "parse error -> reject record" policy
		}
		if strings.HasPrefix(line, "EOE") {
			return ep, nil
		}
		if strings.HasPrefix(line, "IND") {
			parseIndicators(line, ep)
			continue
		}
		if strings.HasPrefix(line, "VTEC") {
			if v, err := parseVTec(line); err == nil {
				ep.VTec = v
			}
			continue
		}
		if err := parseSatLine(line, ep); err != nil {
			// Malformed record: reject and continue the stream (§7 "Parse error").
			continue
		}
	}
	if ep != nil {
		return ep, nil
	}
	return nil, io.EOF
}

func parseEpochTime(line string) (gtime.Time, error) {
	f := strings.Fields(line)
	if len(f) < 7 {
		return gtime.Time{}, fmt.Errorf("reencoder: malformed epoch header %q", line)
	}
	y, err1 := strconv.Atoi(f[1])
	mo, err2 := strconv.Atoi(f[2])
	d, err3 := strconv.Atoi(f[3])
	h, err4 := strconv.Atoi(f[4])
	mi, err5 := strconv.Atoi(f[5])
	s, err6 := strconv.ParseFloat(f[6], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return gtime.Time{}, fmt.Errorf("reencoder: malformed epoch header %q", line)
	}
	return gtime.Set(y, mo, d, h, mi, s), nil
}

func parseIndicators(line string, ep *Epoch) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return
	}
	ep.DispersiveBiasCons = f[1] == "1"
	ep.MWCons = f[2] == "1"
}

func parseSatLine(line string, ep *Epoch) error {
	f := strings.Fields(line)
	if len(f) < 2 {
		return fmt.Errorf("reencoder: short sat line")
	}
	sat, err := parsePrn(f[0])
	if err != nil {
		return err
	}
	var rec *SatRecord
	for i := range ep.Sats {
		if ep.Sats[i].Sat == sat {
			rec = &ep.Sats[i]
			break
		}
	}
	if rec == nil {
		ep.Sats = append(ep.Sats, SatRecord{Sat: sat})
		rec = &ep.Sats[len(ep.Sats)-1]
	}

	i := 1
	for i < len(f) {
		tag := f[i]
		i++
		switch tag {
		case "APC", "Clk", "Vel", "CoM", "YawAngle", "YawRate":
			i++ // skip the value-count token
		}
		switch tag {
		case "APC":
			v, n := readFloats(f, i, 3)
			if n < 3 {
				return fmt.Errorf("reencoder: short APC block")
			}
			rec.APC, rec.HasAPC = gtime.Vec3{v[0], v[1], v[2]}, true
			i += n
		case "Clk":
			v, n := readFloats(f, i, 1)
			if n < 1 {
				return fmt.Errorf("reencoder: short Clk block")
			}
			rec.Clk, rec.HasClk = v[0], true
			i += n
		case "Vel":
			v, n := readFloats(f, i, 3)
			if n < 3 {
				return fmt.Errorf("reencoder: short Vel block")
			}
			rec.Vel, rec.HasVel = gtime.Vec3{v[0], v[1], v[2]}, true
			i += n
		case "CoM":
			v, n := readFloats(f, i, 3)
			if n < 3 {
				return fmt.Errorf("reencoder: short CoM block")
			}
			rec.CoM, rec.HasCoM = gtime.Vec3{v[0], v[1], v[2]}, true
			i += n
		case "CodeBias":
			if i >= len(f) {
				return fmt.Errorf("reencoder: missing CodeBias count")
			}
			n, err := strconv.Atoi(f[i])
			if err != nil {
				return err
			}
			i++
			for k := 0; k < n && i+1 < len(f); k++ {
				v, err := strconv.ParseFloat(f[i+1], 64)
				if err != nil {
					return err
				}
				rec.CodeBias = append(rec.CodeBias, CodeBiasEntry{Code: f[i], Value: v})
				i += 2
			}
		case "YawAngle":
			v, n := readFloats(f, i, 1)
			if n < 1 {
				return fmt.Errorf("reencoder: short YawAngle block")
			}
			rec.YawAngle, rec.HasYaw = v[0], true
			i += n
		case "YawRate":
			v, n := readFloats(f, i, 1)
			if n < 1 {
				return fmt.Errorf("reencoder: short YawRate block")
			}
			rec.YawRate, rec.HasYawRate = v[0], true
			i += n
		case "PhaseBias":
			if i >= len(f) {
				return fmt.Errorf("reencoder: missing PhaseBias count")
			}
			n, err := strconv.Atoi(f[i])
			if err != nil {
				return err
			}
			i++
			for k := 0; k < n && i+4 < len(f); k++ {
				v, errV := strconv.ParseFloat(f[i+1], 64)
				ii, errI := strconv.Atoi(f[i+2])
				wl, errW := strconv.Atoi(f[i+3])
				jc, errJ := strconv.Atoi(f[i+4])
				if errV != nil || errI != nil || errW != nil || errJ != nil {
					return fmt.Errorf("reencoder: malformed PhaseBias entry")
				}
				rec.PhaseBias = append(rec.PhaseBias, PhaseBiasEntry{
					Code: f[i], Value: v, IntegerIndicator: ii, WideLaneIndicator: wl, DiscontinuityCounter: jc,
				})
				i += 5
			}
		default:
			// Unknown tag: skip one token to keep scanning rather than
			// aborting the whole record.
			i++
		}
	}
	return nil
}

func readFloats(f []string, start, n int) ([]float64, int) {
	out := make([]float64, 0, n)
	for i := 0; i < n && start+i < len(f); i++ {
		v, err := strconv.ParseFloat(f[start+i], 64)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out, len(out)
}

// parseVTec parses a global "VTEC updateInt nLayers (idx N M height
// cosCoeffs... sinCoeffs...)*" line per §4.I step 2 / §6's VTEC body
// layout: each layer carries (N+1)*(M+1) cosine coefficients followed by
// the same count of sine coefficients.
func parseVTec(line string) (*VTecData, error) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return nil, fmt.Errorf("reencoder: short VTEC line")
	}
	updInt, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return nil, err
	}
	nLayers, err := strconv.Atoi(f[2])
	if err != nil {
		return nil, err
	}
	vd := &VTecData{UpdateInt: updInt}
	i := 3
	for l := 0; l < nLayers; l++ {
		if i+3 >= len(f) {
			return nil, fmt.Errorf("reencoder: truncated VTEC layer")
		}
		n, errN := strconv.Atoi(f[i+1])
		m, errM := strconv.Atoi(f[i+2])
		h, errH := strconv.ParseFloat(f[i+3], 64)
		if errN != nil || errM != nil || errH != nil {
			return nil, fmt.Errorf("reencoder: malformed VTEC layer header")
		}
		i += 4
		count := (n + 1) * (m + 1)
		cos := make([][]float64, n+1)
		sin := make([][]float64, n+1)
		for r := 0; r <= n; r++ {
			cos[r] = make([]float64, m+1)
			sin[r] = make([]float64, m+1)
		}
		for k := 0; k < count; k++ {
			if i >= len(f) {
				return nil, fmt.Errorf("reencoder: truncated VTEC cosine coefficients")
			}
			v, err := strconv.ParseFloat(f[i], 64)
			if err != nil {
				return nil, err
			}
			cos[k/(m+1)][k%(m+1)] = v
			i++
		}
		for k := 0; k < count; k++ {
			if i >= len(f) {
				return nil, fmt.Errorf("reencoder: truncated VTEC sine coefficients")
			}
			v, err := strconv.ParseFloat(f[i], 64)
			if err != nil {
				return nil, err
			}
			sin[k/(m+1)][k%(m+1)] = v
			i++
		}
		vd.Layers = append(vd.Layers, VTecLayer{N: n, M: m, Height: h, C: cos, S: sin})
	}
	return vd, nil
}

func parsePrn(s string) (prn.Prn, error) {
	if len(s) < 2 {
		return prn.Prn{}, fmt.Errorf("reencoder: bad prn %q", s)
	}
	n, err := strconv.Atoi(strings.TrimLeft(s[1:], "0"))
	if err != nil {
		if s[1:] == "00" || s[1:] == "0" {
			n = 0
		} else {
			return prn.Prn{}, err
		}
	}
	return prn.Prn{System: prn.System(s[0]), Number: n}, nil
}
