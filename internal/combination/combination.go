// Package combination implements the multi-analysis-center SSR
// combination engine (component H): orbit outlier screening, a
// sequential Kalman "filter" method and a batched "single-epoch"
// method, both reusing internal/linalg's dense Kalman core the way
// internal/ppp does (per spec §4.H's explicit cross-reference to
// §4.G's filter construction).
package combination

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"bncgo/internal/ephemeris"
	"bncgo/internal/linalg"
	"bncgo/internal/prn"
)

// Method selects the combination strategy (config surface, §6 cmbMethod).
type Method int

const (
	MethodFilter Method = iota
	MethodSingleEpoch
)

// ACStream is one analysis center's per-epoch correction input.
type ACStream struct {
	Name   string
	Weight float64
	Orbit  map[prn.Prn]*ephemeris.OrbCorr
	Clock  map[prn.Prn]*ephemeris.ClkCorr
}

// Consensus is the combination engine's per-epoch output: one emitted
// clock correction per satellite, orbit corrections sourced from the
// master AC, grounded on §4.H step 7.
type Consensus struct {
	Clock map[prn.Prn]float64       // seconds
	Orbit map[prn.Prn]*ephemeris.OrbCorr
	Used  map[prn.Prn][]string // surviving AC names, after outlier rejection
}

const (
	orbitOutlierThreshold = 0.20 // m, §4.H step 3
	defaultMasterMissing  = 1    // epochs before promotion, §4.H step 4
	defaultObsSigma       = 0.05 // m, §4.H step 5
	defaultMaxRes         = 999.0
	regularizationWeight  = 1e12
)

// Engine holds the rolling master-AC-missing counters across epochs; it
// is not itself goroutine-safe — the spec's concurrency model (§5) runs
// the combiner on its own single task, so callers serialize epochs
// externally.
type Engine struct {
	Master   string
	MaxRes   float64
	missing  map[string]int
	log      *logrus.Logger
}

// NewEngine constructs a combination engine designating master as the
// primary analysis center (§4.H step 4).
func NewEngine(master string, maxRes float64, log *logrus.Logger) *Engine {
	if maxRes <= 0 {
		maxRes = defaultMaxRes
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Master: master, MaxRes: maxRes, missing: make(map[string]int), log: log}
}

// ScreenOrbitOutliers implements §4.H step 3: per PRN, iteratively
// reject the AC whose RAO (radial/along/cross) offset deviates most from
// the cross-AC mean by more than orbitOutlierThreshold, until the
// remaining set is stable; PRNs left with fewer than 2 observations are
// dropped entirely.
func ScreenOrbitOutliers(streams []ACStream) map[prn.Prn][]string {
	bySat := make(map[prn.Prn][]string)
	for _, s := range streams {
		for sat := range s.Orbit {
			bySat[sat] = append(bySat[sat], s.Name)
		}
	}
	survivors := make(map[prn.Prn][]string)
	for sat, acNames := range bySat {
		cur := append([]string(nil), acNames...)
		for {
			if len(cur) < 2 {
				break
			}
			mean := meanRAO(streams, sat, cur)
			worst, worstIdx := -1.0, -1
			for i, name := range cur {
				oc := lookupOrb(streams, name, sat)
				if oc == nil {
					continue
				}
				d := rswDist(oc.Xr, mean)
				if d > worst {
					worst, worstIdx = d, i
				}
			}
			if worst <= orbitOutlierThreshold || worstIdx < 0 {
				break
			}
			cur = append(cur[:worstIdx], cur[worstIdx+1:]...)
		}
		if len(cur) >= 2 {
			sort.Strings(cur)
			survivors[sat] = cur
		}
	}
	return survivors
}

func meanRAO(streams []ACStream, sat prn.Prn, names []string) [3]float64 {
	var sum [3]float64
	n := 0
	for _, name := range names {
		oc := lookupOrb(streams, name, sat)
		if oc == nil {
			continue
		}
		sum[0] += oc.Xr[0]
		sum[1] += oc.Xr[1]
		sum[2] += oc.Xr[2]
		n++
	}
	if n == 0 {
		return [3]float64{}
	}
	return [3]float64{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
}

func rswDist(xr [3]float64, mean [3]float64) float64 {
	dx, dy, dz := xr[0]-mean[0], xr[1]-mean[1], xr[2]-mean[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func lookupOrb(streams []ACStream, name string, sat prn.Prn) *ephemeris.OrbCorr {
	for _, s := range streams {
		if s.Name == name {
			return s.Orbit[sat]
		}
	}
	return nil
}

// promoteMaster implements §4.H step 4: if the configured master is
// absent this epoch, count consecutive missing epochs and promote the
// next-best-weighted AC once the threshold is reached.
func (e *Engine) promoteMaster(streams []ACStream) string {
	present := false
	for _, s := range streams {
		if s.Name == e.Master {
			present = true
			break
		}
	}
	if present {
		e.missing[e.Master] = 0
		return e.Master
	}
	e.missing[e.Master]++
	if e.missing[e.Master] < defaultMasterMissing {
		return e.Master
	}
	best, bestW := "", -1.0
	for _, s := range streams {
		if s.Weight > bestW {
			best, bestW = s.Name, s.Weight
		}
	}
	return best
}

// Combine runs one epoch of the filter-method combination (§4.H steps
// 2-7): screen orbit outliers, build the stacked per-AC clock
// observation equations with the zero-sum regularization rows, run the
// Kalman update via internal/linalg.Filter, reject any AC/PRN exceeding
// MaxRes, and emit the consensus.
func (e *Engine) Combine(streams []ACStream, satClock *State) *Consensus {
	master := e.promoteMaster(streams)
	orbitSurvivors := ScreenOrbitOutliers(streams)

	result := &Consensus{
		Clock: make(map[prn.Prn]float64),
		Orbit: make(map[prn.Prn]*ephemeris.OrbCorr),
		Used:  make(map[prn.Prn][]string),
	}

	var rows []clockObs
	for _, s := range streams {
		for sat, cc := range s.Clock {
			if _, ok := orbitSurvivors[sat]; !ok {
				continue
			}
			rows = append(rows, clockObs{acName: s.Name, sat: sat, clkM: cc.DClk * speedOfLightCombination})
		}
	}
	if len(rows) == 0 {
		return result
	}

	satClock.ensureParams(rows)

	for {
		n := satClock.n()
		m := len(rows) + 1 + satClock.numGPSSats() // obs + global zero-sum + per-PRN AC-offset zero-sum
		h := linalg.Mat(n, m)
		v := linalg.Mat(m, 1)
		rdiag := linalg.Mat(m, m)

		col := 0
		for _, row := range rows {
			acOffIdx := satClock.acOffsetIndex(row.acName)
			acSatIdx := satClock.acSatOffsetIndex(row.acName, row.sat)
			clkIdx := satClock.satClockIndex(row.sat)
			h[acOffIdx+col*n] = 1
			h[acSatIdx+col*n] = 1
			h[clkIdx+col*n] = 1
			computed := satClock.x[acOffIdx] + satClock.x[acSatIdx] + satClock.x[clkIdx]
			v[col] = row.clkM - computed
			rdiag[col+col*m] = defaultObsSigma * defaultObsSigma
			col++
		}

		// Σ_prn sat_clock(prn) = 0
		for _, idx := range satClock.satClockIndices() {
			h[idx+col*n] = 1
		}
		v[col] = 0 - satClock.sumSatClock()
		rdiag[col+col*m] = 1.0 / regularizationWeight
		col++

		// For each GPS PRN: Σ_AC AC_sat_offset(AC, prn) = 0
		for _, sat := range satClock.gpsSats() {
			for _, idx := range satClock.acSatOffsetIndicesFor(sat) {
				h[idx+col*n] = 1
			}
			v[col] = 0 - satClock.sumAcSatOffset(sat)
			rdiag[col+col*m] = 1.0 / regularizationWeight
			col++
		}

		if err := linalg.Filter(satClock.x, satClock.p, h, v, rdiag, n, m); err != nil {
			e.log.WithError(err).Warn("combination: kalman update failed")
			break
		}

		worstRes, worstIdx := 0.0, -1
		for i, row := range rows {
			acOffIdx := satClock.acOffsetIndex(row.acName)
			acSatIdx := satClock.acSatOffsetIndex(row.acName, row.sat)
			clkIdx := satClock.satClockIndex(row.sat)
			computed := satClock.x[acOffIdx] + satClock.x[acSatIdx] + satClock.x[clkIdx]
			res := math.Abs(row.clkM - computed)
			if res > worstRes {
				worstRes, worstIdx = res, i
			}
		}
		if worstIdx < 0 || worstRes <= e.MaxRes {
			break
		}
		satClock.resetAcSatOffset(rows[worstIdx].acName, rows[worstIdx].sat)
		rows = append(rows[:worstIdx], rows[worstIdx+1:]...)
		if len(rows) == 0 {
			break
		}
	}

	for sat := range orbitSurvivors {
		idx := satClock.satClockIndex(sat)
		result.Clock[sat] = satClock.x[idx] / speedOfLightCombination
		result.Used[sat] = orbitSurvivors[sat]
		for _, s := range streams {
			if s.Name == master {
				if oc, ok := s.Orbit[sat]; ok {
					result.Orbit[sat] = oc
				}
			}
		}
	}
	return result
}

const speedOfLightCombination = 299792458.0

// CombineSingleEpoch runs the batched single-epoch method (§4.H
// "Single-epoch method"): identical parameterization to Combine, but
// every parameter is epoch-local (a fresh State, no carried process
// noise), and observations whose PRN the master AC does not itself
// report are dropped. Combine creates an AC-offset parameter for every
// AC, the master included, so the master's AC-offset is estimated like
// the others and is not held at zero.
func (e *Engine) CombineSingleEpoch(streams []ACStream) *Consensus {
	master := e.promoteMaster(streams)
	var masterClock map[prn.Prn]*ephemeris.ClkCorr
	for _, s := range streams {
		if s.Name == master {
			masterClock = s.Clock
		}
	}
	filtered := make([]ACStream, 0, len(streams))
	for _, s := range streams {
		clk := make(map[prn.Prn]*ephemeris.ClkCorr, len(s.Clock))
		for sat, cc := range s.Clock {
			if masterClock == nil {
				continue
			}
			if _, ok := masterClock[sat]; !ok {
				continue
			}
			clk[sat] = cc
		}
		filtered = append(filtered, ACStream{Name: s.Name, Weight: s.Weight, Orbit: s.Orbit, Clock: clk})
	}
	return e.Combine(filtered, NewState())
}
