package ppp

import (
	"math"

	"bncgo/internal/linalg"
)

// outlierThreshold is the normalized-residual rejection threshold,
// grounded on the teacher's PPPAmbiguity/valpos reject-by-sigma
// convention (ppp.go uses a similar fixed multiple of sqrt(variance)).
const outlierThreshold = 4.0

// UpdateReport summarizes one epoch's measurement update, grounded on
// the spec's "journaled update via commit()/rollback()" design note
// (REDESIGN FLAGS): callers inspect Rejected to log which satellites
// were dropped as outliers.
type UpdateReport struct {
	Used     int
	Rejected []Residual
}

// Update runs the two-phase prefit/postfit measurement update: build
// every residual, filter once, recompute postfit residuals, and retry
// with any outlier observations excluded, rolling back to the
// pre-update checkpoint between phases. Grounded on PPPos's per-epoch
// loop (ppp.go), which re-solves after dropping flagged observations
// rather than down-weighting them in place.
func (s *State) Update(residuals []Residual) (*UpdateReport, error) {
	x0, p0 := s.Snapshot()

	used, rejected, err := s.applyResiduals(residuals)
	if err != nil {
		s.Restore(x0, p0)
		return nil, err
	}
	if len(rejected) == 0 {
		return &UpdateReport{Used: used, Rejected: nil}, nil
	}

	// Phase 2: roll back and re-apply excluding the rejected set.
	s.Restore(x0, p0)
	rejectedSat := make(map[string]bool, len(rejected))
	for _, r := range rejected {
		rejectedSat[r.Sat.String()] = true
	}
	kept := make([]Residual, 0, len(residuals))
	for _, r := range residuals {
		if !rejectedSat[r.Sat.String()] {
			kept = append(kept, r)
		}
	}
	used, _, err = s.applyResiduals(kept)
	if err != nil {
		s.Restore(x0, p0)
		return nil, err
	}
	return &UpdateReport{Used: used, Rejected: rejected}, nil
}

// applyResiduals builds the stacked design matrix/innovation/variance
// for residuals, runs one Kalman update via internal/linalg.Filter,
// then classifies each residual's postfit normalized value against
// outlierThreshold, grounded on PPPResidual's v/var accumulation
// (ppp.go) followed by valpos's chi-square-style gate.
func (s *State) applyResiduals(residuals []Residual) (used int, rejected []Residual, err error) {
	m := len(residuals)
	if m == 0 {
		return 0, nil, nil
	}
	n := s.N()

	h := linalg.Mat(n, m)
	v := linalg.Mat(m, 1)
	r := linalg.Mat(m, m)

	for j, res := range residuals {
		for i := 0; i < numFixed; i++ {
			h[i+j*n] = res.Partials[i]
		}
		if res.AmbIdx >= 0 && res.AmbIdx < n {
			h[res.AmbIdx+j*n] = res.AmbCoeff
			if res.AmbCoeff == 0 {
				h[res.AmbIdx+j*n] = 1.0
			}
		}
		v[j] = res.Value
		r[j+j*m] = res.Variance
	}

	xPrev := append([]float64(nil), s.X...)
	if err := linalg.Filter(s.X, s.P, h, v, r, n, m); err != nil {
		return 0, nil, err
	}

	// Postfit residual: the prefit value minus H times the state change.
	for j, res := range residuals {
		computed := 0.0
		for i := 0; i < numFixed; i++ {
			computed += h[i+j*n] * (s.X[i] - xPrev[i])
		}
		if res.AmbIdx >= 0 {
			computed += h[res.AmbIdx+j*n] * (s.X[res.AmbIdx] - xPrev[res.AmbIdx])
		}
		postfit := res.Value - computed
		sigma := math.Sqrt(math.Max(res.Variance, 1e-12))
		if math.Abs(postfit) > outlierThreshold*sigma {
			rejected = append(rejected, res)
			continue
		}
		used++
	}
	return used, rejected, nil
}
