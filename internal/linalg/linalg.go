// Package linalg provides the small dense-matrix core shared by the PPP
// filter (component G) and the combination engine (component H):
// column-major flat-slice matrices, LU-based inversion, and the Kalman
// gain update. Grounded on the teacher's common.go (Mat/MatMul/LUDcmp/
// LUBksb/MatInv/Filter) — kept as a dense small-matrix library per
// SPEC_FULL.md's "Numeric choice" design note rather than a general
// sparse/BLAS-backed package, since filter state here never exceeds a
// few dozen parameters.
package linalg

import (
	"errors"
	"math"
)

// ErrSingular is returned by Inv/Solve when the matrix cannot be
// inverted (a zero pivot was found during LU decomposition).
var ErrSingular = errors.New("linalg: singular matrix")

// Mat allocates an n*m column-major matrix.
func Mat(n, m int) []float64 { return make([]float64, n*m) }

// Eye returns the n x n identity matrix.
func Eye(n int) []float64 {
	m := Mat(n, n)
	for i := 0; i < n; i++ {
		m[i+i*n] = 1.0
	}
	return m
}

// Dot is the inner product of two length-n vectors.
func Dot(a, b []float64, n int) float64 {
	var s float64
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

// Norm is the Euclidean norm of a length-n vector.
func Norm(a []float64, n int) float64 { return math.Sqrt(Dot(a, a, n)) }

// MatMul computes C = alpha*op(A)*op(B) + beta*C, where op is transpose
// or identity per tr[0] (for A) and tr[1] (for B) being 'N' or 'T'. A is
// n x m (or m x n if transposed), B is m x k (or k x m), C is n x k.
// Matrices are column-major (Fortran order), matching the teacher's
// MatMul convention.
func MatMul(tr string, n, k, m int, alpha float64, A, B []float64, beta float64, C []float64) {
	ta := tr[0] != 'N'
	tb := tr[1] != 'N'
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			var d float64
			for x := 0; x < m; x++ {
				var av, bv float64
				if ta {
					av = A[x+i*m]
				} else {
					av = A[i+x*n]
				}
				if tb {
					bv = B[j+x*k]
				} else {
					bv = B[x+j*m]
				}
				d += av * bv
			}
			if beta == 0 {
				C[i+j*n] = alpha * d
			} else {
				C[i+j*n] = alpha*d + beta*C[i+j*n]
			}
		}
	}
}

func luDecompose(a []float64, n int, indx []int) (float64, error) {
	d := 1.0
	vv := make([]float64, n)
	for i := 0; i < n; i++ {
		big := 0.0
		for j := 0; j < n; j++ {
			if v := math.Abs(a[i+j*n]); v > big {
				big = v
			}
		}
		if big == 0 {
			return 0, ErrSingular
		}
		vv[i] = 1.0 / big
	}
	for j := 0; j < n; j++ {
		for i := 0; i < j; i++ {
			s := a[i+j*n]
			for k := 0; k < i; k++ {
				s -= a[i+k*n] * a[k+j*n]
			}
			a[i+j*n] = s
		}
		big := 0.0
		imax := j
		for i := j; i < n; i++ {
			s := a[i+j*n]
			for k := 0; k < j; k++ {
				s -= a[i+k*n] * a[k+j*n]
			}
			a[i+j*n] = s
			if t := vv[i] * math.Abs(s); t >= big {
				big = t
				imax = i
			}
		}
		if j != imax {
			for k := 0; k < n; k++ {
				a[imax+k*n], a[j+k*n] = a[j+k*n], a[imax+k*n]
			}
			d = -d
			vv[imax] = vv[j]
		}
		indx[j] = imax
		if a[j+j*n] == 0 {
			return 0, ErrSingular
		}
		if j != n-1 {
			t := 1.0 / a[j+j*n]
			for i := j + 1; i < n; i++ {
				a[i+j*n] *= t
			}
		}
	}
	return d, nil
}

func luBacksub(a []float64, n int, indx []int, b []float64) {
	ii := -1
	for i := 0; i < n; i++ {
		ip := indx[i]
		s := b[ip]
		b[ip] = b[i]
		if ii >= 0 {
			for j := ii; j < i; j++ {
				s -= a[i+j*n] * b[j]
			}
		} else if s != 0 {
			ii = i
		}
		b[i] = s
	}
	for i := n - 1; i >= 0; i-- {
		s := b[i]
		for j := i + 1; j < n; j++ {
			s -= a[i+j*n] * b[j]
		}
		b[i] = s / a[i+i*n]
	}
}

// Inv inverts the n x n matrix a in place.
func Inv(a []float64, n int) error {
	b := append([]float64(nil), a...)
	indx := make([]int, n)
	if _, err := luDecompose(b, n, indx); err != nil {
		return err
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a[i+j*n] = 0
		}
		a[j+j*n] = 1
		col := a[j*n : j*n+n]
		luBacksub(b, n, indx, col)
	}
	return nil
}

// LSQ solves the normal-equation least-squares problem x = (A*A')^-1*A*y,
// where A is the transposed (weighted) design matrix (n x m) and y the
// (weighted) observations (m x 1); n is parameter count, m observation
// count (m >= n required). Q receives the parameter covariance.
func LSQ(A, y []float64, n, m int, x, Q []float64) error {
	if m < n {
		return errors.New("linalg: underdetermined system")
	}
	ay := Mat(n, 1)
	MatMul("NN", n, 1, m, 1.0, A, y, 0.0, ay)
	MatMul("NT", n, n, m, 1.0, A, A, 0.0, Q)
	if err := Inv(Q, n); err != nil {
		return err
	}
	MatMul("NN", n, 1, n, 1.0, Q, ay, 0.0, x)
	return nil
}

// Filter performs one Kalman measurement update:
//
//	K = P*H*(H'*P*H+R)^-1, xp = x+K*v, Pp = (I-K*H')*P
//
// x (n x 1) and P (n x n) are updated in place. H is the design matrix
// transpose (n x m), v the innovation (m x 1), R the measurement
// covariance (m x m). State entries with x[i]==0 or P[i,i]<=0 are
// treated as inactive and excluded from the update, matching the
// teacher's Filter wrapper around filter_.
func Filter(x, P, H, v, R []float64, n, m int) error {
	ix := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if x[i] != 0 && P[i+i*n] > 0 {
			ix = append(ix, i)
		}
	}
	k := len(ix)
	x_ := Mat(k, 1)
	P_ := Mat(k, k)
	H_ := Mat(k, m)
	for i := 0; i < k; i++ {
		x_[i] = x[ix[i]]
		for j := 0; j < k; j++ {
			P_[i+j*k] = P[ix[i]+ix[j]*n]
		}
		for j := 0; j < m; j++ {
			H_[i+j*k] = H[ix[i]+j*n]
		}
	}

	Q := append([]float64(nil), R...)
	F := Mat(k, m)
	MatMul("NN", k, m, k, 1.0, P_, H_, 0.0, F)
	MatMul("TN", m, m, k, 1.0, H_, F, 1.0, Q)
	if err := Inv(Q, m); err != nil {
		return err
	}
	K := Mat(k, m)
	MatMul("NN", k, m, m, 1.0, F, Q, 0.0, K)

	xp := append([]float64(nil), x_...)
	MatMul("NN", k, 1, m, 1.0, K, v, 1.0, xp)

	I := Eye(k)
	MatMul("NT", k, k, m, -1.0, K, H_, 1.0, I)
	Pp := Mat(k, k)
	MatMul("NN", k, k, k, 1.0, I, P_, 0.0, Pp)

	for i := 0; i < k; i++ {
		x[ix[i]] = xp[i]
		for j := 0; j < k; j++ {
			P[ix[i]+ix[j]*n] = Pp[i+j*k]
		}
	}
	return nil
}
