// Package linalg provides the pseudo-inverse used by the adaptive
// beamformer. Complex matrices are embedded into real 2n x 2n form so the
// factorization can run on a real SVD.
package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PseudoInverse computes the Moore-Penrose pseudo-inverse of an n x n
// complex matrix stored row-major in src and writes it row-major into dst.
// Singular values below rcond times the largest singular value are treated
// as zero, which keeps near-singular covariance matrices from blowing up.
//
// dst and src must both hold n*n elements; dst may alias src.
func PseudoInverse(dst, src []complex128, n int, rcond float64) error {
	if n <= 0 {
		return fmt.Errorf("linalg: matrix order must be > 0: %d", n)
	}
	if len(src) != n*n || len(dst) != n*n {
		return fmt.Errorf("linalg: need %d elements, got src=%d dst=%d", n*n, len(src), len(dst))
	}
	if rcond < 0 {
		return fmt.Errorf("linalg: rcond must be >= 0: %g", rcond)
	}

	// Real embedding: C = A+iB maps to [[A, -B], [B, A]]. The pseudo-inverse
	// of the embedding is the embedding of the pseudo-inverse.
	m := mat.NewDense(2*n, 2*n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			re := real(src[i*n+j])
			im := imag(src[i*n+j])
			m.Set(i, j, re)
			m.Set(i+n, j+n, re)
			m.Set(i, j+n, -im)
			m.Set(i+n, j, im)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return fmt.Errorf("linalg: SVD failed to converge")
	}

	values := svd.Values(nil)
	cutoff := 0.0
	if len(values) > 0 {
		cutoff = rcond * values[0]
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// pinv = V * diag(1/s) * U^T with small singular values dropped.
	inv := mat.NewDense(2*n, 2*n, nil)
	scaled := mat.NewDense(2*n, 2*n, nil)
	for j, s := range values {
		w := 0.0
		if s > cutoff && s > 0 {
			w = 1 / s
		}
		for i := 0; i < 2*n; i++ {
			scaled.Set(i, j, v.At(i, j)*w)
		}
	}
	inv.Mul(scaled, u.T())

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dst[i*n+j] = complex(inv.At(i, j), inv.At(i+n, j))
		}
	}
	return nil
}
