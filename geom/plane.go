package geom

import "gonum.org/v1/gonum/mat"

// fitPlane projects centroid-relative positions onto their best-fitting
// plane through the origin. The plane normal is the right singular vector
// belonging to the smallest singular value of the position matrix.
func fitPlane(pos []Position) error {
	if len(pos) < 3 {
		// One or two stations always lie in a plane already.
		return nil
	}

	a := mat.NewDense(len(pos), 3, nil)
	for i, p := range pos {
		a.Set(i, 0, p.X)
		a.Set(i, 1, p.Y)
		a.Set(i, 2, p.Z)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return errPlaneFit
	}
	var v mat.Dense
	svd.VTo(&v)

	// Singular values come sorted descending, so the last column of V is
	// the normal direction of least spread.
	nx := v.At(0, 2)
	ny := v.At(1, 2)
	nz := v.At(2, 2)
	nn := nx*nx + ny*ny + nz*nz
	if nn == 0 {
		return nil
	}

	for i, p := range pos {
		dot := (nx*p.X + ny*p.Y + nz*p.Z) / nn
		pos[i] = Position{
			X: p.X - nx*dot,
			Y: p.Y - ny*dot,
			Z: p.Z - nz*dot,
		}
	}
	return nil
}
