// Package strain inverts inter-station ground-motion differences for
// rigid rotation and uniform strain across a small-aperture array.
//
// The estimator follows Spudich et al. (1995) with the error propagation
// of Spudich & Fletcher (2008): displacement differences between each
// station and a reference station are related to the six independent
// displacement-gradient components that survive the free-surface boundary
// condition, and a weighted least-squares generalized inverse maps the
// differences to gradients per time sample. Input units propagate
// directly: displacement in yields strain and radians out, velocity in
// yields strain rate and radians per second.
//
// Station coordinates must be in the same spatial units as the waveform
// amplitudes (meters for displacement in meters), and the aperture is
// assumed small against the shortest wavelength in the data; the package
// does not verify that assumption.
package strain

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/algo-beamform/geom"
)

// ErrUnderdetermined reports an inversion attempted with fewer than three
// stations, for which the gradient system has no solution.
var ErrUnderdetermined = errors.New("strain: fewer than 3 stations, system is underdetermined")

// conditionLimit is the condition number of the weighted normal matrix
// above which the inversion is flagged as poorly constrained.
const conditionLimit = 100

// Result carries the gradient time series, their formal covariances and
// the inversion operators.
//
// All time series have one sample per input sample. The Data, Predicted
// and Misfit rows are displacement differences concatenated per subarray
// station (east, north, up triples, reference station excluded), matching
// the rows of Design.
type Result struct {
	// Design is the 3N x 6 matrix relating the gradient solution to the
	// observed displacement differences, N being the number of subarray
	// stations minus the reference.
	Design *mat.Dense
	// Generalized is the 6 x 3N weighted generalized inverse of Design.
	Generalized *mat.Dense

	// SolutionCov is the 6x6 covariance of the gradient solution.
	SolutionCov *mat.Dense
	// StrainCov is the 4x4 covariance of the strain elements
	// (e11, e21, e22, e33).
	StrainCov *mat.Dense
	// RotationCov is the 3x3 covariance of the rotation elements
	// (w21, w31, w32).
	RotationCov *mat.Dense
	// ShearCov is the 4x4 covariance of the deviatoric shear elements
	// (11, 12, 22, 33).
	ShearCov *mat.Dense
	// HorizontalShearCov is the 3x3 covariance of the horizontal
	// deviatoric shear elements (11, 12, 22).
	HorizontalShearCov *mat.Dense

	// Solution holds the per-sample gradient vector
	// (u1,1 u1,2 u1,3 u2,1 u2,2 u2,3).
	Solution [][]float64
	// Tensor holds the per-sample symmetric strain tensor, 3x3 row-major.
	Tensor [][]float64

	// Dilatation is the total dilatation; HorizontalDilatation the
	// horizontal part it derives from through the free-surface scaling.
	Dilatation           []float64
	HorizontalDilatation []float64
	// Shear and HorizontalShear are the maximum shear strains of the full
	// and horizontal strain tensors.
	Shear           []float64
	HorizontalShear []float64

	// RotationMagnitude is the length of the rotation vector; Rotation1
	// and Rotation2 its horizontal components, Torsion the vertical one.
	// Tilt is the magnitude of the horizontal rotation.
	RotationMagnitude []float64
	Rotation1         []float64
	Rotation2         []float64
	Torsion           []float64
	Tilt              []float64

	// Data, Predicted and Misfit are the observed differences, the model
	// fit and their residual per sample. MisfitRatio is the summed misfit
	// length over the summed data length.
	Data        [][]float64
	Predicted   [][]float64
	Misfit      [][]float64
	MisfitRatio []float64

	// Formal standard deviations of the scalar outputs.
	SigmaDilatation           float64
	SigmaHorizontalDilatation float64
	SigmaRotation1            float64
	SigmaRotation2            float64
	SigmaTorsion              float64
	SigmaTilt                 float64

	Warnings []string
}

// Estimate inverts the east/north/up time series of an array, indexed
// [station][sample], for rotation and strain. pos gives the station
// positions in the waveform's spatial units, vp and vs the effective
// near-surface body-wave velocities and sigma the uniform noise standard
// deviation of the recordings (overridable per station or component
// through options).
func Estimate(pos []geom.Position, east, north, up [][]float64, vp, vs, sigma float64, opts ...Option) (*Result, error) {
	cfg := ApplyOptions(opts...)

	na := len(pos)
	if na == 0 {
		return nil, fmt.Errorf("strain: no stations")
	}
	if len(east) != na || len(north) != na || len(up) != na {
		return nil, fmt.Errorf("strain: component station counts (%d, %d, %d) do not match %d positions",
			len(east), len(north), len(up), na)
	}
	nt := len(east[0])
	for st := 0; st < na; st++ {
		if len(east[st]) != nt || len(north[st]) != nt || len(up[st]) != nt {
			return nil, fmt.Errorf("strain: station %d sample counts differ", st)
		}
	}
	if vp <= 0 || vs <= 0 {
		return nil, fmt.Errorf("strain: velocities must be positive, got vp=%g vs=%g", vp, vs)
	}

	sub := cfg.Subarray
	if len(sub) == 0 {
		sub = make([]int, na)
		for i := range sub {
			sub[i] = i
		}
	}
	for _, st := range sub {
		if st < 0 || st >= na {
			return nil, fmt.Errorf("strain: subarray station %d out of range [0,%d)", st, na)
		}
	}

	nPlus1 := len(sub)
	n := nPlus1 - 1
	if nPlus1 < 3 {
		return nil, ErrUnderdetermined
	}

	res := &Result{}
	if nPlus1 == 3 {
		res.Warnings = append(res.Warnings, "3-station subarray: the gradient system is even-determined")
	}

	eta := 1 - 2*vs*vs/(vp*vp)

	// Design matrix: each subarray station contributes three rows tying
	// its offset from the reference station to the six free gradients,
	// the third row enforcing the free-surface condition.
	a := mat.NewDense(3*n, 6, nil)
	for i := 0; i < n; i++ {
		s := pos[sub[i+1]]
		r := pos[sub[0]]
		sx, sy, sz := s.X-r.X, s.Y-r.Y, s.Z-r.Z
		a.SetRow(3*i, []float64{sx, sy, sz, 0, 0, 0})
		a.SetRow(3*i+1, []float64{0, 0, 0, sx, sy, sz})
		a.SetRow(3*i+2, []float64{-eta * sz, 0, -sx, 0, -eta * sz, -sy})
	}

	cd, err := dataCovariance(cfg, sub, na, sigma)
	if err != nil {
		return nil, err
	}

	var cdi mat.Dense
	if err := invert(&cdi, cd); err != nil {
		return nil, fmt.Errorf("strain: data covariance is singular: %w", err)
	}

	// g = (A' Cd^-1 A)^-1 A' Cd^-1
	var atCdi, normal mat.Dense
	atCdi.Mul(a.T(), &cdi)
	normal.Mul(&atCdi, a)
	var normalInv mat.Dense
	if err := invert(&normalInv, &normal); err != nil {
		return nil, fmt.Errorf("strain: normal matrix is singular, degenerate geometry: %w", err)
	}
	g := &mat.Dense{}
	g.Mul(&normalInv, &atCdi)

	if cond := mat.Cond(&normal, 2); cond > conditionLimit {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("poorly constrained inversion: condition number %.6g exceeds %d", cond, conditionLimit))
	}

	res.Design = a
	res.Generalized = g
	propagateCovariances(res, g, cd, eta)

	invertSamples(res, sub, east, north, up, eta, nt)
	return res, nil
}

// dataCovariance builds the covariance of the displacement differences,
// Cd = D Cu D', from the per-station displacement covariance Cu and the
// differencing matrix D.
func dataCovariance(cfg Config, sub []int, na int, sigma float64) (*mat.Dense, error) {
	nPlus1 := len(sub)
	n := nPlus1 - 1

	variances := make([]float64, 3*nPlus1)
	switch {
	case len(cfg.ComponentSigmas) > 0:
		if len(cfg.ComponentSigmas) != na {
			return nil, fmt.Errorf("strain: component sigmas must have %d rows, got %d", na, len(cfg.ComponentSigmas))
		}
		for j, st := range sub {
			for c := 0; c < 3; c++ {
				s := cfg.ComponentSigmas[st][c]
				variances[3*j+c] = s * s
			}
		}
	case len(cfg.StationSigmas) > 0:
		if len(cfg.StationSigmas) != na {
			return nil, fmt.Errorf("strain: station sigmas must have %d elements, got %d", na, len(cfg.StationSigmas))
		}
		for j, st := range sub {
			s := cfg.StationSigmas[st]
			for c := 0; c < 3; c++ {
				variances[3*j+c] = s * s
			}
		}
	default:
		for i := range variances {
			variances[i] = sigma * sigma
		}
	}
	cu := mat.NewDiagDense(3*nPlus1, variances)

	// Difference station rows carry -I3 against the reference columns and
	// +I3 in their own column block.
	d := mat.NewDense(3*n, 3*nPlus1, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			d.Set(3*i+c, c, -1)
			d.Set(3*i+c, 3*(i+1)+c, 1)
		}
	}

	var dcu mat.Dense
	dcu.Mul(d, cu)
	cd := &mat.Dense{}
	cd.Mul(&dcu, d.T())
	return cd, nil
}

// propagateCovariances maps the solution covariance Cp = g Cd g' into the
// strain, rotation and shear covariances and the scalar sigmas.
func propagateCovariances(res *Result, g *mat.Dense, cd *mat.Dense, eta float64) {
	var gcd mat.Dense
	gcd.Mul(g, cd)
	cp := &mat.Dense{}
	cp.Mul(&gcd, g.T())
	res.SolutionCov = cp

	// Rows map the gradient solution to e11, e21, e22, e33.
	be := mat.NewDense(4, 6, []float64{
		1, 0, 0, 0, 0, 0,
		0, 0.5, 0, 0.5, 0, 0,
		0, 0, 0, 0, 1, 0,
		-eta, 0, 0, 0, -eta, 0,
	})
	// Rows map the gradient solution to w21, w31, w32.
	bw := mat.NewDense(3, 6, []float64{
		0, 0.5, 0, -0.5, 0, 0,
		0, 0, 1, 0, 0, 0,
		0, 0, 0, 0, 0, 1,
	})
	// Deviatoric shear gamma = e - tr(e)/3 I, elements 11, 12, 22, 33.
	aa := (2 + eta) / 3
	b := (1 - eta) / 3
	c := (1 + 2*eta) / 3
	bgamma := mat.NewDense(4, 6, []float64{
		aa, 0, 0, 0, -b, 0,
		0, 0, 0, 0.5, 0, 0,
		-b, 0, 0.5, 0, aa, 0,
		-c, 0, 0, 0, -c, 0,
	})
	// Horizontal deviatoric shear, elements 11, 12, 22.
	bgammah := mat.NewDense(3, 6, []float64{
		0.5, 0, 0, 0, -0.5, 0,
		0, 0.5, 0, 0.5, 0, 0,
		-0.5, 0, 0, 0, 0.5, 0,
	})

	res.StrainCov = sandwich(be, cp)
	res.RotationCov = sandwich(bw, cp)
	res.ShearCov = sandwich(bgamma, cp)
	res.HorizontalShearCov = sandwich(bgammah, cp)

	cdh := cp.At(0, 0) + 2*cp.At(0, 4) + cp.At(4, 4)
	res.SigmaHorizontalDilatation = math.Sqrt(cdh)
	res.SigmaDilatation = (1 - eta) * math.Sqrt(cdh)
	res.SigmaTorsion = math.Sqrt((cp.At(1, 1) - 2*cp.At(1, 3) + cp.At(3, 3)) / 4)
	res.SigmaRotation1 = math.Sqrt(cp.At(5, 5))
	res.SigmaRotation2 = math.Sqrt(cp.At(2, 2))
	// Tilt is not linear in the solution; Papoulis (1965, p. 195) bounds
	// the deviation of a vector magnitude from its dominant component.
	res.SigmaTilt = math.Max(res.SigmaRotation1, res.SigmaRotation2) * math.Sqrt(2-math.Pi/2)
}

// invert is Inverse with ill-conditioning demoted from error to
// tolerated: near-singular systems still produce a result here and are
// reported through the condition-number warning instead.
func invert(dst *mat.Dense, src mat.Matrix) error {
	err := dst.Inverse(src)
	if err == nil {
		return nil
	}
	var cond mat.Condition
	if errors.As(err, &cond) {
		return nil
	}
	return err
}

func sandwich(b *mat.Dense, cp *mat.Dense) *mat.Dense {
	var bcp mat.Dense
	bcp.Mul(b, cp)
	out := &mat.Dense{}
	out.Mul(&bcp, b.T())
	return out
}

// invertSamples applies the generalized inverse per time sample and
// derives the rotation and strain series.
func invertSamples(res *Result, sub []int, east, north, up [][]float64, eta float64, nt int) {
	n := len(sub) - 1
	g := res.Generalized
	a := res.Design

	res.Solution = make([][]float64, nt)
	res.Tensor = make([][]float64, nt)
	res.Data = make([][]float64, nt)
	res.Predicted = make([][]float64, nt)
	res.Misfit = make([][]float64, nt)
	res.Dilatation = make([]float64, nt)
	res.HorizontalDilatation = make([]float64, nt)
	res.Shear = make([]float64, nt)
	res.HorizontalShear = make([]float64, nt)
	res.RotationMagnitude = make([]float64, nt)
	res.Rotation1 = make([]float64, nt)
	res.Rotation2 = make([]float64, nt)
	res.Torsion = make([]float64, nt)
	res.Tilt = make([]float64, nt)
	res.MisfitRatio = make([]float64, nt)

	dataVec := mat.NewVecDense(3*n, nil)
	var solVec, predVec mat.VecDense
	var eig mat.EigenSym

	ref := sub[0]
	for t := 0; t < nt; t++ {
		sumLen := 0.0
		for i := 0; i < n; i++ {
			st := sub[i+1]
			dx := east[st][t] - east[ref][t]
			dy := north[st][t] - north[ref][t]
			dz := up[st][t] - up[ref][t]
			dataVec.SetVec(3*i, dx)
			dataVec.SetVec(3*i+1, dy)
			dataVec.SetVec(3*i+2, dz)
			sumLen += math.Sqrt(dx*dx + dy*dy + dz*dz)
		}

		solVec.MulVec(g, dataVec)
		p := solVec.RawVector().Data
		predVec.MulVec(a, &solVec)

		data := make([]float64, 3*n)
		pred := make([]float64, 3*n)
		mis := make([]float64, 3*n)
		misLen := 0.0
		for i := 0; i < n; i++ {
			sq := 0.0
			for c := 0; c < 3; c++ {
				k := 3*i + c
				data[k] = dataVec.AtVec(k)
				pred[k] = predVec.AtVec(k)
				mis[k] = pred[k] - data[k]
				sq += mis[k] * mis[k]
			}
			misLen += math.Sqrt(sq)
		}
		res.Data[t] = data
		res.Predicted[t] = pred
		res.Misfit[t] = mis
		res.MisfitRatio[t] = misLen / sumLen
		res.Solution[t] = append([]float64(nil), p...)

		// Free-surface condition fills the vertical gradient row.
		u31 := -p[2]
		u32 := -p[5]
		u33 := -eta * (p[0] + p[4])
		e := []float64{
			p[0], 0.5 * (p[1] + p[3]), 0.5 * (p[2] + u31),
			0.5 * (p[1] + p[3]), p[4], 0.5 * (p[5] + u32),
			0.5 * (p[2] + u31), 0.5 * (p[5] + u32), u33,
		}
		res.Tensor[t] = e

		w1 := -p[5]
		w2 := p[2]
		w3 := 0.5 * (p[3] - p[1])
		res.Rotation1[t] = w1
		res.Rotation2[t] = w2
		res.Torsion[t] = w3
		res.RotationMagnitude[t] = math.Sqrt(w1*w1 + w2*w2 + w3*w3)
		res.Tilt[t] = math.Sqrt(w1*w1 + w2*w2)

		dh := e[0] + e[4]
		res.HorizontalDilatation[t] = dh
		res.Dilatation[t] = (1 - eta) * dh

		// Maximum shear is half the spread of the principal strains
		// (Fung 1965, p. 71).
		gammah := mat.NewSymDense(2, []float64{
			e[0] - dh/2, e[1],
			e[1], e[4] - dh/2,
		})
		res.HorizontalShear[t] = halfEigSpread(&eig, gammah)

		full := mat.NewSymDense(3, e)
		res.Shear[t] = halfEigSpread(&eig, full)
	}
}

func halfEigSpread(eig *mat.EigenSym, s *mat.SymDense) float64 {
	if !eig.Factorize(s, false) {
		return math.NaN()
	}
	vals := eig.Values(nil)
	return 0.5 * (vals[len(vals)-1] - vals[0])
}
