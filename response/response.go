// Package response estimates array transfer functions: the spatial
// aliasing pattern an array geometry imprints on plane waves, independent
// of any recorded data. Maps are normalized so their maximum is exactly 1.
package response

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/integrate"

	"github.com/cwbudde/algo-beamform/geom"
)

// Limits bounds a wavenumber- or slowness-difference grid.
type Limits struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Symmetric returns limits of ±lim on both axes.
func Symmetric(lim float64) Limits {
	return Limits{XMin: -lim, XMax: lim, YMin: -lim, YMax: lim}
}

// Map is a transfer-function grid. Point (ix, iy) lies at
// (XMin + ix*Step, YMin + iy*Step).
type Map struct {
	XMin, YMin float64
	Step       float64
	// Values holds the max-normalized squared beam magnitude, indexed
	// [ix][iy].
	Values [][]float64
}

// At returns the grid coordinates of point (ix, iy).
func (m *Map) At(ix, iy int) (x, y float64) {
	return m.XMin + float64(ix)*m.Step, m.YMin + float64(iy)*m.Step
}

// gridCount covers [min, max] inclusive, padding the upper bound by a
// tenth of a step so the endpoint survives floating-point accumulation.
func gridCount(min, max, step float64) int {
	return int(math.Ceil((max + step/10 - min) / step))
}

func checkGrid(lim Limits, step float64) error {
	if step <= 0 {
		return fmt.Errorf("response: step must be > 0: %g", step)
	}
	if lim.XMax < lim.XMin || lim.YMax < lim.YMin {
		return fmt.Errorf("response: limits x [%g, %g], y [%g, %g] are empty",
			lim.XMin, lim.XMax, lim.YMin, lim.YMax)
	}
	return nil
}

// Wavenumber computes the transfer function over wavenumber differences
// (rad/km) for centered station positions.
func Wavenumber(pos []geom.Position, lim Limits, kstep float64) (*Map, error) {
	if len(pos) == 0 {
		return nil, fmt.Errorf("response: no station positions")
	}
	if err := checkGrid(lim, kstep); err != nil {
		return nil, err
	}

	nkx := gridCount(lim.XMin, lim.XMax, kstep)
	nky := gridCount(lim.YMin, lim.YMax, kstep)
	m := &Map{XMin: lim.XMin, YMin: lim.YMin, Step: kstep, Values: make([][]float64, nkx)}

	for i := range m.Values {
		m.Values[i] = make([]float64, nky)
		kx := lim.XMin + float64(i)*kstep
		for j := range m.Values[i] {
			ky := lim.YMin + float64(j)*kstep
			var sum complex128
			for _, p := range pos {
				phase := p.X*kx + p.Y*ky
				sum += cmplx.Exp(complex(0, phase))
			}
			a := cmplx.Abs(sum)
			m.Values[i][j] = a * a
		}
	}
	normalize(m.Values)
	return m, nil
}

// FreqSlowness computes the transfer function over slowness differences
// (s/km), integrating the squared beam magnitude over [fmin, fmax] Hz with
// trapezoidal quadrature in steps of fstep.
func FreqSlowness(pos []geom.Position, lim Limits, sstep, fmin, fmax, fstep float64) (*Map, error) {
	if len(pos) == 0 {
		return nil, fmt.Errorf("response: no station positions")
	}
	if err := checkGrid(lim, sstep); err != nil {
		return nil, err
	}
	if fstep <= 0 || fmax < fmin {
		return nil, fmt.Errorf("response: frequency band [%g, %g] Hz in steps of %g is empty",
			fmin, fmax, fstep)
	}

	nf := gridCount(fmin, fmax, fstep)
	if nf < 2 {
		return nil, fmt.Errorf("response: band [%g, %g] Hz holds %d sample(s), need at least 2 for quadrature",
			fmin, fmax, nf)
	}
	freqs := make([]float64, nf)
	for k := range freqs {
		freqs[k] = fmin + float64(k)*fstep
	}
	buff := make([]float64, nf)

	nsx := gridCount(lim.XMin, lim.XMax, sstep)
	nsy := gridCount(lim.YMin, lim.YMax, sstep)
	m := &Map{XMin: lim.XMin, YMin: lim.YMin, Step: sstep, Values: make([][]float64, nsx)}

	for i := range m.Values {
		m.Values[i] = make([]float64, nsy)
		sx := lim.XMin + float64(i)*sstep
		for j := range m.Values[i] {
			sy := lim.YMin + float64(j)*sstep
			for k, f := range freqs {
				var sum complex128
				for _, p := range pos {
					phase := (p.X*sx + p.Y*sy) * 2 * math.Pi * f
					sum += cmplx.Exp(complex(0, phase))
				}
				a := cmplx.Abs(sum)
				buff[k] = a * a
			}
			m.Values[i][j] = integrate.Trapezoidal(freqs, buff)
		}
	}
	normalize(m.Values)
	return m, nil
}

func normalize(values [][]float64) {
	max := math.Inf(-1)
	for _, row := range values {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	if max <= 0 {
		return
	}
	for _, row := range values {
		for i := range row {
			row[i] /= max
		}
	}
}
