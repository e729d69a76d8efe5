// Package taper generates the symmetric cosine taper applied to analysis
// windows before spectral estimation. It is the Tukey family with the taper
// fraction expressed as the tapered share of the whole window.
package taper

import "math"

// DefaultFraction tapers 22% of the window, matching the historical
// broadband FK implementations.
const DefaultFraction = 0.22

// Cosine returns an npts-long taper: cosine ramps over fraction/2 of the
// window on each side, flat in between. fraction 0 yields a rectangular
// window, fraction 1 a full cosine bell.
func Cosine(npts int, fraction float64) []float64 {
	w := make([]float64, npts)
	if npts <= 0 {
		return w
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}

	frac := int(float64(npts)*fraction/2 + 0.5)
	if frac > npts/2 {
		frac = npts / 2
	}

	for i := range w {
		w[i] = 1
	}
	if frac < 2 {
		return w
	}

	// Ramp endpoints are included, as in a linspace over [pi, 2pi].
	step := math.Pi / float64(frac-1)
	for i := 0; i < frac; i++ {
		v := 0.5 * (1 + math.Cos(math.Pi+float64(i)*step))
		w[i] = v
		w[npts-1-i] = v
	}
	return w
}

// Apply multiplies samples in place by the taper coefficients.
// Both slices must have the same length.
func Apply(samples, coeffs []float64) {
	for i := range samples {
		samples[i] *= coeffs[i]
	}
}
