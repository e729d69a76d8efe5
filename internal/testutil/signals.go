package testutil

import (
	"math"
	"math/rand"
)

// DelayedSine generates sin(2*pi*f*(t-delay)) scaled by amplitude. The delay
// may be any fraction of a sample period.
func DelayedSine(freqHz, sampleRate, amplitude, delaySec float64, length int) []float64 {
	out := make([]float64, length)
	w := 2 * math.Pi * freqHz
	for i := range out {
		t := float64(i)/sampleRate - delaySec
		out[i] = amplitude * math.Sin(w*t)
	}
	return out
}

// PlaneWave synthesizes one trace per station delay: a wavefront whose
// arrival at station s lags the reference by delays[s] seconds. The carrier
// is a sine at freqHz, which is what a narrowband beamforming test needs.
func PlaneWave(delays []float64, freqHz, sampleRate, amplitude float64, length int) [][]float64 {
	out := make([][]float64, len(delays))
	for s, d := range delays {
		out[s] = DelayedSine(freqHz, sampleRate, amplitude, d, length)
	}
	return out
}

// Ricker generates a Ricker wavelet with peak frequency freqHz centered at
// sample center. Useful for time-domain stacking tests where the arrival
// must be localized.
func Ricker(freqHz, sampleRate float64, length, center int) []float64 {
	out := make([]float64, length)
	for i := range out {
		t := float64(i-center) / sampleRate
		a := math.Pi * freqHz * t
		a *= a
		out[i] = (1 - 2*a) * math.Exp(-a)
	}
	return out
}

// ShiftedCopies returns one copy of base per entry in shifts, each delayed
// by the given whole number of samples and zero-padded at the edges.
func ShiftedCopies(base []float64, shifts []int) [][]float64 {
	out := make([][]float64, len(shifts))
	for s, shift := range shifts {
		tr := make([]float64, len(base))
		for i := range tr {
			j := i - shift
			if j >= 0 && j < len(base) {
				tr[i] = base[j]
			}
		}
		out[s] = tr
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for
// reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// AddInPlace adds src into dst element-wise.
func AddInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}
