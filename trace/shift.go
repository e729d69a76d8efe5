package trace

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// ShiftFrequency delays each trace by its entry in shifts (seconds) with
// sub-sample precision, by rotating phases in the frequency domain. The
// returned stream carries new data slices; the input is left untouched.
// Positive shifts move the waveform later in time; the shift wraps
// circularly over a transform twice the next power of two, so edge
// contamination stays away from the usable samples for array-scale delays.
func ShiftFrequency(s Stream, shifts []float64) (Stream, error) {
	if len(shifts) != len(s) {
		return nil, fmt.Errorf("trace: %d shifts for %d traces", len(shifts), len(s))
	}
	fs, err := s.SampleRate()
	if err != nil {
		return nil, err
	}

	out := make(Stream, len(s))
	for i, tr := range s {
		ndat := len(tr.Data)
		if ndat == 0 {
			out[i] = tr
			continue
		}
		nfft := 2 * NextPow2(ndat)

		plan, err := algofft.NewPlan64(nfft)
		if err != nil {
			return nil, fmt.Errorf("trace: FFT plan: %w", err)
		}

		buf := make([]complex128, nfft)
		for j, v := range tr.Data {
			buf[j] = complex(v, 0)
		}
		spec := make([]complex128, nfft)
		if err := plan.Forward(spec, buf); err != nil {
			return nil, fmt.Errorf("trace: forward FFT: %w", err)
		}

		// Delay by rotating each bin; the negative-frequency half gets the
		// conjugate rotation so the inverse transform stays real.
		shiftSamples := shifts[i] * fs
		for k := 1; k < nfft/2; k++ {
			phi := 2 * math.Pi * shiftSamples * float64(k) / float64(nfft)
			rot := cmplx.Exp(complex(0, -phi))
			spec[k] *= rot
			spec[nfft-k] *= cmplx.Conj(rot)
		}
		if nfft%2 == 0 {
			phi := math.Pi * shiftSamples
			spec[nfft/2] *= complex(math.Cos(phi), 0)
		}

		if err := plan.Inverse(buf, spec); err != nil {
			return nil, fmt.Errorf("trace: inverse FFT: %w", err)
		}

		data := make([]float64, ndat)
		for j := range data {
			data[j] = real(buf[j])
		}
		out[i] = Trace{Data: data, SampleRate: tr.SampleRate, Start: tr.Start}
	}
	return out, nil
}

// NextPow2 returns the smallest power of two >= n (minimum 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
