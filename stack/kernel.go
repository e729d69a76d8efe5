package stack

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-beamform/internal/taper"
	"github.com/cwbudde/algo-beamform/steer"
	"github.com/cwbudde/algo-beamform/trace"
)

// kernel scores one sliding window over the whole slowness grid. It fills
// absMap and returns the beam of the best grid point, or ok=false when the
// window cannot be extracted from the data.
type kernel interface {
	window(s trace.Stream, spoint []int, offset int, absMap [][]float64) (bestBeam []float64, ok bool)
}

func (p *Processor) newKernel(tbl *steer.Table, fs float64, nsamp int) (kernel, error) {
	switch p.cfg.Method {
	case MethodDelaySum:
		return newShiftKernel(tbl, fs, nsamp, p.cfg.NthRoot, false)
	case MethodPhaseWeighted:
		return newShiftKernel(tbl, fs, nsamp, p.cfg.NthRoot, true)
	case MethodWhitened:
		return newWhitenedKernel(tbl, fs, nsamp, p.cfg.FreqLow, p.cfg.FreqHigh)
	default:
		return nil, fmt.Errorf("stack: unknown method %d", p.cfg.Method)
	}
}

// shiftKernel implements delay-and-sum and phase-weighted stacking: both
// shift raw samples by whole-sample table delays and differ only in how
// the shifted traces are combined.
type shiftKernel struct {
	grid    steer.Grid
	shifts  [][]int // [station][ix*NY+iy], in samples
	nsamp   int
	nthroot int

	phaseWeighted bool
	hilbert       *analyticSignal

	shifted []float64
	beamBuf []float64
	bestBuf []float64
	cohBuf  []float64
	stackRe []float64
	stackIm []float64
}

func newShiftKernel(tbl *steer.Table, fs float64, nsamp, nthroot int, phaseWeighted bool) (*shiftKernel, error) {
	g := tbl.Grid
	k := &shiftKernel{
		grid:          g,
		shifts:        make([][]int, tbl.Stations()),
		nsamp:         nsamp,
		nthroot:       nthroot,
		phaseWeighted: phaseWeighted,
		shifted:       make([]float64, nsamp),
		beamBuf:       make([]float64, nsamp),
		bestBuf:       make([]float64, nsamp),
	}
	for st := range k.shifts {
		k.shifts[st] = make([]int, g.NX*g.NY)
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				k.shifts[st][ix*g.NY+iy] = shiftSamples(tbl.Delay(st, ix, iy), fs)
			}
		}
	}
	if phaseWeighted {
		h, err := newAnalyticSignal(nsamp)
		if err != nil {
			return nil, err
		}
		k.hilbert = h
		k.cohBuf = make([]float64, nsamp)
		k.stackRe = make([]float64, nsamp)
		k.stackIm = make([]float64, nsamp)
	}
	return k, nil
}

func (k *shiftKernel) window(s trace.Stream, spoint []int, offset int, absMap [][]float64) ([]float64, bool) {
	nstat := len(s)
	inv := 1 / float64(nstat)
	maxPow := math.Inf(-1)
	found := false

	for ix := 0; ix < k.grid.NX; ix++ {
		for iy := 0; iy < k.grid.NY; iy++ {
			idx := ix*k.grid.NY + iy
			absMap[ix][iy] = 0

			if k.phaseWeighted && !k.coherence(s, spoint, offset, idx) {
				return nil, false
			}

			singlet := 0.0
			for i := range k.beamBuf {
				k.beamBuf[i] = 0
			}
			for st := 0; st < nstat; st++ {
				base := spoint[st] + offset + k.shifts[st][idx]
				if !extractShifted(s[st], base, k.nsamp, k.shifted) {
					return nil, false
				}
				for i, v := range k.shifted {
					singlet += inv * v * v
					if k.phaseWeighted {
						k.beamBuf[i] += inv * v
					} else {
						k.beamBuf[i] += inv * signedRoot(v, k.nthroot)
					}
				}
			}
			if k.phaseWeighted {
				vecmath.MulBlockInPlace(k.beamBuf, k.cohBuf)
			} else if k.nthroot != 1 {
				for i, v := range k.beamBuf {
					k.beamBuf[i] = signedPow(v, k.nthroot)
				}
			}

			if singlet == 0 {
				continue
			}
			bs := 0.0
			for _, v := range k.beamBuf {
				bs += v * v
			}
			pow := bs / singlet
			absMap[ix][iy] = pow
			if pow > maxPow {
				maxPow = pow
				found = true
				copy(k.bestBuf, k.beamBuf)
			}
		}
	}
	if !found {
		return nil, false
	}
	return k.bestBuf, true
}

// coherence fills cohBuf with the phase-coherence weight |mean of unit
// phasors|^nthroot across stations for grid point idx.
func (k *shiftKernel) coherence(s trace.Stream, spoint []int, offset, idx int) bool {
	nstat := len(s)
	for i := range k.stackRe {
		k.stackRe[i] = 0
		k.stackIm[i] = 0
	}
	for st := 0; st < nstat; st++ {
		base := spoint[st] + offset + k.shifts[st][idx]
		if !extractShifted(s[st], base, k.nsamp, k.shifted) {
			return false
		}
		env, ok := k.hilbert.transform(k.shifted)
		if !ok {
			return false
		}
		for i := 0; i < k.nsamp; i++ {
			phase := cmplx.Phase(env[i])
			k.stackRe[i] += math.Cos(phase)
			k.stackIm[i] += math.Sin(phase)
		}
	}
	inv := 1 / float64(nstat)
	for i := 0; i < k.nsamp; i++ {
		coh := inv * math.Hypot(k.stackRe[i], k.stackIm[i])
		k.cohBuf[i] = math.Pow(coh, float64(k.nthroot))
	}
	return true
}

// analyticSignal computes FFT-based analytic signals: the negative
// frequencies of the transform are zeroed and the positive ones doubled,
// so the imaginary part carries the Hilbert transform.
type analyticSignal struct {
	plan     *algofft.Plan[complex128]
	buf, out []complex128
}

func newAnalyticSignal(nsamp int) (*analyticSignal, error) {
	nfft := trace.NextPow2(nsamp)
	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return nil, fmt.Errorf("stack: FFT plan: %w", err)
	}
	return &analyticSignal{
		plan: plan,
		buf:  make([]complex128, nfft),
		out:  make([]complex128, nfft),
	}, nil
}

// transform returns the analytic signal of x. The result aliases internal
// storage and is valid until the next call.
func (h *analyticSignal) transform(x []float64) ([]complex128, bool) {
	nfft := len(h.buf)
	for i, v := range x {
		h.buf[i] = complex(v, 0)
	}
	for i := len(x); i < nfft; i++ {
		h.buf[i] = 0
	}
	if err := h.plan.Forward(h.out, h.buf); err != nil {
		return nil, false
	}
	for i := 1; i < nfft/2; i++ {
		h.out[i] *= 2
	}
	for i := nfft/2 + 1; i < nfft; i++ {
		h.out[i] = 0
	}
	copy(h.buf, h.out)
	if err := h.plan.Inverse(h.out, h.buf); err != nil {
		return nil, false
	}
	return h.out[:len(x)], true
}

// whitenedKernel implements slowness-whitened power: steering phases are
// applied to per-station window spectra and the beam magnitude is summed
// over the band after normalizing each frequency by its grid-wide maximum.
type whitenedKernel struct {
	grid   steer.Grid
	phases *steer.Phases
	nf     int
	nlow   int
	nsamp  int

	plan          *algofft.Plan[complex128]
	tap           []float64
	win           []float64
	fftIn, fftOut []complex128
	spec          [][]complex128 // [station][freq]
	mag           []float64      // [freq*NX*NY]
	maxPerF       []float64
	bestBuf       []float64
}

func newWhitenedKernel(tbl *steer.Table, fs float64, nsamp int, freqLow, freqHigh float64) (*whitenedKernel, error) {
	g := tbl.Grid
	nfft := trace.NextPow2(nsamp)
	deltaf := fs / float64(nfft)
	nlow := int(freqLow/deltaf + 0.5)
	nhigh := int(freqHigh/deltaf + 0.5)
	if nlow < 1 {
		nlow = 1
	}
	if hi := nfft/2 - 1; nhigh > hi {
		nhigh = hi
	}
	nf := nhigh - nlow + 1
	if nf <= 0 {
		return nil, fmt.Errorf("stack: band [%g, %g] Hz holds no usable bins at %g Hz sampling",
			freqLow, freqHigh, fs)
	}

	// Whitened power steers with advanced phases.
	phases, err := steer.NewPhases(tbl.Negated(), nlow, nf, deltaf)
	if err != nil {
		return nil, err
	}
	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return nil, fmt.Errorf("stack: FFT plan: %w", err)
	}

	k := &whitenedKernel{
		grid:    g,
		phases:  phases,
		nf:      nf,
		nlow:    nlow,
		nsamp:   nsamp,
		plan:    plan,
		tap:     taper.Cosine(nsamp, taper.DefaultFraction),
		win:     make([]float64, nsamp),
		fftIn:   make([]complex128, nfft),
		fftOut:  make([]complex128, nfft),
		spec:    make([][]complex128, tbl.Stations()),
		mag:     make([]float64, nf*g.NX*g.NY),
		maxPerF: make([]float64, nf),
		bestBuf: make([]float64, nsamp),
	}
	for i := range k.spec {
		k.spec[i] = make([]complex128, nf)
	}
	return k, nil
}

func (k *whitenedKernel) window(s trace.Stream, spoint []int, offset int, absMap [][]float64) ([]float64, bool) {
	g := k.grid
	for st, tr := range s {
		lo := spoint[st] + offset
		if lo < 0 || lo+k.nsamp > len(tr.Data) {
			return nil, false
		}
		copy(k.win, tr.Data[lo:lo+k.nsamp])
		trace.Demean(k.win)
		vecmath.MulBlockInPlace(k.win, k.tap)

		for i, v := range k.win {
			k.fftIn[i] = complex(v, 0)
		}
		for i := k.nsamp; i < len(k.fftIn); i++ {
			k.fftIn[i] = 0
		}
		if err := k.plan.Forward(k.fftOut, k.fftIn); err != nil {
			return nil, false
		}
		copy(k.spec[st], k.fftOut[k.nlow:k.nlow+k.nf])
	}

	for n := range k.maxPerF {
		k.maxPerF[n] = 0
	}
	for n := 0; n < k.nf; n++ {
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				e := k.phases.At(n, ix, iy)
				var sum complex128
				for st := range k.spec {
					sum += e[st] * k.spec[st][n]
				}
				m := cmplx.Abs(sum)
				k.mag[(n*g.NX+ix)*g.NY+iy] = m
				if m > k.maxPerF[n] {
					k.maxPerF[n] = m
				}
			}
		}
	}

	for ix := 0; ix < g.NX; ix++ {
		for iy := 0; iy < g.NY; iy++ {
			sum := 0.0
			for n := 0; n < k.nf; n++ {
				if k.maxPerF[n] > 0 {
					sum += k.mag[(n*g.NX+ix)*g.NY+iy] / k.maxPerF[n]
				}
			}
			absMap[ix][iy] = sum / float64(k.nf)
		}
	}

	// The reference beam for whitened power is the unshifted first trace.
	copy(k.bestBuf, s[0].Data[spoint[0]+offset:spoint[0]+offset+k.nsamp])
	return k.bestBuf, true
}
