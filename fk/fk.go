// Package fk implements sliding-window frequency-domain array beamforming
// (FK analysis). Per window it computes per-station spectra over a
// frequency band, forms the cross-spectral covariance matrix, and scores a
// 2D slowness grid with precomputed steering phases, using either the
// conventional beam power or the Capon adaptive estimator.
package fk

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	algofft "github.com/MeKo-Christian/algo-fft"
	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/internal/beam"
	"github.com/cwbudde/algo-beamform/internal/linalg"
	"github.com/cwbudde/algo-beamform/internal/taper"
	"github.com/cwbudde/algo-beamform/steer"
	"github.com/cwbudde/algo-beamform/trace"
)

// pinvTolerance is the relative singular-value cutoff for the Capon
// covariance pseudo-inverse.
const pinvTolerance = 1e-6

// Result is one accepted sliding-window detection.
type Result struct {
	// Time is the window start in the configured timestamp convention.
	Time float64
	// RelPower is the relative beam power in [0, 1] at the best grid
	// point; AbsPower the corresponding absolute power.
	RelPower float64
	AbsPower float64
	// Backazimuth is in degrees clockwise from north, in [0, 360).
	Backazimuth float64
	// Slowness is the absolute slowness in s/km.
	Slowness float64
}

// Output carries the accepted records of a run plus non-fatal warnings
// gathered while building tables and aligning traces.
type Output struct {
	Results  []Result
	Warnings []string
}

// Processor scores a slowness grid over sliding windows of a stream. It is
// safe to reuse for multiple runs; a single run is single-threaded and
// synchronous.
type Processor struct {
	cfg  Config
	grid steer.Grid
}

// New builds a processor for the given slowness grid and frequency band in
// Hz.
func New(grid steer.Grid, freqLow, freqHigh float64, opts ...Option) (*Processor, error) {
	if freqLow <= 0 || freqHigh <= freqLow {
		return nil, fmt.Errorf("fk: invalid frequency band [%g, %g]", freqLow, freqHigh)
	}
	cfg := ApplyOptions(opts...)
	cfg.FreqLow, cfg.FreqHigh = freqLow, freqHigh
	return &Processor{cfg: cfg, grid: grid}, nil
}

// Run slides windows over [start, end) and scores every one. Stations in
// the stream and positions must be in the same order; positions are the
// centered coordinates from geom.Normalize.
func (p *Processor) Run(s trace.Stream, pos []geom.Position, start, end time.Time) (Output, error) {
	cfg := p.cfg
	var out Output

	if len(s) != len(pos) {
		return out, fmt.Errorf("fk: %d traces for %d station positions", len(s), len(pos))
	}
	nstat := len(s)
	if nstat == 0 {
		return out, fmt.Errorf("fk: empty stream")
	}
	fs, err := s.SampleRate()
	if err != nil {
		return out, err
	}

	var tblOpts []steer.TableOption
	if cfg.Static3D {
		tblOpts = append(tblOpts, steer.WithStatic3D(cfg.VelocityCorrection))
		if cfg.StationVelocities != nil {
			tblOpts = append(tblOpts, steer.WithStationVelocities(cfg.StationVelocities))
		}
	}
	tbl, err := steer.NewTable(pos, p.grid, tblOpts...)
	if err != nil {
		return out, err
	}
	out.Warnings = append(out.Warnings, tbl.Warnings...)

	al, err := trace.Align(s, start, end)
	if err != nil {
		return out, err
	}
	out.Warnings = append(out.Warnings, al.Warnings...)

	var nsamp, nstep int
	if cfg.WindowLength < 0 {
		nsamp = int(end.Sub(start).Seconds() * fs)
		nstep = 1
	} else {
		nsamp = int(cfg.WindowLength * fs)
		nstep = int(float64(nsamp) * cfg.WindowFraction)
	}
	if nsamp <= 0 {
		return out, fmt.Errorf("fk: window of %d samples, need at least 1", nsamp)
	}
	if nstep <= 0 {
		nstep = 1
	}

	nfft := trace.NextPow2(nsamp)
	deltaf := fs / float64(nfft)
	nlow := int(cfg.FreqLow/deltaf + 0.5)
	nhigh := int(cfg.FreqHigh/deltaf + 0.5)
	if nlow < 1 {
		nlow = 1 // skip the DC bin
	}
	if hi := nfft/2 - 1; nhigh > hi {
		nhigh = hi // skip the Nyquist bin
	}
	nf := nhigh - nlow + 1
	if nf <= 0 {
		return out, fmt.Errorf("fk: band [%g, %g] Hz holds no usable bins at %g Hz sampling",
			cfg.FreqLow, cfg.FreqHigh, fs)
	}

	phases, err := steer.NewPhases(tbl, nlow, nf, deltaf)
	if err != nil {
		return out, err
	}

	plan, err := algofft.NewPlan64(nfft)
	if err != nil {
		return out, fmt.Errorf("fk: FFT plan: %w", err)
	}

	tap := taper.Cosine(nsamp, taper.DefaultFraction)
	win := make([]float64, nsamp)
	fftIn := make([]complex128, nfft)
	fftOut := make([]complex128, nfft)

	// Per-run buffers, reused across windows.
	ft := make([][]complex128, nstat) // [station][freq]
	for i := range ft {
		ft[i] = make([]complex128, nf)
	}
	cov := make([][]complex128, nf) // [freq][i*nstat+j]
	inv := make([][]complex128, nf)
	for n := range cov {
		cov[n] = make([]complex128, nstat*nstat)
		inv[n] = make([]complex128, nstat*nstat)
	}
	relMap := newGridMap(p.grid)
	absMap := newGridMap(p.grid)
	binPow := make([]float64, nf*p.grid.NX*p.grid.NY)
	white := make([]float64, nf)

	windows := beam.NewWindows(start, end, fs, nsamp, nstep)
	count := 0
	for {
		offset, tUnix, ok := windows.Next()
		if !ok {
			break
		}

		if !p.extractSpectra(s, al.Start, offset, nsamp, tap, win, fftIn, fftOut, plan, ft, nlow, nf) {
			break // ran out of samples
		}

		dpow := covariance(ft, cov, nstat, cfg.Method)
		r := cov
		if cfg.Method == MethodCapon {
			dpow = 1
			for n := 0; n < nf; n++ {
				if err := linalg.PseudoInverse(inv[n], cov[n], nstat, pinvTolerance); err != nil {
					return out, fmt.Errorf("fk: covariance inversion at bin %d: %w", nlow+n, err)
				}
			}
			r = inv
		}

		p.score(phases, r, nstat, nf, dpow, relMap, absMap, binPow, white)

		if cfg.Sink != nil {
			if err := cfg.Sink(relMap, absMap, count); err != nil {
				return out, fmt.Errorf("fk: sink: %w", err)
			}
		}
		count++

		ix, iy := argmax(relMap)
		sx, sy := p.grid.At(ix, iy)
		baz, slow := beam.Backazimuth(sx, sy)
		relpow, abspow := relMap[ix][iy], absMap[ix][iy]

		if relpow > cfg.SembThreshold && 1/slow > cfg.VelThreshold {
			t := tUnix
			if cfg.Timestamp == TimestampMatlabDays {
				t = beam.MatlabDays(t)
			}
			out.Results = append(out.Results, Result{
				Time:        t,
				RelPower:    relpow,
				AbsPower:    abspow,
				Backazimuth: baz,
				Slowness:    slow,
			})
		}
	}
	return out, nil
}

// extractSpectra fills ft with the band-limited window spectra of every
// station. It reports false when any trace lacks the samples to fill the
// window.
func (p *Processor) extractSpectra(s trace.Stream, spoint []int, offset, nsamp int,
	tap, win []float64, fftIn, fftOut []complex128, plan *algofft.Plan[complex128],
	ft [][]complex128, nlow, nf int) bool {

	for i, tr := range s {
		lo := spoint[i] + offset
		if lo < 0 || lo+nsamp > len(tr.Data) {
			return false
		}
		copy(win, tr.Data[lo:lo+nsamp])
		trace.Demean(win)
		vecmath.MulBlockInPlace(win, tap)

		for j, v := range win {
			fftIn[j] = complex(v, 0)
		}
		for j := nsamp; j < len(fftIn); j++ {
			fftIn[j] = 0
		}
		if err := plan.Forward(fftOut, fftIn); err != nil {
			return false
		}
		copy(ft[i], fftOut[nlow:nlow+nf])
	}
	return true
}

// covariance fills cov with the Hermitian cross-spectral matrices
// R[f][i][j] = ft[i][f] * conj(ft[j][f]) and returns the normalization
// dpow = nstat * sum_i |sum_f R[f][i][i]|. With Capon scoring each
// station-pair entry is first normalized by the magnitude of its own sum
// over the band.
func covariance(ft [][]complex128, cov [][]complex128, nstat int, method Method) float64 {
	nf := len(cov)
	dpow := 0.0
	for i := 0; i < nstat; i++ {
		for j := i; j < nstat; j++ {
			var sum complex128
			for n := 0; n < nf; n++ {
				v := ft[i][n] * cmplx.Conj(ft[j][n])
				cov[n][i*nstat+j] = v
				sum += v
			}
			if method == MethodCapon {
				if mag := cmplx.Abs(sum); mag > 0 {
					for n := 0; n < nf; n++ {
						cov[n][i*nstat+j] /= complex(mag, 0)
					}
				}
			}
			if i != j {
				for n := 0; n < nf; n++ {
					cov[n][j*nstat+i] = cmplx.Conj(cov[n][i*nstat+j])
				}
			} else {
				dpow += cmplx.Abs(sum)
			}
		}
	}
	return dpow * float64(nstat)
}

// score evaluates every grid point against the per-frequency matrices r,
// filling the relative- and absolute-power maps.
func (p *Processor) score(phases *steer.Phases, r [][]complex128, nstat, nf int,
	dpow float64, relMap, absMap [][]float64, binPow, white []float64) {

	g := p.grid
	capon := p.cfg.Method == MethodCapon
	for n := range white {
		white[n] = 0
	}

	for ix := 0; ix < g.NX; ix++ {
		for iy := 0; iy < g.NY; iy++ {
			power := 0.0
			for n := 0; n < nf; n++ {
				e := phases.At(n, ix, iy)
				var eHRe complex128
				for i := 0; i < nstat; i++ {
					var row complex128
					for j := 0; j < nstat; j++ {
						row += r[n][i*nstat+j] * e[j]
					}
					eHRe += cmplx.Conj(e[i]) * row
				}
				pw := cmplx.Abs(eHRe)
				if capon {
					pw = 1 / pw
				}
				power += pw
				if p.cfg.Prewhiten {
					binPow[(n*g.NX+ix)*g.NY+iy] = pw
					if pw > white[n] {
						white[n] = pw
					}
				}
			}
			absMap[ix][iy] = power
			relMap[ix][iy] = power / dpow
		}
	}

	if p.cfg.Prewhiten {
		norm := float64(nf) * float64(nstat)
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				rel := 0.0
				for n := 0; n < nf; n++ {
					if white[n] > 0 {
						rel += binPow[(n*g.NX+ix)*g.NY+iy] / (white[n] * norm)
					}
				}
				relMap[ix][iy] = rel
			}
		}
	}
}

func newGridMap(g steer.Grid) [][]float64 {
	m := make([][]float64, g.NX)
	for i := range m {
		m[i] = make([]float64, g.NY)
	}
	return m
}

func argmax(m [][]float64) (ix, iy int) {
	best := math.Inf(-1)
	for i, row := range m {
		for j, v := range row {
			if v > best {
				best, ix, iy = v, i, j
			}
		}
	}
	return ix, iy
}
