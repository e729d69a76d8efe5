// Package stack implements sliding-window time-domain array beamforming:
// delay-and-sum with signed nth-root compression, phase-weighted stacking
// on the analytic signal, and slowness-whitened power. A fixed-backazimuth
// vespagram over a slowness fan shares the same stacking kernels.
package stack

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/internal/beam"
	"github.com/cwbudde/algo-beamform/steer"
	"github.com/cwbudde/algo-beamform/trace"
)

// Result is one sliding-window beam estimate. Unlike the frequency-domain
// beamformer every window is reported; there is no threshold gate.
type Result struct {
	// Time is the window start in the configured timestamp convention.
	Time float64
	// AbsPower is the beam-to-singlet energy ratio at the best grid point.
	AbsPower float64
	// Backazimuth is in degrees clockwise from north, in [0, 360).
	Backazimuth float64
	// SlownessX and SlownessY are the best grid point; Slowness is their
	// magnitude floored at 1e-8.
	SlownessX, SlownessY float64
	Slowness             float64
}

// Output carries the per-window records of a run plus non-fatal warnings.
type Output struct {
	Results  []Result
	Warnings []string
}

// Processor stacks shifted waveforms over a slowness grid per sliding
// window. Safe to reuse across runs; a single run is single-threaded.
type Processor struct {
	cfg  Config
	grid steer.Grid
}

// New builds a processor for the given slowness grid.
func New(grid steer.Grid, opts ...Option) (*Processor, error) {
	cfg := ApplyOptions(opts...)
	if cfg.Method == MethodWhitened && (cfg.FreqLow <= 0 || cfg.FreqHigh <= cfg.FreqLow) {
		return nil, fmt.Errorf("stack: invalid frequency band [%g, %g]", cfg.FreqLow, cfg.FreqHigh)
	}
	return &Processor{cfg: cfg, grid: grid}, nil
}

// Run slides windows over [start, end) and stacks every one. Stations in
// the stream and positions must be in the same order; positions are the
// centered coordinates from geom.Normalize. The input stream is left
// untouched; stacking operates on detrended copies.
func (p *Processor) Run(s trace.Stream, pos []geom.Position, start, end time.Time) (Output, error) {
	cfg := p.cfg
	var out Output

	if len(s) != len(pos) {
		return out, fmt.Errorf("stack: %d traces for %d station positions", len(s), len(pos))
	}
	nstat := len(s)
	if nstat == 0 {
		return out, fmt.Errorf("stack: empty stream")
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

	// Pull the alignment window in by the extreme table delays so that
	// every shifted window stays inside the recorded data.
	minShift, maxShift := tbl.Bounds()
	al, err := trace.Align(s, addSeconds(start, -minShift), addSeconds(end, -maxShift))
	if err != nil {
		return out, err
	}
	out.Warnings = append(out.Warnings, al.Warnings...)

	var nsamp int
	if cfg.WindowLength < 0 {
		nsamp = int((end.Sub(start).Seconds() - (maxShift - minShift)) * fs)
	} else {
		nsamp = int(cfg.WindowLength * fs)
	}
	if nsamp <= 0 {
		return out, fmt.Errorf("stack: data window too small for the slowness grid (%d samples)", nsamp)
	}
	nstep := int(float64(nsamp) * cfg.WindowFraction)
	if nstep <= 0 {
		nstep = 1
	}

	// Stacking assumes zero-mean, trend-free windows.
	work := make(trace.Stream, nstat)
	for i, tr := range s {
		data := make([]float64, len(tr.Data))
		copy(data, tr.Data)
		trace.Detrend(data)
		work[i] = trace.Trace{Data: data, SampleRate: tr.SampleRate, Start: tr.Start}
	}

	kern, err := p.newKernel(tbl, fs, nsamp)
	if err != nil {
		return out, err
	}

	absMap := newGridMap(p.grid)
	windows := beam.NewWindows(start, end, fs, nsamp, nstep)
	count := 0
	for {
		offset, tUnix, ok := windows.Next()
		if !ok {
			break
		}

		bestBeam, ok := kern.window(work, al.Start, offset, absMap)
		if !ok {
			continue // a shifted window left the recorded data
		}

		if cfg.Sink != nil {
			if err := cfg.Sink(absMap, bestBeam, count); err != nil {
				return out, fmt.Errorf("stack: sink: %w", err)
			}
		}
		count++

		ix, iy := argmax(absMap)
		sx, sy := p.grid.At(ix, iy)
		baz, slow := beam.Backazimuth(sx, sy)
		t := tUnix
		if cfg.Timestamp == TimestampMatlabDays {
			t = beam.MatlabDays(t)
		}
		out.Results = append(out.Results, Result{
			Time:        t,
			AbsPower:    absMap[ix][iy],
			Backazimuth: baz,
			SlownessX:   sx,
			SlownessY:   sy,
			Slowness:    slow,
		})
	}
	return out, nil
}

// shiftSamples converts a table delay to the nearest whole sample count.
func shiftSamples(delay, fs float64) int {
	return int(math.Floor(delay*fs + 0.5))
}

// extractShifted copies the nsamp-long window of tr starting at base into
// dst, zero-padding when the trace ends inside the window. It reports
// false when the window starts outside the recorded data.
func extractShifted(tr trace.Trace, base, nsamp int, dst []float64) bool {
	if base < 0 || base >= len(tr.Data) {
		return false
	}
	n := copy(dst, tr.Data[base:])
	for i := n; i < nsamp; i++ {
		dst[i] = 0
	}
	return true
}

// signedRoot compresses v to sign(v)*|v|^(1/n). Zero stays zero.
func signedRoot(v float64, n int) float64 {
	if v == 0 || n == 1 {
		return v
	}
	r := math.Pow(math.Abs(v), 1/float64(n))
	if v < 0 {
		return -r
	}
	return r
}

// signedPow expands v to sign(v)*|v|^n, undoing signedRoot.
func signedPow(v float64, n int) float64 {
	if v == 0 || n == 1 {
		return v
	}
	r := math.Pow(math.Abs(v), float64(n))
	if v < 0 {
		return -r
	}
	return r
}

func addSeconds(t time.Time, s float64) time.Time {
	return t.Add(time.Duration(s * float64(time.Second)))
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
