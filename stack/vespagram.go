package stack

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/steer"
	"github.com/cwbudde/algo-beamform/trace"
)

// VespagramOutput holds one beam per scanned slowness at a fixed
// backazimuth, over the whole requested interval.
type VespagramOutput struct {
	// Slowness lists the scanned slowness values in s/km, one per beam.
	Slowness []float64
	// Beams holds the stacked waveform per slowness row.
	Beams [][]float64
	// Best is the row index of the highest beam-to-singlet energy ratio;
	// MaxPower the ratio itself.
	Best     int
	MaxPower float64
	Warnings []string
}

// Vespagram stacks the stream along a single-axis slowness fan at a fixed
// backazimuth (degrees clockwise from north), one beam per slowness. Only
// the delay-and-sum and phase-weighted methods apply; the whitened method
// has no time-domain beam to fan out.
func Vespagram(s trace.Stream, pos []geom.Position, bazDeg, slowMin, slowMax, slowStep float64,
	start, end time.Time, opts ...Option) (VespagramOutput, error) {

	cfg := ApplyOptions(opts...)
	var out VespagramOutput

	if cfg.Method == MethodWhitened {
		return out, fmt.Errorf("stack: vespagram supports delay-and-sum and phase-weighted methods only")
	}
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
	tbl, err := steer.NewBazTable(pos, bazDeg, slowMin, slowMax, slowStep, tblOpts...)
	if err != nil {
		return out, err
	}
	out.Warnings = append(out.Warnings, tbl.Warnings...)

	minShift, maxShift := tbl.Bounds()
	al, err := trace.Align(s, addSeconds(start, -minShift), addSeconds(end, -maxShift))
	if err != nil {
		return out, err
	}
	out.Warnings = append(out.Warnings, al.Warnings...)

	ndat := int((end.Sub(start).Seconds() - (maxShift - minShift)) * fs)
	if ndat <= 0 {
		return out, fmt.Errorf("stack: data window too small for the slowness fan (%d samples)", ndat)
	}

	work := make(trace.Stream, nstat)
	for i, tr := range s {
		data := make([]float64, len(tr.Data))
		copy(data, tr.Data)
		trace.Detrend(data)
		work[i] = trace.Trace{Data: data, SampleRate: tr.SampleRate, Start: tr.Start}
	}

	var hilbert *analyticSignal
	if cfg.Method == MethodPhaseWeighted {
		hilbert, err = newAnalyticSignal(ndat)
		if err != nil {
			return out, err
		}
	}

	out.Slowness = append([]float64(nil), tbl.Slowness...)
	out.Beams = make([][]float64, tbl.Rows())
	out.Best = -1
	out.MaxPower = math.Inf(-1)

	shifted := make([]float64, ndat)
	inv := 1 / float64(nstat)
	for row := 0; row < tbl.Rows(); row++ {
		beamRow := make([]float64, ndat)
		out.Beams[row] = beamRow

		var coh []float64
		if cfg.Method == MethodPhaseWeighted {
			coh = make([]float64, ndat)
			stackRe := make([]float64, ndat)
			stackIm := make([]float64, ndat)
			for st := 0; st < nstat; st++ {
				base := al.Start[st] + shiftSamples(tbl.Delay(row, st), fs)
				if !extractShifted(work[st], base, ndat, shifted) {
					return out, fmt.Errorf("stack: slowness %g shifts station %d outside the data",
						tbl.Slowness[row], st)
				}
				env, ok := hilbert.transform(shifted)
				if !ok {
					return out, fmt.Errorf("stack: analytic signal failed at slowness %g", tbl.Slowness[row])
				}
				for i := 0; i < ndat; i++ {
					phase := math.Atan2(imag(env[i]), real(env[i]))
					stackRe[i] += math.Cos(phase)
					stackIm[i] += math.Sin(phase)
				}
			}
			for i := 0; i < ndat; i++ {
				coh[i] = math.Pow(inv*math.Hypot(stackRe[i], stackIm[i]), float64(cfg.NthRoot))
			}
		}

		singlet := 0.0
		for st := 0; st < nstat; st++ {
			base := al.Start[st] + shiftSamples(tbl.Delay(row, st), fs)
			if !extractShifted(work[st], base, ndat, shifted) {
				return out, fmt.Errorf("stack: slowness %g shifts station %d outside the data",
					tbl.Slowness[row], st)
			}
			for i, v := range shifted {
				singlet += inv * v * v
				if cfg.Method == MethodPhaseWeighted {
					beamRow[i] += inv * v
				} else {
					beamRow[i] += inv * signedRoot(v, cfg.NthRoot)
				}
			}
		}
		switch {
		case cfg.Method == MethodPhaseWeighted:
			for i := range beamRow {
				beamRow[i] *= coh[i]
			}
		case cfg.NthRoot != 1:
			for i, v := range beamRow {
				beamRow[i] = signedPow(v, cfg.NthRoot)
			}
		}

		if singlet == 0 {
			continue
		}
		bs := 0.0
		for _, v := range beamRow {
			bs += v * v
		}
		if pow := bs / singlet; pow > out.MaxPower {
			out.MaxPower = pow
			out.Best = row
		}
	}
	if out.Best < 0 {
		return out, fmt.Errorf("stack: no slowness row held any signal energy")
	}
	return out, nil
}
