package steer

import (
	"fmt"
	"math"
)

// Phases holds precomputed steering phase factors exp(-i*2*pi*f*delay) for
// every (frequency bin, grid point, station) triple. Frequency bin n maps
// to f = (binLow+n)*deltaF. Computing them once per run keeps the
// per-window grid scoring free of transcendental calls.
type Phases struct {
	Grid     Grid
	NumFreqs int
	BinLow   int
	DeltaF   float64
	nstat    int
	// station index fastest, then y, x, frequency.
	factors []complex128
}

// NewPhases converts a time-shift table into steering phase factors for
// numFreqs bins starting at binLow*deltaF.
func NewPhases(t *Table, binLow, numFreqs int, deltaF float64) (*Phases, error) {
	if numFreqs <= 0 {
		return nil, fmt.Errorf("steer: number of frequency bins must be > 0: %d", numFreqs)
	}
	if deltaF <= 0 {
		return nil, fmt.Errorf("steer: frequency bin width must be > 0: %g", deltaF)
	}
	g := t.Grid
	nstat := t.Stations()
	p := &Phases{
		Grid:     g,
		NumFreqs: numFreqs,
		BinLow:   binLow,
		DeltaF:   deltaF,
		nstat:    nstat,
		factors:  make([]complex128, numFreqs*g.NX*g.NY*nstat),
	}
	for n := 0; n < numFreqs; n++ {
		omega := 2 * math.Pi * float64(binLow+n) * deltaF
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				base := ((n*g.NX+ix)*g.NY + iy) * nstat
				for st := 0; st < nstat; st++ {
					wtau := omega * t.Delay(st, ix, iy)
					p.factors[base+st] = complex(math.Cos(wtau), -math.Sin(wtau))
				}
			}
		}
	}
	return p, nil
}

// At returns the steering vector (one factor per station) for frequency bin
// n at grid point (ix, iy). The returned slice aliases internal storage and
// must not be modified.
func (p *Phases) At(n, ix, iy int) []complex128 {
	base := ((n*p.Grid.NX+ix)*p.Grid.NY + iy) * p.nstat
	return p.factors[base : base+p.nstat]
}
