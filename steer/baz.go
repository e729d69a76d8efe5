package steer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-beamform/geom"
)

// BazTable holds per-station delays along a single-axis slowness fan at a
// fixed backazimuth, one row per slowness value. It drives vespagram-style
// stacking where only the radial slowness varies.
type BazTable struct {
	// Slowness lists the scanned slowness values in s/km.
	Slowness []float64
	delays   [][]float64 // [slowness][station]
	Warnings []string
}

// NewBazTable builds the fixed-backazimuth time-shift table for slownesses
// from min (inclusive) towards max (exclusive) in the given step. The
// backazimuth is in degrees clockwise from north. Options are shared with
// NewTable.
func NewBazTable(pos []geom.Position, bazDeg, min, max, step float64, opts ...TableOption) (*BazTable, error) {
	if len(pos) == 0 {
		return nil, fmt.Errorf("steer: no station positions")
	}
	if step <= 0 {
		return nil, fmt.Errorf("steer: slowness step must be > 0: %g", step)
	}
	if max < min {
		return nil, fmt.Errorf("steer: slowness range is empty: [%g, %g]", min, max)
	}
	var cfg tableConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.static3D && cfg.velCor <= 0 {
		return nil, fmt.Errorf("steer: correction velocity must be > 0: %g", cfg.velCor)
	}
	if cfg.stationVels != nil && len(cfg.stationVels) != len(pos) {
		return nil, fmt.Errorf("steer: %d station velocities for %d stations",
			len(cfg.stationVels), len(pos))
	}

	baz := bazDeg * math.Pi / 180
	sinBaz, cosBaz := math.Sin(baz), math.Cos(baz)

	t := &BazTable{}
	for slow := min; slow < max; slow += step {
		cosInc := 0.0
		if cfg.static3D {
			if v := cfg.velCor * slow; -1 <= v && v <= 1 {
				cosInc = math.Cos(math.Asin(v))
			} else {
				t.Warnings = append(t.Warnings, fmt.Sprintf(
					"apparent velocity at slowness %g below correction velocity %g km/s; elevation term dropped (horizontal incidence)",
					slow, cfg.velCor))
			}
		}

		row := make([]float64, len(pos))
		for st, p := range pos {
			row[st] = slow * (p.X*sinBaz + p.Y*cosBaz)
			if cfg.static3D {
				v := cfg.velCor
				if cfg.stationVels != nil {
					v = cfg.stationVels[st]
				}
				row[st] += p.Z * cosInc / v
			}
		}
		t.Slowness = append(t.Slowness, slow)
		t.delays = append(t.delays, row)
	}
	if len(t.Slowness) == 0 {
		return nil, fmt.Errorf("steer: slowness range [%g, %g) holds no scan points", min, max)
	}
	return t, nil
}

// Rows returns the number of scanned slowness values.
func (t *BazTable) Rows() int {
	return len(t.Slowness)
}

// Delay returns the delay in seconds for the station at slowness row k.
func (t *BazTable) Delay(k, station int) float64 {
	return t.delays[k][station]
}

// Bounds returns the smallest and largest delay in the table.
func (t *BazTable) Bounds() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, row := range t.delays {
		for _, d := range row {
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
	}
	return min, max
}
