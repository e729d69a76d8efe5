// Package steer builds slowness grids and the time-shift (steering) tables
// that map a hypothesized planar wavefront onto per-station delays. Tables
// are computed once per beamforming run and treated as read-only afterwards.
//
// Delays follow the plane-wave relation t = sx*x + sy*y for a station at
// centered position (x, y), optionally extended by a station-elevation term
// z*cos(inc)/v where the incidence angle inc follows from the correction
// velocity and the horizontal slowness.
package steer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-beamform/geom"
)

// Grid is a regular 2D slowness grid in s/km. Point (ix, iy) has slowness
// (MinX + ix*Step, MinY + iy*Step).
type Grid struct {
	MinX, MinY float64
	Step       float64
	NX, NY     int
}

// NewGrid builds the grid covering [minX, maxX] x [minY, maxY] with the
// given step. The point count per axis rounds (max-min)/step to the nearest
// integer and adds one, so both endpoints are represented when the range is
// an integer multiple of the step.
func NewGrid(minX, maxX, minY, maxY, step float64) (Grid, error) {
	if step <= 0 {
		return Grid{}, fmt.Errorf("steer: slowness step must be > 0: %g", step)
	}
	if maxX < minX || maxY < minY {
		return Grid{}, fmt.Errorf("steer: slowness range is empty: x [%g, %g], y [%g, %g]",
			minX, maxX, minY, maxY)
	}
	return Grid{
		MinX: minX,
		MinY: minY,
		Step: step,
		NX:   int((maxX-minX)/step+0.5) + 1,
		NY:   int((maxY-minY)/step+0.5) + 1,
	}, nil
}

// At returns the slowness vector of grid point (ix, iy).
func (g Grid) At(ix, iy int) (sx, sy float64) {
	return g.MinX + float64(ix)*g.Step, g.MinY + float64(iy)*g.Step
}

// Points returns the total number of grid points.
func (g Grid) Points() int {
	return g.NX * g.NY
}

// TableOption configures time-shift table construction.
type TableOption func(*tableConfig)

type tableConfig struct {
	static3D    bool
	velCor      float64
	stationVels []float64
}

// WithStatic3D enables the station-elevation correction with the given
// correction velocity in km/s (the assumed velocity of the uppermost
// layer). Each delay gains z*cos(inc)/vel where inc = asin(vel*slow) for
// vel*slow <= 1 and pi/2 otherwise (evanescent fallback, reported as a
// warning on the table).
func WithStatic3D(velKmPerSec float64) TableOption {
	return func(c *tableConfig) {
		c.static3D = true
		c.velCor = velKmPerSec
	}
}

// WithStationVelocities replaces the scalar correction velocity by a
// per-station velocity for the elevation term. The incidence angle is still
// derived from the velocity passed to WithStatic3D.
func WithStationVelocities(velKmPerSec []float64) TableOption {
	return func(c *tableConfig) {
		c.stationVels = velKmPerSec
	}
}

// Table holds plane-wave delays in seconds for every (station, grid point)
// pair. Values are laid out station-major with the y index fastest.
type Table struct {
	Grid   Grid
	delays [][]float64 // [station][ix*NY+iy]
	// Warnings lists grid points where the elevation correction was
	// dropped because the correction velocity exceeds the apparent
	// velocity, pinning the incidence angle to horizontal.
	Warnings []string
}

// NewTable computes the time-shift table for centered station positions on
// the given slowness grid.
func NewTable(pos []geom.Position, grid Grid, opts ...TableOption) (*Table, error) {
	if len(pos) == 0 {
		return nil, fmt.Errorf("steer: no station positions")
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

	t := &Table{
		Grid:   grid,
		delays: make([][]float64, len(pos)),
	}
	for i := range t.delays {
		t.delays[i] = make([]float64, grid.NX*grid.NY)
	}

	for ix := 0; ix < grid.NX; ix++ {
		for iy := 0; iy < grid.NY; iy++ {
			sx, sy := grid.At(ix, iy)
			idx := ix*grid.NY + iy

			cosInc := 0.0
			if cfg.static3D {
				slow := math.Hypot(sx, sy)
				if cfg.velCor*slow <= 1 {
					cosInc = math.Cos(math.Asin(cfg.velCor * slow))
				} else {
					t.Warnings = append(t.Warnings, fmt.Sprintf(
						"apparent velocity at slowness (%g, %g) below correction velocity %g km/s; elevation term dropped (horizontal incidence)",
						sx, sy, cfg.velCor))
				}
			}

			for st, p := range pos {
				d := sx*p.X + sy*p.Y
				if cfg.static3D {
					v := cfg.velCor
					if cfg.stationVels != nil {
						v = cfg.stationVels[st]
					}
					d += p.Z * cosInc / v
				}
				t.delays[st][idx] = d
			}
		}
	}
	return t, nil
}

// Stations returns the number of stations the table covers.
func (t *Table) Stations() int {
	return len(t.delays)
}

// Delay returns the plane-wave delay in seconds for the station at grid
// point (ix, iy).
func (t *Table) Delay(station, ix, iy int) float64 {
	return t.delays[station][ix*t.Grid.NY+iy]
}

// Bounds returns the smallest and largest delay in the table.
func (t *Table) Bounds() (min, max float64) {
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

// Negated returns a copy of the table with every delay sign-flipped. The
// slowness-whitened-power beamformer steers with advanced rather than
// delayed phases.
func (t *Table) Negated() *Table {
	n := &Table{
		Grid:     t.Grid,
		delays:   make([][]float64, len(t.delays)),
		Warnings: t.Warnings,
	}
	for i, row := range t.delays {
		n.delays[i] = make([]float64, len(row))
		for j, d := range row {
			n.delays[i][j] = -d
		}
	}
	return n
}
