// Package geom normalizes seismic array station coordinates into a local
// Cartesian frame centered on the array centroid.
//
// Coordinate conventions are right handed: X positive east, Y positive
// north, Z positive up, all in kilometers.
package geom

import (
	"math"

	"github.com/cwbudde/algo-beamform/internal/geodesy"
)

// System identifies the coordinate system of raw station input.
type System int

const (
	// SystemLonLat marks coordinates as longitude/latitude in degrees.
	SystemLonLat System = iota
	// SystemXY marks coordinates as local Cartesian kilometers.
	SystemXY
)

// Coordinate is a raw station location.
type Coordinate struct {
	// X is longitude in degrees for SystemLonLat, east kilometers for SystemXY.
	X float64
	// Y is latitude in degrees for SystemLonLat, north kilometers for SystemXY.
	Y float64
	// Elevation is kilometers above the reference level.
	Elevation float64
}

// Position is a station position relative to the array centroid, in
// kilometers east, north and up.
type Position struct {
	X, Y, Z float64
}

// Center is the array centroid in the raw input frame.
type Center struct {
	X, Y, Elevation float64
}

// Option configures geometry normalization.
type Option func(*config)

type config struct {
	planeFit bool
}

// WithPlaneFit projects the normalized stations onto their best-fitting
// plane. Useful when the array sits on an inclined slope, where raw
// elevations bias the vertical statics.
func WithPlaneFit() Option {
	return func(c *config) {
		c.planeFit = true
	}
}

// Normalize converts raw station coordinates into centroid-relative
// kilometer positions. The output order matches the input order, which in
// turn must match the trace order of any waveform set processed with it.
func Normalize(coords []Coordinate, sys System, opts ...Option) ([]Position, error) {
	pos, _, err := NormalizeWithCenter(coords, sys, opts...)
	return pos, err
}

// NormalizeWithCenter behaves like [Normalize] and additionally reports the
// centroid in the raw input frame.
func NormalizeWithCenter(coords []Coordinate, sys System, opts ...Option) ([]Position, Center, error) {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if len(coords) == 0 {
		return nil, Center{}, errNoStations
	}
	if sys != SystemLonLat && sys != SystemXY {
		return nil, Center{}, errUnknownSystem
	}

	// Longitudes are averaged after unwrapping against the first station,
	// so arrays straddling the antimeridian get a centroid on the seam
	// instead of the far side of the globe.
	refLon := coords[0].X
	var cx, cy, cz float64
	for _, c := range coords {
		if sys == SystemLonLat {
			cx += refLon + geodesy.WrapLonDeg(c.X-refLon)
		} else {
			cx += c.X
		}
		cy += c.Y
		cz += c.Elevation
	}
	n := float64(len(coords))
	center := Center{X: cx / n, Y: cy / n, Elevation: cz / n}
	if sys == SystemLonLat {
		center.X = geodesy.WrapLonDeg(center.X)
	}

	pos := make([]Position, len(coords))
	switch sys {
	case SystemLonLat:
		for i, c := range coords {
			x, y := geodesy.LocalKm(center.X, center.Y, c.X, c.Y)
			pos[i] = Position{X: x, Y: y, Z: c.Elevation - center.Elevation}
		}
	case SystemXY:
		for i, c := range coords {
			pos[i] = Position{
				X: c.X - center.X,
				Y: c.Y - center.Y,
				Z: c.Elevation - center.Elevation,
			}
		}
	}

	if cfg.planeFit {
		if err := fitPlane(pos); err != nil {
			return nil, Center{}, err
		}
	}
	return pos, center, nil
}

// Aperture returns the maximum pairwise station distance in kilometers.
// Geographic input uses great-circle distances, Cartesian input Euclidean.
func Aperture(coords []Coordinate, sys System) (float64, error) {
	if len(coords) < 2 {
		return 0, errNoStations
	}
	if sys != SystemLonLat && sys != SystemXY {
		return 0, errUnknownSystem
	}

	maxDist := 0.0
	for i := range coords {
		for j := i + 1; j < len(coords); j++ {
			var d float64
			if sys == SystemLonLat {
				d = geodesy.GreatCircleKm(coords[i].X, coords[i].Y, coords[j].X, coords[j].Y)
			} else {
				dx := coords[i].X - coords[j].X
				dy := coords[i].Y - coords[j].Y
				d = math.Hypot(dx, dy)
			}
			if d > maxDist {
				maxDist = d
			}
		}
	}
	return maxDist, nil
}

// Closest returns the index of the station nearest to target, including the
// elevation difference in the distance.
func Closest(coords []Coordinate, sys System, target Coordinate) (int, error) {
	if len(coords) == 0 {
		return 0, errNoStations
	}
	if sys != SystemLonLat && sys != SystemXY {
		return 0, errUnknownSystem
	}

	best := 0
	bestDist := math.Inf(1)
	for i, c := range coords {
		var dx, dy float64
		if sys == SystemLonLat {
			dx, dy = geodesy.LocalKm(target.X, target.Y, c.X, c.Y)
		} else {
			dx = c.X - target.X
			dy = c.Y - target.Y
		}
		dz := c.Elevation - target.Elevation
		d := math.Sqrt(dx*dx + dy*dy + dz*dz)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best, nil
}
