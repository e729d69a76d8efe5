package geom

import "errors"

var (
	errNoStations    = errors.New("geom: station collection must not be empty")
	errUnknownSystem = errors.New("geom: coordinate system must be SystemLonLat or SystemXY")
	errPlaneFit      = errors.New("geom: best-fit plane SVD failed to converge")
)

// IsUnknownSystem reports whether err came from an unsupported coordinate
// system tag.
func IsUnknownSystem(err error) bool {
	return errors.Is(err, errUnknownSystem)
}
