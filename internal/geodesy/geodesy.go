// Package geodesy holds the small amount of spherical-earth math needed to
// place array stations in a local kilometer frame.
package geodesy

import "math"

// KMPerDeg is the surface distance of one degree of latitude in kilometers.
const KMPerDeg = 111.1949266

// EarthRadiusKm is the mean earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// WrapLonDeg folds a longitude difference into (-180, 180], so station pairs
// straddling the antimeridian measure short, not around the globe.
func WrapLonDeg(dlon float64) float64 {
	d := math.Mod(dlon, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// LocalKm converts a geographic position to east/north kilometer offsets
// relative to an origin, using an equirectangular approximation at the
// origin latitude. Valid for array-scale apertures.
func LocalKm(originLon, originLat, lon, lat float64) (x, y float64) {
	dlon := WrapLonDeg(lon - originLon)
	x = dlon * KMPerDeg * math.Cos(originLat*math.Pi/180)
	y = (lat - originLat) * KMPerDeg
	return x, y
}

// GreatCircleKm returns the haversine great-circle distance in kilometers
// between two geographic points.
func GreatCircleKm(lon1, lat1, lon2, lat2 float64) float64 {
	const degToRad = math.Pi / 180
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dphi := (lat2 - lat1) * degToRad
	dlam := WrapLonDeg(lon2-lon1) * degToRad

	s1 := math.Sin(dphi / 2)
	s2 := math.Sin(dlam / 2)
	a := s1*s1 + math.Cos(phi1)*math.Cos(phi2)*s2*s2
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
