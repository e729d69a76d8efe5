package geom

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-beamform/internal/testutil"
)

func squareArray() []Coordinate {
	return []Coordinate{
		{X: 0, Y: 0, Elevation: 0},
		{X: 1, Y: 0, Elevation: 0},
		{X: 0, Y: 1, Elevation: 0},
		{X: 1, Y: 1, Elevation: 0},
	}
}

func TestNormalizeXYCentroid(t *testing.T) {
	pos, center, err := NormalizeWithCenter(squareArray(), SystemXY)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, center.X, 0.5, 1e-12)
	testutil.RequireNear(t, center.Y, 0.5, 1e-12)

	var sx, sy, sz float64
	for _, p := range pos {
		sx += p.X
		sy += p.Y
		sz += p.Z
	}
	testutil.RequireNear(t, sx, 0, 1e-12)
	testutil.RequireNear(t, sy, 0, 1e-12)
	testutil.RequireNear(t, sz, 0, 1e-12)

	testutil.RequireNear(t, pos[0].X, -0.5, 1e-12)
	testutil.RequireNear(t, pos[3].Y, 0.5, 1e-12)
}

func TestNormalizeTranslationInvariant(t *testing.T) {
	base := squareArray()
	shifted := make([]Coordinate, len(base))
	for i, c := range base {
		shifted[i] = Coordinate{X: c.X + 123.4, Y: c.Y - 56.7, Elevation: c.Elevation + 8.9}
	}

	a, err := Normalize(base, SystemXY)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(shifted, SystemXY)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		testutil.RequireNear(t, b[i].X, a[i].X, 1e-9)
		testutil.RequireNear(t, b[i].Y, a[i].Y, 1e-9)
		testutil.RequireNear(t, b[i].Z, a[i].Z, 1e-9)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	coords := []Coordinate{
		{X: 11.58, Y: 48.14, Elevation: 0.52},
		{X: 11.60, Y: 48.15, Elevation: 0.51},
		{X: 11.59, Y: 48.13, Elevation: 0.53},
	}
	a, err := Normalize(coords, SystemLonLat)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(coords, SystemLonLat)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("station %d: %+v != %+v", i, a[i], b[i])
		}
	}
}

func TestNormalizeLonLatWraparound(t *testing.T) {
	coords := []Coordinate{
		{X: 180, Y: 0},
		{X: -179.5, Y: 0},
	}
	pos, err := Normalize(coords, SystemLonLat)
	if err != nil {
		t.Fatal(err)
	}
	sep := math.Hypot(pos[1].X-pos[0].X, pos[1].Y-pos[0].Y)
	if sep < 54 || sep > 57 {
		t.Fatalf("separation across the antimeridian = %v km, want ~55.6", sep)
	}
}

func TestNormalizeWraparoundCenter(t *testing.T) {
	coords := []Coordinate{
		{X: 180, Y: 0},
		{X: -179.5, Y: 0},
	}
	pos, center, err := NormalizeWithCenter(coords, SystemLonLat)
	if err != nil {
		t.Fatal(err)
	}
	// The centroid lies a quarter degree past the seam, not at the naive
	// longitude mean of 0.25.
	if center.X != -179.75 {
		t.Fatalf("center longitude = %v, want -179.75", center.X)
	}
	for i, p := range pos {
		if d := math.Abs(p.X); d < 25 || d > 30 {
			t.Fatalf("station %d: |east offset| = %v km, want ~27.8", i, d)
		}
	}
}

func TestNormalizeErrors(t *testing.T) {
	if _, err := Normalize(nil, SystemXY); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := Normalize(squareArray(), System(42)); err == nil {
		t.Fatal("expected error for unknown system")
	}
	if !IsUnknownSystem(func() error {
		_, err := Normalize(squareArray(), System(42))
		return err
	}()) {
		t.Fatal("unknown system error not classified")
	}
}

func TestPlaneFitFlattensSlope(t *testing.T) {
	// Stations on the plane z = x: the fitted plane must absorb the slope,
	// leaving residuals along its normal at zero.
	coords := []Coordinate{
		{X: 0, Y: 0, Elevation: 0},
		{X: 1, Y: 0, Elevation: 1},
		{X: 0, Y: 1, Elevation: 0},
		{X: 1, Y: 1, Elevation: 1},
	}
	pos, err := Normalize(coords, SystemXY, WithPlaneFit())
	if err != nil {
		t.Fatal(err)
	}
	// Residual from the plane z = x must vanish for every station.
	for i, p := range pos {
		if resid := (p.Z - p.X) / math.Sqrt2; math.Abs(resid) > 1e-9 {
			t.Fatalf("station %d off plane by %v", i, resid)
		}
	}
}

func TestAperture(t *testing.T) {
	ap, err := Aperture(squareArray(), SystemXY)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, ap, math.Sqrt2, 1e-12)

	geo := []Coordinate{{X: 180, Y: 0}, {X: -179.5, Y: 0}}
	ap, err = Aperture(geo, SystemLonLat)
	if err != nil {
		t.Fatal(err)
	}
	if ap < 54 || ap > 57 {
		t.Fatalf("geographic aperture = %v km, want ~55.6", ap)
	}
}

func TestClosest(t *testing.T) {
	idx, err := Closest(squareArray(), SystemXY, Coordinate{X: 0.9, Y: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if idx != 3 {
		t.Fatalf("closest = %d, want 3", idx)
	}
}
