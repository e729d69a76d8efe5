package steer

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/internal/testutil"
)

func crossArray() []geom.Position {
	return []geom.Position{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: -1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: -1, Z: 0},
	}
}

func TestNewGridCardinality(t *testing.T) {
	cases := []struct {
		name                   string
		minX, maxX, minY, maxY float64
		step                   float64
		nx, ny                 int
	}{
		{"symmetric", -0.3, 0.3, -0.3, 0.3, 0.03, 21, 21},
		{"single point", 0.1, 0.1, 0.2, 0.2, 0.05, 1, 1},
		{"asymmetric", 0, 0.2, -0.1, 0.3, 0.1, 3, 5},
		{"inexact multiple", -0.2, 0.2, -0.2, 0.2, 0.03, 14, 14},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, err := NewGrid(c.minX, c.maxX, c.minY, c.maxY, c.step)
			if err != nil {
				t.Fatal(err)
			}
			if g.NX != c.nx || g.NY != c.ny {
				t.Fatalf("grid %dx%d, want %dx%d", g.NX, g.NY, c.nx, c.ny)
			}
		})
	}
}

func TestNewGridValidation(t *testing.T) {
	if _, err := NewGrid(-0.1, 0.1, -0.1, 0.1, 0); err == nil {
		t.Fatal("zero step accepted")
	}
	if _, err := NewGrid(0.1, -0.1, -0.1, 0.1, 0.01); err == nil {
		t.Fatal("empty range accepted")
	}
}

func TestGridAt(t *testing.T) {
	g, err := NewGrid(-0.2, 0.2, -0.2, 0.2, 0.02)
	if err != nil {
		t.Fatal(err)
	}
	sx, sy := g.At(0, 0)
	testutil.RequireNear(t, sx, -0.2, 1e-12)
	testutil.RequireNear(t, sy, -0.2, 1e-12)
	sx, sy = g.At(g.NX-1, g.NY-1)
	testutil.RequireNear(t, sx, 0.2, 1e-12)
	testutil.RequireNear(t, sy, 0.2, 1e-12)
}

func TestTablePlanarDelays(t *testing.T) {
	pos := crossArray()
	g, err := NewGrid(-0.2, 0.2, -0.2, 0.2, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(pos, g)
	if err != nil {
		t.Fatal(err)
	}
	for ix := 0; ix < g.NX; ix++ {
		for iy := 0; iy < g.NY; iy++ {
			sx, sy := g.At(ix, iy)
			for st, p := range pos {
				want := sx*p.X + sy*p.Y
				testutil.RequireNear(t, tbl.Delay(st, ix, iy), want, 1e-12)
			}
		}
	}
	if len(tbl.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", tbl.Warnings)
	}
}

func TestTableStatic3D(t *testing.T) {
	pos := []geom.Position{{X: 1, Y: 0, Z: 0.5}, {X: -1, Y: 0, Z: -0.5}}
	g, err := NewGrid(0.1, 0.1, 0, 0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	vel := 4.0
	tbl, err := NewTable(pos, g, WithStatic3D(vel))
	if err != nil {
		t.Fatal(err)
	}
	inc := math.Asin(vel * 0.1)
	want0 := 0.1*1 + 0.5*math.Cos(inc)/vel
	want1 := 0.1*-1 - 0.5*math.Cos(inc)/vel
	testutil.RequireNear(t, tbl.Delay(0, 0, 0), want0, 1e-12)
	testutil.RequireNear(t, tbl.Delay(1, 0, 0), want1, 1e-12)
}

func TestTableEvanescentFallback(t *testing.T) {
	pos := []geom.Position{{X: 0, Y: 0, Z: 1}}
	g, err := NewGrid(0.5, 0.5, 0, 0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	// vel*slow = 10*0.5 = 5 > 1: incidence pins to horizontal and the
	// elevation term drops.
	tbl, err := NewTable(pos, g, WithStatic3D(10))
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNear(t, tbl.Delay(0, 0, 0), 0, 1e-12)
	if len(tbl.Warnings) == 0 {
		t.Fatal("want evanescent-wave warning")
	}
}

func TestTablePerStationVelocity(t *testing.T) {
	pos := []geom.Position{{Z: 1}, {Z: 1}}
	g, err := NewGrid(0, 0, 0, 0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(pos, g, WithStatic3D(4), WithStationVelocities([]float64{4, 2}))
	if err != nil {
		t.Fatal(err)
	}
	// Zero slowness: inc = 0, delay = z/v per station.
	testutil.RequireNear(t, tbl.Delay(0, 0, 0), 0.25, 1e-12)
	testutil.RequireNear(t, tbl.Delay(1, 0, 0), 0.5, 1e-12)
}

func TestTableBoundsAndNegated(t *testing.T) {
	pos := crossArray()
	g, err := NewGrid(-0.2, 0.2, -0.2, 0.2, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(pos, g)
	if err != nil {
		t.Fatal(err)
	}
	min, max := tbl.Bounds()
	testutil.RequireNear(t, min, -0.2, 1e-12)
	testutil.RequireNear(t, max, 0.2, 1e-12)

	neg := tbl.Negated()
	for st := 0; st < tbl.Stations(); st++ {
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				testutil.RequireNear(t, neg.Delay(st, ix, iy), -tbl.Delay(st, ix, iy), 0)
			}
		}
	}
}

func TestPhasesMatchDelays(t *testing.T) {
	pos := crossArray()
	g, err := NewGrid(-0.1, 0.1, -0.1, 0.1, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(pos, g)
	if err != nil {
		t.Fatal(err)
	}
	const (
		binLow = 3
		nf     = 4
		deltaF = 0.5
	)
	ph, err := NewPhases(tbl, binLow, nf, deltaF)
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < nf; n++ {
		f := float64(binLow+n) * deltaF
		for ix := 0; ix < g.NX; ix++ {
			for iy := 0; iy < g.NY; iy++ {
				vec := ph.At(n, ix, iy)
				for st := range pos {
					wtau := 2 * math.Pi * f * tbl.Delay(st, ix, iy)
					testutil.RequireNear(t, real(vec[st]), math.Cos(wtau), 1e-12)
					testutil.RequireNear(t, imag(vec[st]), -math.Sin(wtau), 1e-12)
				}
			}
		}
	}
}

func TestPhasesUnitMagnitude(t *testing.T) {
	pos := crossArray()
	g, err := NewGrid(-0.3, 0.3, -0.3, 0.3, 0.15)
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := NewTable(pos, g)
	if err != nil {
		t.Fatal(err)
	}
	ph, err := NewPhases(tbl, 1, 8, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	for n := 0; n < 8; n++ {
		vec := ph.At(n, 2, 2)
		for st := range vec {
			mag := math.Hypot(real(vec[st]), imag(vec[st]))
			testutil.RequireNear(t, mag, 1, 1e-12)
		}
	}
}

func TestBazTableDelays(t *testing.T) {
	pos := crossArray()
	// Backazimuth 90: wave arrives from the east, sin(baz)=1, cos(baz)=0.
	tbl, err := NewBazTable(pos, 90, 0.05, 0.2, 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Rows() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.Rows())
	}
	for k, slow := range tbl.Slowness {
		for st, p := range pos {
			testutil.RequireNear(t, tbl.Delay(k, st), slow*p.X, 1e-12)
		}
	}
}

func TestBazTableEmptyRange(t *testing.T) {
	if _, err := NewBazTable(crossArray(), 0, 0.2, 0.2, 0.05); err == nil {
		t.Fatal("empty scan range accepted")
	}
}
