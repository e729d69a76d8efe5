package strain_test

import (
	"fmt"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/strain"
)

func ExampleEstimate() {
	// A rigid rotation of 2e-6 rad about the vertical axis displaces each
	// station by omega x r; the inversion recovers it as pure torsion.
	pos := []geom.Position{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1},
	}
	const w3 = 2e-6

	nt := 2
	east := make([][]float64, len(pos))
	north := make([][]float64, len(pos))
	up := make([][]float64, len(pos))
	for st, p := range pos {
		east[st] = make([]float64, nt)
		north[st] = make([]float64, nt)
		up[st] = make([]float64, nt)
		for t := 0; t < nt; t++ {
			east[st][t] = -w3 * p.Y
			north[st][t] = w3 * p.X
		}
	}

	res, err := strain.Estimate(pos, east, north, up, 6.0, 3.46, 1e-9)
	if err != nil {
		panic(err)
	}

	fmt.Printf("torsion: %.1e rad\n", res.Torsion[0])
	fmt.Printf("rotation: %.1e rad\n", res.RotationMagnitude[0])
	// Output:
	// torsion: 2.0e-06 rad
	// rotation: 2.0e-06 rad
}
