// Command arrayinfo prints geometry and response diagnostics of a
// seismic array.
//
// Usage:
//
//	arrayinfo [flags] stations.txt
//
// The station file holds one station per line as whitespace-separated
// "longitude latitude elevation" (degrees, degrees, km). Lines starting
// with # are skipped. Use "-" to read from standard input.
//
// Examples:
//
//	arrayinfo stations.txt
//	arrayinfo -xy -plane local_coords.txt
//	arrayinfo -klim 60 -kstep 0.5 stations.txt
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-beamform/geom"
	"github.com/cwbudde/algo-beamform/response"
)

func main() {
	xy := flag.Bool("xy", false, "coordinates are local Cartesian kilometers instead of lon/lat degrees")
	plane := flag.Bool("plane", false, "project stations onto their best-fitting plane")
	klim := flag.Float64("klim", 40, "wavenumber half-range for the response map [1/km]")
	kstep := flag.Float64("kstep", 0.5, "wavenumber step for the response map [1/km]")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: arrayinfo [flags] <station-file|->\n\n")
		fmt.Fprintf(os.Stderr, "Prints normalized array geometry, aperture and a transfer-function summary.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	coords, err := readStations(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sys := geom.SystemLonLat
	if *xy {
		sys = geom.SystemXY
	}
	var opts []geom.Option
	if *plane {
		opts = append(opts, geom.WithPlaneFit())
	}

	pos, center, err := geom.NormalizeWithCenter(coords, sys, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	aperture, err := geom.Aperture(coords, sys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	printGeometry(coords, pos, center, aperture, sys)

	if err := printResponse(pos, *klim, *kstep); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func readStations(name string) ([]geom.Coordinate, error) {
	var r *os.File
	if name == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var coords []geom.Coordinate
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%s:%d: want 2 or 3 columns, got %d", name, line, len(fields))
		}
		var vals [3]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: column %d: %w", name, line, i+1, err)
			}
			vals[i] = v
		}
		coords = append(coords, geom.Coordinate{X: vals[0], Y: vals[1], Elevation: vals[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("%s: no stations", name)
	}
	return coords, nil
}

func printGeometry(coords []geom.Coordinate, pos []geom.Position, center geom.Center, aperture float64, sys geom.System) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Station\tInput X\tInput Y\tElev [km]\tEast [km]\tNorth [km]\tUp [km]\n")
	fmt.Fprintf(tw, "-------\t-------\t-------\t---------\t---------\t----------\t-------\n")
	for i, c := range coords {
		fmt.Fprintf(tw, "%d\t%.5f\t%.5f\t%.4f\t%+.4f\t%+.4f\t%+.4f\n",
			i, c.X, c.Y, c.Elevation, pos[i].X, pos[i].Y, pos[i].Z)
	}
	tw.Flush()

	fmt.Println()
	if sys == geom.SystemLonLat {
		fmt.Printf("Center:    %.5f°E %.5f°N %.4f km\n", center.X, center.Y, center.Elevation)
	} else {
		fmt.Printf("Center:    %.4f km E %.4f km N %.4f km\n", center.X, center.Y, center.Elevation)
	}
	fmt.Printf("Stations:  %d\n", len(coords))
	fmt.Printf("Aperture:  %.4f km\n", aperture)
}

// printResponse renders the wavenumber transfer function and reports the
// mainlobe width and the strongest sidelobe.
func printResponse(pos []geom.Position, klim, kstep float64) error {
	m, err := response.Wavenumber(pos, response.Symmetric(klim), kstep)
	if err != nil {
		return err
	}

	lobe, sidelobe := lobeStats(m.Values)
	// Effective mainlobe radius from its cell count.
	radius := kstep * math.Sqrt(float64(lobe)/math.Pi)

	fmt.Println()
	fmt.Printf("Transfer function (|k| <= %g, step %g [1/km]):\n", klim, kstep)
	fmt.Printf("  Grid:              %d x %d\n", len(m.Values), len(m.Values[0]))
	fmt.Printf("  Mainlobe radius:   %.3f [1/km] (-3 dB)\n", radius)
	if sidelobe > 0 {
		fmt.Printf("  Peak sidelobe:     %.4f (%.1f dB)\n", sidelobe, 10*math.Log10(sidelobe))
	} else {
		fmt.Printf("  Peak sidelobe:     none within range\n")
	}
	return nil
}

// lobeStats flood-fills the -3 dB region around the map peak and returns
// its cell count together with the maximum response outside it.
func lobeStats(values [][]float64) (lobeCells int, sidelobe float64) {
	nx := len(values)
	ny := len(values[0])

	px, py := 0, 0
	peak := values[0][0]
	for ix, col := range values {
		for iy, v := range col {
			if v > peak {
				peak, px, py = v, ix, iy
			}
		}
	}

	const halfPower = 0.5
	inLobe := make([][]bool, nx)
	for i := range inLobe {
		inLobe[i] = make([]bool, ny)
	}
	queue := [][2]int{{px, py}}
	inLobe[px][py] = true
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		lobeCells++
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			ix, iy := c[0]+d[0], c[1]+d[1]
			if ix < 0 || ix >= nx || iy < 0 || iy >= ny || inLobe[ix][iy] {
				continue
			}
			if values[ix][iy] >= halfPower {
				inLobe[ix][iy] = true
				queue = append(queue, [2]int{ix, iy})
			}
		}
	}

	for ix, col := range values {
		for iy, v := range col {
			if !inLobe[ix][iy] && v > sidelobe {
				sidelobe = v
			}
		}
	}
	return lobeCells, sidelobe
}
