package trace

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cwbudde/algo-beamform/internal/testutil"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func uniformStream(n, npts int, fs float64) Stream {
	s := make(Stream, n)
	for i := range s {
		s[i] = Trace{Data: make([]float64, npts), SampleRate: fs, Start: t0}
	}
	return s
}

func TestSampleRateMismatch(t *testing.T) {
	s := uniformStream(3, 100, 100)
	s[2].SampleRate = 50
	_, err := s.SampleRate()
	if !errors.Is(err, ErrSampleRate) {
		t.Fatalf("err = %v, want ErrSampleRate", err)
	}
}

func TestTraceEnd(t *testing.T) {
	tr := Trace{Data: make([]float64, 101), SampleRate: 100, Start: t0}
	want := t0.Add(time.Second)
	if !tr.End().Equal(want) {
		t.Fatalf("End = %v, want %v", tr.End(), want)
	}
}

func TestAlignOffsets(t *testing.T) {
	s := uniformStream(3, 1000, 100)
	// Second trace starts 4 samples late: its window offset must be 4
	// smaller so that offset zero is the same instant everywhere.
	s[1].Start = t0.Add(40 * time.Millisecond)

	al, err := Align(s, t0.Add(100*time.Millisecond), t0.Add(900*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if al.Start[0] != 10 || al.Start[2] != 10 {
		t.Fatalf("aligned starts = %v, want 10 for traces 0 and 2", al.Start)
	}
	if al.Start[1] != 6 {
		t.Fatalf("late trace start = %d, want 6", al.Start[1])
	}
	if len(al.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", al.Warnings)
	}
}

func TestAlignCoverageErrors(t *testing.T) {
	s := uniformStream(2, 100, 100)
	s[1].Start = t0.Add(500 * time.Millisecond)

	// Request begins before the late trace has data.
	_, err := Align(s, t0, t0.Add(900*time.Millisecond))
	if !errors.Is(err, ErrCoverage) {
		t.Fatalf("err = %v, want ErrCoverage", err)
	}

	// Request ends after the early trace stops.
	_, err = Align(s, t0.Add(600*time.Millisecond), t0.Add(3*time.Second))
	if !errors.Is(err, ErrCoverage) {
		t.Fatalf("err = %v, want ErrCoverage", err)
	}
}

func TestAlignHalfSampleTolerance(t *testing.T) {
	s := uniformStream(2, 100, 100)
	// 4 ms early at 100 Hz is within the half-sample (5 ms) tolerance.
	_, err := Align(s, t0.Add(-4*time.Millisecond), t0.Add(500*time.Millisecond))
	if err != nil {
		t.Fatalf("within tolerance, got %v", err)
	}
	_, err = Align(s, t0.Add(-6*time.Millisecond), t0.Add(500*time.Millisecond))
	if !errors.Is(err, ErrCoverage) {
		t.Fatalf("err = %v, want ErrCoverage", err)
	}
}

func TestAlignSubSampleDriftWarning(t *testing.T) {
	s := uniformStream(2, 1000, 100)
	// 4 ms is 40% of a 10 ms sample period: over the 25% drift threshold.
	s[1].Start = t0.Add(4 * time.Millisecond)
	al, err := Align(s, t0.Add(100*time.Millisecond), t0.Add(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(al.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one drift warning", al.Warnings)
	}
}

func TestAlignRoundsToNearestSample(t *testing.T) {
	s := uniformStream(2, 1000, 100)
	// A 9 ms late start at 100 Hz is 0.9 of a sample: the early trace's
	// base offset must round up to the next sample, leaving a 10%
	// residual drift rather than a silent 0.9-sample misalignment.
	s[1].Start = t0.Add(9 * time.Millisecond)

	al, err := Align(s, t0.Add(100*time.Millisecond), t0.Add(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if al.Start[0] != al.Start[1]+1 {
		t.Fatalf("aligned starts = %v, want the early trace one sample ahead", al.Start)
	}
	if len(al.Warnings) != 0 {
		t.Fatalf("unexpected warnings for 10%% residual drift: %v", al.Warnings)
	}
}

func TestDemean(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	mean := Demean(data)
	testutil.RequireNear(t, mean, 2.5, 1e-12)
	testutil.RequireSliceNear(t, data, []float64{-1.5, -0.5, 0.5, 1.5}, 1e-12)
}

func TestDetrendRemovesRamp(t *testing.T) {
	data := make([]float64, 64)
	for i := range data {
		data[i] = 3 + 0.25*float64(i)
	}
	Detrend(data)
	testutil.RequireSliceNear(t, data, make([]float64, 64), 1e-9)
}

func TestShiftFrequencyWholeSample(t *testing.T) {
	fs := 100.0
	base := testutil.Ricker(5, fs, 256, 128)
	s := Stream{{Data: base, SampleRate: fs, Start: t0}}

	shifted, err := ShiftFrequency(s, []float64{3 / fs})
	if err != nil {
		t.Fatal(err)
	}
	// A three-sample delay moves the wavelet peak from 128 to 131.
	peak := 0
	for i, v := range shifted[0].Data {
		if v > shifted[0].Data[peak] {
			peak = i
		}
	}
	if peak != 131 {
		t.Fatalf("peak at %d, want 131", peak)
	}
	// Away from the wrap region the shifted trace matches a sample copy.
	for i := 16; i < 240; i++ {
		if math.Abs(shifted[0].Data[i]-base[i-3]) > 1e-9 {
			t.Fatalf("sample %d: %v != %v", i, shifted[0].Data[i], base[i-3])
		}
	}
}

func TestShiftFrequencySubSampleRoundTrip(t *testing.T) {
	fs := 100.0
	base := testutil.Ricker(5, fs, 256, 128)
	s := Stream{{Data: base, SampleRate: fs, Start: t0}}

	fwd, err := ShiftFrequency(s, []float64{0.0037})
	if err != nil {
		t.Fatal(err)
	}
	back, err := ShiftFrequency(fwd, []float64{-0.0037})
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNear(t, back[0].Data, base, 1e-8)
}

func TestNextPow2(t *testing.T) {
	cases := [][2]int{{0, 1}, {1, 1}, {2, 2}, {3, 4}, {511, 512}, {512, 512}, {513, 1024}}
	for _, c := range cases {
		if got := NextPow2(c[0]); got != c[1] {
			t.Errorf("NextPow2(%d) = %d, want %d", c[0], got, c[1])
		}
	}
}
