package taper

import (
	"math"
	"testing"
)

func TestCosineShape(t *testing.T) {
	w := Cosine(100, DefaultFraction)
	if len(w) != 100 {
		t.Fatalf("len = %d, want 100", len(w))
	}
	if math.Abs(w[0]) > 1e-12 || math.Abs(w[99]) > 1e-12 {
		t.Fatalf("edges not tapered to zero: %v %v", w[0], w[99])
	}
	if w[50] != 1 {
		t.Fatalf("center = %v, want 1", w[50])
	}
	for i, v := range w {
		if v < 0 || v > 1 {
			t.Fatalf("coefficient[%d] out of range: %v", i, v)
		}
	}
	// Symmetry.
	for i := range w {
		if math.Abs(w[i]-w[len(w)-1-i]) > 1e-12 {
			t.Fatalf("asymmetric at %d: %v vs %v", i, w[i], w[len(w)-1-i])
		}
	}
}

func TestCosineRectangular(t *testing.T) {
	w := Cosine(16, 0)
	for i, v := range w {
		if v != 1 {
			t.Fatalf("coefficient[%d] = %v, want 1", i, v)
		}
	}
}

func TestCosineDegenerateSizes(t *testing.T) {
	if got := Cosine(0, 0.22); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
	w := Cosine(1, 1)
	if len(w) != 1 || w[0] != 1 {
		t.Fatalf("unexpected single-sample taper: %v", w)
	}
}

func TestApply(t *testing.T) {
	s := []float64{2, 2, 2, 2}
	Apply(s, []float64{0, 0.5, 0.5, 0})
	want := []float64{0, 1, 1, 0}
	for i := range s {
		if s[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, s[i], want[i])
		}
	}
}
