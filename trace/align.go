package trace

import (
	"fmt"
	"math"
	"time"
)

// Alignment maps a common [start, end) analysis window onto each trace of a
// stream. Start[i] is the sample index inside trace i where the window
// begins; using these offsets, the same slice position refers to the same
// absolute instant on every trace. End[i] counts the samples by which trace
// i extends beyond the window end.
type Alignment struct {
	Start []int
	End   []int
	// Warnings lists non-fatal sub-sample timing drifts found while
	// aligning. They do not invalidate the offsets.
	Warnings []string
}

// driftFraction is the tolerated sub-sample start-time drift, as a fraction
// of one sample period. Larger drift is reported as a warning because it
// risks systematic misalignment of the stack.
const driftFraction = 0.25

// Align computes per-trace sample offsets for the window [start, end).
// It fails with [ErrCoverage] if any trace starts more than half a sample
// after the requested start, or ends more than half a sample before the
// requested end.
func Align(s Stream, start, end time.Time) (Alignment, error) {
	fs, err := s.SampleRate()
	if err != nil {
		return Alignment{}, err
	}
	delta := 1 / fs

	latest := s[0].Start
	earliest := s[0].End()
	for _, tr := range s[1:] {
		if tr.Start.After(latest) {
			latest = tr.Start
		}
		if tr.End().Before(earliest) {
			earliest = tr.End()
		}
	}

	if latest.Sub(start).Seconds() > delta/2 {
		return Alignment{}, fmt.Errorf("%w: start %s precedes common data start %s",
			ErrCoverage, start.UTC().Format(time.RFC3339Nano), latest.UTC().Format(time.RFC3339Nano))
	}
	if earliest.Sub(end).Seconds() < -delta/2 {
		return Alignment{}, fmt.Errorf("%w: end %s follows common data end %s",
			ErrCoverage, end.UTC().Format(time.RFC3339Nano), earliest.UTC().Format(time.RFC3339Nano))
	}

	// Whole samples between the common start and the requested start.
	offset := int(math.Floor(start.Sub(latest).Seconds()*fs + 0.5))
	negOffset := int(math.Floor(earliest.Sub(end).Seconds()*fs + 0.5))

	al := Alignment{
		Start: make([]int, len(s)),
		End:   make([]int, len(s)),
	}
	for i, tr := range s {
		// Base offsets round to the nearest sample, so the residual drift
		// is at most half a sample and the warning threshold is symmetric.
		dStart := latest.Sub(tr.Start).Seconds() * fs
		base := math.Floor(dStart + 0.5)
		if drift := math.Abs(dStart - base); drift > driftFraction {
			al.Warnings = append(al.Warnings, fmt.Sprintf(
				"trace %d start drifts %.1f%% of a sample from the common grid", i, drift*100))
		}
		al.Start[i] = int(base) + offset

		dEnd := tr.End().Sub(earliest).Seconds() * fs
		al.End[i] = int(math.Floor(dEnd+0.5)) + negOffset
	}
	return al, nil
}
