// Package trace holds the waveform data model shared by the beamforming
// packages: per-station sample sequences with start time and sampling rate,
// and the bookkeeping that maps a common analysis window onto each trace.
package trace

import (
	"fmt"
	"time"
)

// Trace is one station's waveform: a contiguous run of samples at a fixed
// sampling rate starting at a known instant.
type Trace struct {
	Data       []float64
	SampleRate float64 // Hz
	Start      time.Time
}

// Delta returns the sample period in seconds.
func (tr Trace) Delta() float64 {
	return 1 / tr.SampleRate
}

// End returns the time of the last sample.
func (tr Trace) End() time.Time {
	if len(tr.Data) == 0 {
		return tr.Start
	}
	return tr.Start.Add(durationSeconds(float64(len(tr.Data)-1) / tr.SampleRate))
}

// Stream is an ordered collection of traces. The order is significant: it
// must match the station order of the geometry used alongside it.
type Stream []Trace

// SampleRate returns the shared sampling rate of the stream. Mismatched
// rates across traces are a configuration error.
func (s Stream) SampleRate() (float64, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("trace: stream is empty")
	}
	fs := s[0].SampleRate
	if fs <= 0 {
		return 0, fmt.Errorf("trace: sampling rate must be > 0: %g", fs)
	}
	for i, tr := range s {
		if tr.SampleRate != fs {
			return 0, fmt.Errorf("%w: trace 0 has %g Hz, trace %d has %g Hz",
				ErrSampleRate, fs, i, tr.SampleRate)
		}
	}
	return fs, nil
}

// Demean subtracts the arithmetic mean from data in place and returns the
// removed mean.
func Demean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))
	for i := range data {
		data[i] -= mean
	}
	return mean
}

// Detrend removes a least-squares straight line from data in place.
func Detrend(data []float64) {
	n := len(data)
	if n < 2 {
		return
	}
	// Closed-form simple linear regression over the sample index.
	var sumY, sumXY float64
	for i, v := range data {
		sumY += v
		sumXY += float64(i) * v
	}
	fn := float64(n)
	sumX := fn * (fn - 1) / 2
	sumXX := fn * (fn - 1) * (2*fn - 1) / 6
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	for i := range data {
		data[i] -= intercept + slope*float64(i)
	}
}

func durationSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
