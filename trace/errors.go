package trace

import "errors"

var (
	// ErrSampleRate marks mismatched sampling rates within one stream.
	ErrSampleRate = errors.New("trace: sampling rates of traces in stream are not equal")
	// ErrCoverage marks an analysis window not covered by every trace.
	ErrCoverage = errors.New("trace: requested window not covered by all traces")
)
