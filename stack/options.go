package stack

// Method selects the time-domain stacking variant.
type Method int

const (
	// MethodDelaySum shifts and sums raw samples with optional signed
	// nth-root compression.
	MethodDelaySum Method = iota
	// MethodPhaseWeighted weights the linear stack by the coherence of
	// the analytic-signal phases across stations.
	MethodPhaseWeighted
	// MethodWhitened scores frequency-normalized beam magnitude summed
	// over the analysis band (slowness-whitened power).
	MethodWhitened
)

// Timestamp selects how window start times are reported in results.
type Timestamp int

const (
	TimestampUnixSeconds Timestamp = iota
	TimestampMatlabDays
)

// Sink receives the power map (indexed [x][y]) and the best beam trace of
// each window. A non-nil error aborts the run. Both slices are reused
// between windows; copy them to retain them.
type Sink func(absPower [][]float64, beam []float64, iteration int) error

// Config holds the time-domain beamformer settings.
type Config struct {
	// WindowLength is the sliding window length in seconds. A negative
	// value processes the whole requested interval as a single window.
	WindowLength   float64
	WindowFraction float64
	Method         Method
	// NthRoot is the root used for nonlinear stack compression. 1 keeps
	// the plain linear stack; larger values sharpen coherent arrivals at
	// the cost of amplitude fidelity.
	NthRoot int
	// FreqLow and FreqHigh bound the analysis band in Hz for the
	// slowness-whitened-power method; the other methods ignore them.
	FreqLow, FreqHigh  float64
	Timestamp          Timestamp
	Static3D           bool
	VelocityCorrection float64
	StationVelocities  []float64
	Sink               Sink
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the processor defaults: whole-interval window,
// linear delay-and-sum, Unix timestamps.
func DefaultConfig() Config {
	return Config{
		WindowLength:       -1,
		WindowFraction:     0.5,
		Method:             MethodDelaySum,
		NthRoot:            1,
		FreqLow:            1,
		FreqHigh:           10,
		Timestamp:          TimestampUnixSeconds,
		VelocityCorrection: 4,
	}
}

// WithWindow sets the sliding window length in seconds and the advance as
// a fraction of it.
func WithWindow(lengthSec, fraction float64) Option {
	return func(cfg *Config) {
		cfg.WindowLength = lengthSec
		if fraction > 0 {
			cfg.WindowFraction = fraction
		}
	}
}

// WithMethod selects the stacking variant.
func WithMethod(m Method) Option {
	return func(cfg *Config) {
		cfg.Method = m
	}
}

// WithNthRoot sets the stack compression root.
func WithNthRoot(n int) Option {
	return func(cfg *Config) {
		if n > 0 {
			cfg.NthRoot = n
		}
	}
}

// WithBand sets the analysis band in Hz for the whitened method.
func WithBand(freqLow, freqHigh float64) Option {
	return func(cfg *Config) {
		cfg.FreqLow, cfg.FreqHigh = freqLow, freqHigh
	}
}

// WithTimestamp selects the result time convention.
func WithTimestamp(ts Timestamp) Option {
	return func(cfg *Config) {
		cfg.Timestamp = ts
	}
}

// WithStatic3D enables the station-elevation delay correction with the
// given correction velocity in km/s.
func WithStatic3D(velKmPerSec float64) Option {
	return func(cfg *Config) {
		cfg.Static3D = true
		cfg.VelocityCorrection = velKmPerSec
	}
}

// WithStationVelocities sets per-station velocities for the elevation term.
func WithStationVelocities(velKmPerSec []float64) Option {
	return func(cfg *Config) {
		cfg.StationVelocities = velKmPerSec
	}
}

// WithSink registers a per-window callback for the power map and best beam.
func WithSink(s Sink) Option {
	return func(cfg *Config) {
		cfg.Sink = s
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}
