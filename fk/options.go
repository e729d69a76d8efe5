package fk

// Method selects the grid-scoring estimator.
type Method int

const (
	// MethodBeamforming scores the conventional beam power e^H R e.
	MethodBeamforming Method = iota
	// MethodCapon scores the adaptive (minimum-variance) power
	// 1 / (e^H R^-1 e), which sharpens peaks at the cost of a covariance
	// pseudo-inverse per frequency bin.
	MethodCapon
)

// Timestamp selects how window start times are reported in results.
type Timestamp int

const (
	// TimestampUnixSeconds reports seconds since 1970-01-01T00:00:00 UTC.
	TimestampUnixSeconds Timestamp = iota
	// TimestampMatlabDays reports fractional days since 0001-01-01, the
	// offset convention used by matplotlib date plotting.
	TimestampMatlabDays
)

// Sink receives the relative- and absolute-power grid maps of each window,
// indexed [x][y], before thresholds are applied. A non-nil error aborts the
// run. The maps are reused between windows; copy them to retain them.
type Sink func(relPower, absPower [][]float64, iteration int) error

// Config holds the sliding-window beamformer settings.
type Config struct {
	// WindowLength is the sliding window length in seconds. A negative
	// value processes the whole requested interval as a single window.
	WindowLength float64
	// WindowFraction is the window advance as a fraction of the window
	// length.
	WindowFraction float64
	// FreqLow and FreqHigh bound the analysis band in Hz.
	FreqLow, FreqHigh float64
	// SembThreshold and VelThreshold gate result records: a window is
	// reported only when relative power exceeds SembThreshold and apparent
	// velocity (1/slowness) exceeds VelThreshold.
	SembThreshold, VelThreshold float64
	Method                      Method
	Timestamp                   Timestamp
	// Prewhiten normalizes each frequency bin by its grid-wide maximum
	// power before summing over the band, flattening dominant narrowband
	// contributions.
	Prewhiten bool
	// Static3D enables the station-elevation delay correction with
	// VelocityCorrection (km/s). StationVelocities optionally replaces the
	// scalar velocity in the elevation term.
	Static3D           bool
	VelocityCorrection float64
	StationVelocities  []float64
	Sink               Sink
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the processor defaults: one-second windows
// advancing by half a window, no thresholds, Unix timestamps.
func DefaultConfig() Config {
	return Config{
		WindowLength:       1,
		WindowFraction:     0.5,
		Method:             MethodBeamforming,
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

// WithMethod selects conventional or Capon scoring.
func WithMethod(m Method) Option {
	return func(cfg *Config) {
		cfg.Method = m
	}
}

// WithThresholds sets the semblance and apparent-velocity gates for result
// records.
func WithThresholds(semb, vel float64) Option {
	return func(cfg *Config) {
		cfg.SembThreshold = semb
		cfg.VelThreshold = vel
	}
}

// WithTimestamp selects the result time convention.
func WithTimestamp(ts Timestamp) Option {
	return func(cfg *Config) {
		cfg.Timestamp = ts
	}
}

// WithPrewhitening enables per-frequency whitening of the power maps.
func WithPrewhitening() Option {
	return func(cfg *Config) {
		cfg.Prewhiten = true
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

// WithSink registers a per-window callback for the power maps.
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
