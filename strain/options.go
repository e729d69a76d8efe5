package strain

// Config holds the inversion settings.
type Config struct {
	// Subarray lists the station indices to invert, with the first entry
	// acting as the reference station the displacement differences are
	// taken against. Empty means all stations in input order.
	Subarray []int
	// StationSigmas gives one noise standard deviation per station (all
	// three components alike). When set it overrides the scalar sigma.
	StationSigmas []float64
	// ComponentSigmas gives a per-station triple of noise standard
	// deviations, one per component (east, north, up). When set it takes
	// precedence over StationSigmas and the scalar sigma.
	ComponentSigmas [][3]float64
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the inversion defaults: all stations, uniform
// noise level.
func DefaultConfig() Config {
	return Config{}
}

// WithSubarray restricts the inversion to the given station indices. The
// first index becomes the reference station.
func WithSubarray(stations ...int) Option {
	return func(c *Config) {
		c.Subarray = stations
	}
}

// WithStationSigmas sets a per-station noise standard deviation, indexed
// like the input coordinates (not the subarray).
func WithStationSigmas(sigmas []float64) Option {
	return func(c *Config) {
		c.StationSigmas = sigmas
	}
}

// WithComponentSigmas sets a per-station, per-component noise standard
// deviation, indexed like the input coordinates.
func WithComponentSigmas(sigmas [][3]float64) Option {
	return func(c *Config) {
		c.ComponentSigmas = sigmas
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
