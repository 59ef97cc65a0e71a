package dieharder

// Config holds the values that the original C++ implementation fixed at
// compile time via template parameters (spec.md's "Template
// parameterization" Design Note): the heap's over-provisioning
// multiplier, its largest size-class boundary, per-size-class capacity,
// and whether the DieFast canary discipline is active. Go has no
// non-type template parameters, so these become ordinary runtime
// configuration, set once at construction and never changed afterward.
type Config struct {
	// Numerator and Denominator together express the maximum fraction
	// of a mini-heap's capacity that may be occupied before randomized
	// placement starts colliding heavily: OccupancyLimit = capacity *
	// Numerator / Denominator.
	Numerator   int
	Denominator int

	// MaxSize is the largest request the segregated dispatcher will
	// serve; anything bigger goes to the large-object path.
	MaxSize int

	// MiniHeapCapacity is N, the fixed object count of every mini-heap
	// (one per size class).
	MiniHeapCapacity int

	// CanaryMode enables the DieFast poisoning discipline.
	CanaryMode bool

	// Diagnostics receives double-free, invalid-free, and overflow
	// reports. Defaults to a StderrHandler.
	Diagnostics DiagnosticHandler
}

// DefaultConfig returns the reference configuration used throughout
// spec.md §8: MaxSize=16384, a mini-heap capacity of 128 objects per size
// class, Numerator=1/Denominator=2 (50% occupancy ceiling), and canaries
// enabled.
func DefaultConfig() Config {
	return Config{
		Numerator:        1,
		Denominator:      2,
		MaxSize:          16384,
		MiniHeapCapacity: 128,
		CanaryMode:       true,
		Diagnostics:      NewStderrHandler(),
	}
}

// Option mutates a Config during New.
type Option func(*Config)

// WithMaxSize sets the largest size the segregated dispatcher will serve.
func WithMaxSize(maxSize int) Option {
	return func(c *Config) { c.MaxSize = maxSize }
}

// WithHeapMultiplier sets the over-provisioning fraction
// numerator/denominator.
func WithHeapMultiplier(numerator, denominator int) Option {
	return func(c *Config) {
		c.Numerator = numerator
		c.Denominator = denominator
	}
}

// WithMiniHeapCapacity sets N, the fixed object count per size class.
func WithMiniHeapCapacity(n int) Option {
	return func(c *Config) { c.MiniHeapCapacity = n }
}

// WithCanaryMode enables or disables the DieFast poisoning discipline.
func WithCanaryMode(enabled bool) Option {
	return func(c *Config) { c.CanaryMode = enabled }
}

// WithDiagnosticHandler overrides the default StderrHandler.
func WithDiagnosticHandler(h DiagnosticHandler) Option {
	return func(c *Config) { c.Diagnostics = h }
}
