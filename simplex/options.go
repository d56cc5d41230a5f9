package simplex

import "github.com/go-logr/logr"

const (
	// DefaultTolerance is the relative optimality and feasibility tolerance.
	DefaultTolerance = 1e-9
	// DefaultIterationFactor bounds pivots to factor × (columns + rows).
	DefaultIterationFactor = 20

	pivotTolerance = 1e-9
)

// Options configures a solve.
type Options struct {
	Tolerance       float64
	IterationFactor int
	// IterationLimit overrides the limit derived from IterationFactor when positive.
	IterationLimit int
	Logger         logr.Logger
}

// Option mutates Options.
type Option func(*Options)

func WithTolerance(tol float64) Option {
	return func(o *Options) {
		if tol > 0 {
			o.Tolerance = tol
		}
	}
}

func WithIterationFactor(factor int) Option {
	return func(o *Options) {
		if factor > 0 {
			o.IterationFactor = factor
		}
	}
}

func WithIterationLimit(limit int) Option {
	return func(o *Options) {
		o.IterationLimit = limit
	}
}

// WithLogger sets the logger used for phase and pivot tracing. Pivots are
// logged at V(2), phase transitions at V(1).
func WithLogger(log logr.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		Tolerance:       DefaultTolerance,
		IterationFactor: DefaultIterationFactor,
		Logger:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
