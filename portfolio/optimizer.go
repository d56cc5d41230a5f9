package portfolio

import (
	"time"

	"github.com/go-logr/logr"

	"q.log/allocator/logging"
	"q.log/allocator/metrics"
	"q.log/allocator/simplex"
)

// Solution is the outcome of one optimization. Weights is aligned with the
// input assets and nil unless Status is Optimal.
type Solution struct {
	Status         simplex.Status `json:"-"`
	Weights        []float64      `json:"weights,omitempty"`
	ExpectedReturn float64        `json:"expected_return"`
	Volatility     float64        `json:"volatility"`
	Iterations     int            `json:"iterations"`
}

// Optimal reports whether the solve produced an accepted allocation.
func (s *Solution) Optimal() bool {
	return s.Status == simplex.Optimal
}

// Optimizer runs Build and simplex.Solve with shared logging and metrics.
// It holds no per-solve state and is safe for concurrent use.
type Optimizer struct {
	log        logr.Logger
	metrics    *metrics.Recorder
	solverOpts []simplex.Option
}

// OptimizerOption configures an Optimizer.
type OptimizerOption func(*Optimizer)

func WithLogger(log logr.Logger) OptimizerOption {
	return func(o *Optimizer) {
		o.log = log
	}
}

func WithMetrics(r *metrics.Recorder) OptimizerOption {
	return func(o *Optimizer) {
		o.metrics = r
	}
}

func WithSolverOptions(opts ...simplex.Option) OptimizerOption {
	return func(o *Optimizer) {
		o.solverOpts = append(o.solverOpts, opts...)
	}
}

func NewOptimizer(opts ...OptimizerOption) *Optimizer {
	o := &Optimizer{log: logr.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize builds and solves the allocation program. Infeasible or otherwise
// non-optimal outcomes are reported through Solution.Status; errors are
// returned only for malformed input.
func (o *Optimizer) Optimize(assets []Asset, c Constraints) (*Solution, error) {
	lp, err := Build(assets, c)
	if err != nil {
		return nil, err
	}

	opts := make([]simplex.Option, 0, len(o.solverOpts)+1)
	opts = append(opts, simplex.WithLogger(o.log.WithName("simplex")))
	opts = append(opts, o.solverOpts...)

	start := time.Now()
	res, err := simplex.Solve(lp, opts...)
	if err != nil {
		return nil, err
	}
	o.metrics.ObserveSolve(res.Status.String(), res.Iterations, time.Since(start))

	sol := &Solution{Status: res.Status, Iterations: res.Iterations}
	if res.Status != simplex.Optimal {
		o.log.V(logging.DEBUG).Info("No optimal solution found", "targetVolatility", c.TargetVolatility, "status", res.Status.String())
		return sol, nil
	}

	sol.Weights = make([]float64, len(assets))
	for i, v := range lp.Variables {
		sol.Weights[i] = res.Values[v.Name]
	}
	sol.ExpectedReturn, sol.Volatility = Stats(assets, sol.Weights)
	o.log.V(logging.DEBUG).Info("Optimal solution found", "targetVolatility", c.TargetVolatility,
		"expectedReturn", sol.ExpectedReturn, "volatility", sol.Volatility, "iterations", res.Iterations)
	return sol, nil
}
