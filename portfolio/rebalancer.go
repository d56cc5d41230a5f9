package portfolio

import (
	"sync"

	"q.log/allocator/simplex"
)

// Notices attached to an Update that did not change the weights.
const (
	NoticeInfeasible     = "no feasible allocation at this risk level"
	NoticeUnbounded      = "allocation is unbounded at this risk level"
	NoticeIterationLimit = "optimizer gave up before converging"
)

// Update is the result of re-optimizing for a new target volatility.
type Update struct {
	TargetVolatility float64
	Status           simplex.Status
	// Accepted is false when the solve was not optimal or a newer request
	// already completed; Weights then holds the previously accepted weights.
	Accepted bool
	Weights  []float64
	Notice   string
}

// Rebalancer is the collaborator-side state around the stateless optimizer:
// the asset universe, the current target volatility and the last accepted
// weights, which are kept whenever a solve is not optimal.
//
// Overlapping calls are resolved in favor of the most recently issued one:
// once a call completes, optimal or not, results of calls issued before it
// are discarded.
type Rebalancer struct {
	solve  func([]Asset, Constraints) (*Solution, error)
	assets []Asset

	mu      sync.Mutex
	weights []float64
	target  float64
	issued  uint64
	applied uint64
}

// NewRebalancer validates assets and starts from equal weights.
func NewRebalancer(opt *Optimizer, assets []Asset) (*Rebalancer, error) {
	if _, err := Build(assets, Constraints{}); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = NewOptimizer()
	}
	return &Rebalancer{
		solve:   opt.Optimize,
		assets:  append([]Asset(nil), assets...),
		weights: EqualWeights(len(assets)),
	}, nil
}

// SetTargetVolatility re-optimizes for target. The solve runs without holding
// the lock so concurrent callers do not queue behind each other.
func (r *Rebalancer) SetTargetVolatility(target float64) (*Update, error) {
	r.mu.Lock()
	r.issued++
	seq := r.issued
	r.mu.Unlock()

	sol, err := r.solve(r.assets, Constraints{TargetVolatility: target})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	u := &Update{TargetVolatility: target, Status: sol.Status}
	if !sol.Optimal() {
		u.Notice = notice(sol.Status)
	}
	switch {
	case seq < r.applied:
		// a newer request already completed
	case !sol.Optimal():
		r.applied = seq
	default:
		r.weights = sol.Weights
		r.target = target
		r.applied = seq
		u.Accepted = true
	}
	u.Weights = append([]float64(nil), r.weights...)
	return u, nil
}

// Weights returns a copy of the last accepted weights.
func (r *Rebalancer) Weights() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.weights...)
}

// TargetVolatility returns the target of the last accepted solve.
func (r *Rebalancer) TargetVolatility() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Assets returns a copy of the asset universe.
func (r *Rebalancer) Assets() []Asset {
	return append([]Asset(nil), r.assets...)
}

// Allocation renders the current state as report rows.
func (r *Rebalancer) Allocation() []Row {
	return Allocation(r.assets, r.Weights())
}

func notice(s simplex.Status) string {
	switch s {
	case simplex.Infeasible:
		return NoticeInfeasible
	case simplex.Unbounded:
		return NoticeUnbounded
	default:
		return NoticeIterationLimit
	}
}
