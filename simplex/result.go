package simplex

import (
	"fmt"
	"math"
)

// Status is the terminal outcome of a solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	IterationLimitExceeded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case IterationLimitExceeded:
		return "iteration_limit_exceeded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of Solve. Values is empty unless Status is Optimal.
type Result struct {
	Status     Status
	Values     map[string]float64
	Objective  float64
	Iterations int
}

func newResult(status Status, iterations int) *Result {
	return &Result{
		Status:     status,
		Values:     map[string]float64{},
		Objective:  math.NaN(),
		Iterations: iterations,
	}
}

// Value returns the value of the named variable and whether it is present.
func (r *Result) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}
