package portfolio

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"q.log/allocator/logging"
	"q.log/allocator/model"
)

// DefaultFrontierSteps is the number of targets swept when none is given.
const DefaultFrontierSteps = 10

// FrontierSpec describes a sweep of target volatilities from Min to Max
// inclusive. A zero Max means the largest asset volatility.
type FrontierSpec struct {
	MinVolatility float64
	MaxVolatility float64
	Steps         int
	Workers       int
}

// FrontierPoint is the solve at one target volatility.
type FrontierPoint struct {
	TargetVolatility float64   `json:"target_volatility"`
	Solution         *Solution `json:"solution"`
}

// Targets returns the evenly spaced volatilities of the sweep.
func (f FrontierSpec) Targets(assets []Asset) ([]float64, error) {
	hi := f.MaxVolatility
	if hi == 0 {
		hi = MaxVolatility(assets)
	}
	steps := f.Steps
	if steps == 0 {
		steps = DefaultFrontierSteps
	}
	switch {
	case steps < 1:
		return nil, &model.InvalidInputError{Field: "frontier steps", Reason: fmt.Sprintf("must be positive, got %d", steps)}
	case !finite(f.MinVolatility) || !finite(hi) || f.MinVolatility < 0:
		return nil, &model.InvalidInputError{Field: "frontier range", Reason: "bounds must be finite and non-negative"}
	case hi < f.MinVolatility:
		return nil, &model.InvalidInputError{
			Field:  "frontier range",
			Reason: fmt.Sprintf("max %g is below min %g", hi, f.MinVolatility),
		}
	}

	if steps == 1 {
		return []float64{hi}, nil
	}
	targets := make([]float64, steps)
	width := (hi - f.MinVolatility) / float64(steps-1)
	for i := range targets {
		targets[i] = f.MinVolatility + float64(i)*width
	}
	targets[steps-1] = hi
	return targets, nil
}

// Frontier solves the allocation at every target of the sweep concurrently and
// returns the points in ascending target order. Each solve is independent;
// infeasible targets appear with a non-optimal status.
func (o *Optimizer) Frontier(ctx context.Context, assets []Asset, sweep FrontierSpec) ([]FrontierPoint, error) {
	targets, err := sweep.Targets(assets)
	if err != nil {
		return nil, err
	}
	workers := sweep.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	points := make([]FrontierPoint, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sol, err := o.Optimize(assets, Constraints{TargetVolatility: target})
			if err != nil {
				return err
			}
			points[i] = FrontierPoint{TargetVolatility: target, Solution: sol}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.log.V(logging.DEBUG).Info("Frontier computed", "points", len(points), "workers", workers)
	return points, nil
}
