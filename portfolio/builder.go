package portfolio

import (
	"fmt"
	"math"

	"q.log/allocator/model"
)

const (
	budgetConstraint = "weight_sum"
	riskConstraint   = "max_volatility"
)

// Build translates assets and a risk ceiling into a linear program:
//
//	max  Σ return[i]·w[i]
//	s.t. Σ w[i] = 1
//	     Σ volatility[i]·w[i] <= target
//	     w[i] >= 0
//
// Rows are emitted budget first, then risk. Build has no side effects.
func Build(assets []Asset, c Constraints) (*model.LinearProgram, error) {
	if len(assets) == 0 {
		return nil, &model.InvalidInputError{Field: "assets", Reason: "at least one asset is required"}
	}
	if !finite(c.TargetVolatility) || c.TargetVolatility < 0 {
		return nil, &model.InvalidInputError{
			Field:  "target volatility",
			Reason: fmt.Sprintf("must be finite and non-negative, got %g", c.TargetVolatility),
		}
	}

	n := len(assets)
	lp := &model.LinearProgram{
		Name:      "Portfolio Optimization",
		Sense:     model.Maximize,
		Variables: make([]model.Variable, n),
		Objective: make([]float64, n),
	}
	budget := make([]float64, n)
	risk := make([]float64, n)
	seen := make(map[string]struct{}, n)

	for i, a := range assets {
		field := fmt.Sprintf("assets[%d]", i)
		switch {
		case !finite(a.ExpectedReturn):
			return nil, &model.InvalidInputError{Field: field, Reason: "expected return is not finite"}
		case !finite(a.Volatility):
			return nil, &model.InvalidInputError{Field: field, Reason: "volatility is not finite"}
		case a.Volatility < 0:
			return nil, &model.InvalidInputError{Field: field, Reason: fmt.Sprintf("volatility %g is negative", a.Volatility)}
		}

		name := VariableName(a)
		if _, ok := seen[name]; ok {
			return nil, &model.DuplicateVariableError{Name: name}
		}
		seen[name] = struct{}{}

		lp.Variables[i] = model.NonNegative(name)
		lp.Objective[i] = a.ExpectedReturn
		budget[i] = 1
		risk[i] = a.Volatility
	}

	lp.Constraints = []model.Constraint{
		{Name: budgetConstraint, Coefficients: budget, Relation: model.EQ, RHS: 1},
		{Name: riskConstraint, Coefficients: risk, Relation: model.LE, RHS: c.TargetVolatility},
	}
	return lp, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
