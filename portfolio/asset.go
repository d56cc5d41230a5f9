// Package portfolio turns assets and a risk ceiling into a linear program,
// solves it and keeps the collaborator-side state (last accepted weights).
package portfolio

import (
	"math"
	"strconv"
)

// Asset is an immutable description of a holding.
type Asset struct {
	ID             int     `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Price          float64 `yaml:"price" json:"price"`
	ExpectedReturn float64 `yaml:"return" json:"return"`
	Volatility     float64 `yaml:"volatility" json:"volatility"`
}

// Constraints holds the per-solve risk budget.
type Constraints struct {
	TargetVolatility float64 `json:"target_volatility"`
}

// VariableName is the decision variable name for an asset's weight.
func VariableName(a Asset) string {
	if a.Name != "" {
		return "w_" + a.Name
	}
	return "w_" + strconv.Itoa(a.ID)
}

// DefaultAssets returns the sample stock universe.
func DefaultAssets() []Asset {
	return []Asset{
		{ID: 1, Name: "AAPL", Price: 150.25, Volatility: 0.20, ExpectedReturn: 0.12},
		{ID: 2, Name: "GOOGL", Price: 2750.80, Volatility: 0.25, ExpectedReturn: 0.15},
		{ID: 3, Name: "MSFT", Price: 305.50, Volatility: 0.18, ExpectedReturn: 0.10},
		{ID: 4, Name: "AMZN", Price: 3380.20, Volatility: 0.28, ExpectedReturn: 0.18},
	}
}

// EqualWeights returns 1/n for each of n assets.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// MaxVolatility returns the largest asset volatility, 0 for no assets.
func MaxVolatility(assets []Asset) float64 {
	maxVol := 0.0
	for _, a := range assets {
		maxVol = math.Max(maxVol, a.Volatility)
	}
	return maxVol
}

// Stats returns the expected return and weighted volatility of weights.
func Stats(assets []Asset, weights []float64) (ret, vol float64) {
	for i, a := range assets {
		ret += weights[i] * a.ExpectedReturn
		vol += weights[i] * a.Volatility
	}
	return ret, vol
}
