package portfolio

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Row is one line of an allocation report. Monetary and percentage values are
// decimals so they render without binary floating point noise.
type Row struct {
	Asset          string          `json:"asset"`
	Price          decimal.Decimal `json:"price"`
	Weight         decimal.Decimal `json:"weight"`
	ExpectedReturn decimal.Decimal `json:"expected_return"`
	Volatility     decimal.Decimal `json:"volatility"`
}

// Percent renders a fraction as a percentage with two decimals.
func Percent(f float64) string {
	return decimal.NewFromFloat(f).Mul(hundred).StringFixed(2) + "%"
}

// Money renders an amount with two decimals.
func Money(f float64) string {
	return decimal.NewFromFloat(f).StringFixed(2)
}

// Allocation pairs assets with weights. Weights are rounded to six places.
func Allocation(assets []Asset, weights []float64) []Row {
	rows := make([]Row, len(assets))
	for i, a := range assets {
		name := a.Name
		if name == "" {
			name = VariableName(a)
		}
		rows[i] = Row{
			Asset:          name,
			Price:          decimal.NewFromFloat(a.Price),
			Weight:         decimal.NewFromFloat(weights[i]).Round(6),
			ExpectedReturn: decimal.NewFromFloat(a.ExpectedReturn),
			Volatility:     decimal.NewFromFloat(a.Volatility),
		}
	}
	return rows
}

// Total returns the sum of row weights.
func Total(rows []Row) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Weight)
	}
	return sum
}
