package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentAndMoney(t *testing.T) {
	assert.Equal(t, "12.00%", Percent(0.12))
	assert.Equal(t, "33.33%", Percent(1.0/3))
	assert.Equal(t, "0.00%", Percent(0))
	assert.Equal(t, "2750.80", Money(2750.8))
	assert.Equal(t, "150.25", Money(150.25))
}

func TestAllocation(t *testing.T) {
	assets := []Asset{{ID: 3, Price: 10}, {ID: 4, Name: "B", Price: 20, ExpectedReturn: 0.1, Volatility: 0.2}}
	rows := Allocation(assets, []float64{1.0 / 3, 2.0 / 3})

	assert.Equal(t, "w_3", rows[0].Asset)
	assert.Equal(t, "0.333333", rows[0].Weight.String())
	assert.Equal(t, "0.666667", rows[1].Weight.String())
	assert.Equal(t, "0.2", rows[1].Volatility.String())
	assert.Equal(t, "1", Total(rows).String())
}
