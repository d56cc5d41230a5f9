package portfolio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"q.log/allocator/simplex"
)

func TestRebalancer(t *testing.T) {
	r, err := NewRebalancer(NewOptimizer(), DefaultAssets())
	require.NoError(t, err)
	assert.Equal(t, EqualWeights(4), r.Weights())
	assert.Equal(t, 0.0, r.TargetVolatility())

	u, err := r.SetTargetVolatility(0.24)
	require.NoError(t, err)
	assert.True(t, u.Accepted)
	assert.Equal(t, simplex.Optimal, u.Status)
	assert.Empty(t, u.Notice)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, u.Weights, delta)
	assert.Equal(t, 0.24, r.TargetVolatility())

	u, err = r.SetTargetVolatility(0.10)
	require.NoError(t, err)
	assert.False(t, u.Accepted)
	assert.Equal(t, simplex.Infeasible, u.Status)
	assert.Equal(t, NoticeInfeasible, u.Notice)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, u.Weights, delta)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0.5}, r.Weights(), delta)
	assert.Equal(t, 0.24, r.TargetVolatility())
}

func TestRebalancer_InfeasibleFirstKeepsEqualWeights(t *testing.T) {
	r, err := NewRebalancer(nil, DefaultAssets())
	require.NoError(t, err)

	u, err := r.SetTargetVolatility(0.01)
	require.NoError(t, err)
	assert.False(t, u.Accepted)
	assert.Equal(t, EqualWeights(4), u.Weights)
}

func TestRebalancer_IterationLimitNotice(t *testing.T) {
	r, err := NewRebalancer(NewOptimizer(WithSolverOptions(simplex.WithIterationLimit(1))), DefaultAssets())
	require.NoError(t, err)

	u, err := r.SetTargetVolatility(0.24)
	require.NoError(t, err)
	assert.Equal(t, NoticeIterationLimit, u.Notice)
	assert.Equal(t, EqualWeights(4), r.Weights())
}

func TestRebalancer_InvalidInput(t *testing.T) {
	_, err := NewRebalancer(nil, nil)
	assert.Error(t, err)

	r, err := NewRebalancer(nil, DefaultAssets())
	require.NoError(t, err)
	_, err = r.SetTargetVolatility(-1)
	assert.Error(t, err)
	assert.Equal(t, EqualWeights(4), r.Weights())
}

func TestRebalancer_Concurrent(t *testing.T) {
	r, err := NewRebalancer(NewOptimizer(), DefaultAssets())
	require.NoError(t, err)

	targets := []float64{0.18, 0.20, 0.22, 0.24, 0.26, 0.28}
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.SetTargetVolatility(target)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Contains(t, targets, r.TargetVolatility())
	sum := 0.0
	for _, w := range r.Weights() {
		sum += w
	}
	assert.InDelta(t, 1, sum, feasible)
	_, vol := Stats(DefaultAssets(), r.Weights())
	assert.LessOrEqual(t, vol, r.TargetVolatility()+feasible)
}

func TestRebalancer_Allocation(t *testing.T) {
	r, err := NewRebalancer(nil, DefaultAssets())
	require.NoError(t, err)
	rows := r.Allocation()
	require.Len(t, rows, 4)
	assert.Equal(t, "AAPL", rows[0].Asset)
	assert.Equal(t, "0.25", rows[0].Weight.String())
	assert.Equal(t, "1", Total(rows).String())
}

// blockingSolve delays solves for target until release is closed, signalling
// entered once the delayed solve has been issued.
func blockingSolve(target float64, entered, release chan struct{}) func([]Asset, Constraints) (*Solution, error) {
	opt := NewOptimizer()
	return func(assets []Asset, c Constraints) (*Solution, error) {
		if c.TargetVolatility == target {
			close(entered)
			<-release
		}
		return opt.Optimize(assets, c)
	}
}

func TestRebalancer_StaleResultAfterNewerFailure(t *testing.T) {
	r, err := NewRebalancer(nil, DefaultAssets())
	require.NoError(t, err)
	entered, release := make(chan struct{}), make(chan struct{})
	r.solve = blockingSolve(0.24, entered, release)

	done := make(chan *Update)
	go func() {
		u, err := r.SetTargetVolatility(0.24)
		assert.NoError(t, err)
		done <- u
	}()
	<-entered

	newer, err := r.SetTargetVolatility(0.05)
	require.NoError(t, err)
	assert.False(t, newer.Accepted)
	assert.Equal(t, NoticeInfeasible, newer.Notice)

	close(release)
	older := <-done
	assert.Equal(t, simplex.Optimal, older.Status)
	assert.False(t, older.Accepted)
	assert.Equal(t, EqualWeights(4), older.Weights)
	assert.Equal(t, EqualWeights(4), r.Weights())
	assert.Equal(t, 0.0, r.TargetVolatility())
}

func TestRebalancer_StaleResultAfterNewerSuccess(t *testing.T) {
	r, err := NewRebalancer(nil, DefaultAssets())
	require.NoError(t, err)
	entered, release := make(chan struct{}), make(chan struct{})
	r.solve = blockingSolve(0.24, entered, release)

	done := make(chan *Update)
	go func() {
		u, err := r.SetTargetVolatility(0.24)
		assert.NoError(t, err)
		done <- u
	}()
	<-entered

	newer, err := r.SetTargetVolatility(0.20)
	require.NoError(t, err)
	assert.True(t, newer.Accepted)

	close(release)
	older := <-done
	assert.False(t, older.Accepted)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, older.Weights, delta)
	assert.Equal(t, 0.20, r.TargetVolatility())
}
