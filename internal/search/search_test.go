package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recbench/recbench/internal/algo"
	"github.com/recbench/recbench/internal/dataset"
	"github.com/recbench/recbench/internal/experiment"
	"github.com/recbench/recbench/internal/metrics"
	"github.com/recbench/recbench/internal/split"
)

func TestGridOrder(t *testing.T) {
	space := NewSpace().
		Add("a", 1, 2).
		Add("b", 10, 20)

	combos, err := Grid{}.Candidates(space)
	require.NoError(t, err)

	want := []map[string]any{
		{"a": 1, "b": 10},
		{"a": 1, "b": 20},
		{"a": 2, "b": 10},
		{"a": 2, "b": 20},
	}
	assert.Equal(t, want, combos)
}

func TestGridThreeParams(t *testing.T) {
	space := NewSpace().
		Add("a", 1, 2).
		Add("b", "x").
		Add("c", 0.1, 0.2)

	combos, err := Grid{}.Candidates(space)
	require.NoError(t, err)
	require.Len(t, combos, 4)

	// First parameter varies slowest.
	assert.Equal(t, 1, combos[0]["a"])
	assert.Equal(t, 1, combos[1]["a"])
	assert.Equal(t, 2, combos[2]["a"])
	assert.Equal(t, 2, combos[3]["a"])
	assert.Equal(t, 0.1, combos[0]["c"])
	assert.Equal(t, 0.2, combos[1]["c"])
}

func TestEmptySpace(t *testing.T) {
	var eerr *EmptySpaceError

	_, err := Grid{}.Candidates(NewSpace())
	require.ErrorAs(t, err, &eerr)
	assert.Empty(t, eerr.Param)

	_, err = Grid{}.Candidates(NewSpace().Add("a"))
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "a", eerr.Param)

	_, err = Random{N: 3}.Candidates(NewSpace())
	require.ErrorAs(t, err, &eerr)
}

func TestRandomReproducible(t *testing.T) {
	space := NewSpace().
		Add("lr", 0.01, 0.05, 0.1).
		Add("factors", 10, 20, 50, 100)

	a, err := Random{N: 5, Seed: 42}.Candidates(space)
	require.NoError(t, err)
	b, err := Random{N: 5, Seed: 42}.Candidates(space)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.Len(t, a, 5)
	for _, combo := range a {
		assert.Contains(t, space.Values("lr"), combo["lr"])
		assert.Contains(t, space.Values("factors"), combo["factors"])
	}

	c, err := Random{N: 5, Seed: 43}.Candidates(space)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRandomExhaustsTinySpace(t *testing.T) {
	// 2 configurations, 6 draws: duplicates must be accepted once the
	// retry budget runs out.
	space := NewSpace().Add("a", 1, 2)
	combos, err := Random{N: 6, Seed: 1}.Candidates(space)
	require.NoError(t, err)
	assert.Len(t, combos, 6)
}

func TestRandomInvalidCount(t *testing.T) {
	space := NewSpace().Add("a", 1)
	_, err := Random{N: 0}.Candidates(space)
	require.ErrorContains(t, err, "trial count")
}

func searchDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New([]dataset.Interaction{
		{UserID: "u0", ItemID: "a", Rating: 5},
		{UserID: "u0", ItemID: "b", Rating: 4},
		{UserID: "u1", ItemID: "b", Rating: 5},
		{UserID: "u1", ItemID: "c", Rating: 4},
		{UserID: "u1", ItemID: "d", Rating: 3},
		{UserID: "u0", ItemID: "c", Rating: 5},
		{UserID: "u0", ItemID: "d", Rating: 2},
	})
	require.NoError(t, err)
	return ds
}

// biasFactory yields models that predict a constant rating taken from
// the "bias" parameter.
func biasFactory(name string, params map[string]any) (algo.Recommender, error) {
	bias := float64(params["bias"].(int))
	return &algo.Fake{
		FakeName: name,
		ScoreFn:  func(user, item int) float64 { return bias },
	}, nil
}

func searchSplitter() split.Splitter {
	// Validation row has rating 5, test row has rating 2.
	return split.Given{Train: []int{0, 1, 2, 3, 4}, Validation: []int{5}, Test: []int{6}}
}

func TestSearchSelectsOnValidation(t *testing.T) {
	space := NewSpace().Add("bias", 2, 5)

	s, err := New(biasFactory, Grid{}, space, "RMSE",
		Minimize(),
		WithExperimentOptions(experiment.WithRatingMetrics(metrics.RMSE{})))
	require.NoError(t, err)

	result, err := s.Run(context.Background(), searchDataset(t), searchSplitter())
	require.NoError(t, err)

	// bias=2 nails the test row but misses validation by 3; bias=5 nails
	// validation. Selection must follow validation only.
	assert.Equal(t, 1, result.BestIndex)
	assert.Equal(t, map[string]any{"bias": 5}, result.BestParams)
	assert.InDelta(t, 0.0, result.BestScore, 1e-9)
	assert.InDelta(t, 3.0, result.BestTest["RMSE"], 1e-9)

	require.Len(t, result.Trials, 2)
	assert.Equal(t, experiment.ModelStatusOK, result.Trials[0].Status)
	assert.InDelta(t, 3.0, result.Trials[0].Score, 1e-9)
}

func TestSearchTrialTableOrder(t *testing.T) {
	space := NewSpace().Add("bias", 1, 2, 3, 4)

	s, err := New(biasFactory, Grid{}, space, "RMSE",
		Minimize(),
		WithWorkers(4),
		WithExperimentOptions(experiment.WithRatingMetrics(metrics.RMSE{})))
	require.NoError(t, err)

	result, err := s.Run(context.Background(), searchDataset(t), searchSplitter())
	require.NoError(t, err)

	require.Len(t, result.Trials, 4)
	for i, trial := range result.Trials {
		assert.Equal(t, i, trial.Index)
		assert.Equal(t, i+1, trial.Params["bias"])
	}
}

func TestSearchRequiresValidationSplit(t *testing.T) {
	space := NewSpace().Add("bias", 2)

	s, err := New(biasFactory, Grid{}, space, "RMSE",
		Minimize(),
		WithExperimentOptions(experiment.WithRatingMetrics(metrics.RMSE{})))
	require.NoError(t, err)

	noVal := split.Given{Train: []int{0, 1, 2, 3, 4}, Test: []int{5, 6}}
	result, err := s.Run(context.Background(), searchDataset(t), noVal)
	require.ErrorContains(t, err, "every trial failed")
	require.Len(t, result.Trials, 1)
	assert.Contains(t, result.Trials[0].Err, "validation")
}

func TestSearchAllTrialsFailed(t *testing.T) {
	space := NewSpace().Add("bias", 1, 2)
	factory := func(name string, params map[string]any) (algo.Recommender, error) {
		return &algo.Fake{FakeName: name, FitErr: errors.New("boom")}, nil
	}

	s, err := New(factory, Grid{}, space, "RMSE",
		Minimize(),
		WithExperimentOptions(experiment.WithRatingMetrics(metrics.RMSE{})))
	require.NoError(t, err)

	result, err := s.Run(context.Background(), searchDataset(t), searchSplitter())
	require.ErrorContains(t, err, "every trial failed")
	assert.Equal(t, -1, result.BestIndex)
	for _, trial := range result.Trials {
		assert.Equal(t, experiment.ModelStatusFailed, trial.Status)
	}
}

func TestSearchTieBreaksOnEarlierTrial(t *testing.T) {
	// Both configurations produce identical validation scores; the first
	// one must win.
	space := NewSpace().Add("bias", 5, 5)

	s, err := New(biasFactory, Grid{}, space, "RMSE",
		Minimize(),
		WithExperimentOptions(experiment.WithRatingMetrics(metrics.RMSE{})))
	require.NoError(t, err)

	result, err := s.Run(context.Background(), searchDataset(t), searchSplitter())
	require.NoError(t, err)
	assert.Equal(t, 0, result.BestIndex)
}
