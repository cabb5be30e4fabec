package optimize

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"warpmine/domain/core"
	"warpmine/domain/optimization"
	"warpmine/domain/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opposed ties both metrics to temperature so that their relative gains
// cancel at equal weights: recovery wants heat, cost wants none
func opposed(_ context.Context, p process.Parameters) (map[string]float64, error) {
	return map[string]float64{
		process.MetricRecovery: p.Temperature,
		process.MetricCost:     p.Temperature,
	}, nil
}

func TestOptimizeWeighted_TradeOffs(t *testing.T) {
	e := newTestEngine(t)
	res, err := e.OptimizeWeighted(context.Background(), WeightedRequest{
		Objective: optimization.WeightedSpec{Metrics: []string{"recovery", "cost"}},
		Config:    optimization.Config{PopulationSize: 10, MaxIterations: 25, Seed: seed(4)},
		Func:      opposed,
	})
	require.NoError(t, err)

	assert.Equal(t, optimization.Genetic, res.Algorithm)
	require.Len(t, res.Terms, 2)
	assert.Equal(t, 0.5, res.Terms[0].Weight)
	assert.Equal(t, optimization.Minimize, res.Terms[1].Direction)
	assertWithinBounds(t, nil, res.BestCompromise.Parameters)
	assertMonotone(t, optimization.Maximize, res.History)
	assert.GreaterOrEqual(t, res.BestCompromise.Score, 0.0)

	require.Len(t, res.TradeOffs, 2)
	byFocus := map[string]optimization.Solution{}
	for _, s := range res.TradeOffs {
		byFocus[s.Focus] = s
		assert.InDelta(t, 0.75, s.Weights[s.Focus], 1e-9)
	}
	// favoring recovery heats up, favoring cost cools down
	assert.Greater(t, byFocus["recovery"].Parameters.Temperature, byFocus["cost"].Parameters.Temperature)
	assert.Greater(t, byFocus["recovery"].Objectives["recovery"], byFocus["cost"].Objectives["recovery"])
	assert.Less(t, byFocus["cost"].Objectives["cost"], byFocus["recovery"].Objectives["cost"])

	assert.Contains(t, res.Recommendations[0], "recovery 0.50, cost 0.50")
	assert.Contains(t, res.Recommendations, "Monitor all objectives during implementation to ensure balanced performance")
	_, err = json.Marshal(res)
	assert.NoError(t, err)
}

func TestOptimizeWeighted_ExtractionSimulator(t *testing.T) {
	e := newTestEngine(t)
	req := WeightedRequest{
		Objective: optimization.WeightedSpec{Metrics: []string{"purity", "energy"}, Weights: []float64{2, 1}},
		Algorithm: "de",
		Config:    optimization.Config{PopulationSize: 8, MaxIterations: 10, Seed: seed(12)},
	}
	a, err := e.OptimizeWeighted(context.Background(), req)
	require.NoError(t, err)
	b, err := e.OptimizeWeighted(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.Equal(t, optimization.DifferentialEvolution, a.Algorithm)
	assert.NotEmpty(t, a.Model)
	assert.Contains(t, a.BaselineObjectives, process.MetricPurity)
	assert.Contains(t, a.BestCompromise.Objectives, process.MetricEnergy)
	assert.Len(t, a.TradeOffs, 2)
}

func TestOptimizeWeighted_SpecErrorsRunNothing(t *testing.T) {
	e := newTestEngine(t)
	calls := 0
	counting := func(context.Context, process.Parameters) (map[string]float64, error) {
		calls++
		return nil, errors.New("unused")
	}
	for _, spec := range []optimization.WeightedSpec{
		{Metrics: []string{"recovery"}},
		{Metrics: []string{"recovery", "cost"}, Weights: []float64{-1, 2}},
	} {
		_, err := e.OptimizeWeighted(context.Background(), WeightedRequest{Objective: spec, Func: counting})
		require.Error(t, err)
		assert.True(t, core.IsSpecError(err))
	}
	_, err := e.OptimizeWeighted(context.Background(), WeightedRequest{
		Objective: optimization.WeightedSpec{Metrics: []string{"recovery", "cost"}}, Algorithm: "hill_climb", Func: counting})
	assert.ErrorIs(t, err, core.ErrUnknownAlgorithm)
	assert.Zero(t, calls)
}

func TestRecommendWeighted(t *testing.T) {
	base := defaultBaseline(process.CopperOxide)
	hot := base
	hot.Temperature = base.Temperature * 1.5
	r := optimization.WeightedResult{
		Terms: []optimization.Term{
			{Metric: "recovery", Direction: optimization.Maximize, Weight: 0.5},
			{Metric: "cost", Direction: optimization.Minimize, Weight: 0.5},
		},
		Baseline:           base,
		BaselineObjectives: map[string]float64{"recovery": 80, "cost": 20},
		BestCompromise: optimization.Solution{Parameters: hot,
			Objectives: map[string]float64{"recovery": 88, "cost": 20}},
		TradeOffs: []optimization.Solution{{Focus: "recovery",
			Objectives: map[string]float64{"recovery": 92, "cost": 26}}},
		StopReason: optimization.StopDeadline,
	}
	recs := RecommendWeighted(r)
	assert.Contains(t, recs, "recovery moves from 80.00 to 88.00 (10.0% better)")
	assert.Contains(t, recs, "cost moves from 20.00 to 20.00 (unchanged)")
	assert.Contains(t, recs, "Favoring recovery reaches 92.00 at the expense of cost")
	assert.Contains(t, recs[len(recs)-1], "stopped early")

	var sawTemperature bool
	for _, s := range recs {
		if len(s) > 8 && s[:8] == "Increase" {
			sawTemperature = true
		}
	}
	assert.True(t, sawTemperature)
}
