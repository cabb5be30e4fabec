package optimization

import (
	"math"
	"testing"

	"warpmine/domain/core"
	"warpmine/domain/process"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedResolve_NormalizesWeights(t *testing.T) {
	p, terms, err := WeightedSpec{Metrics: []string{"Recovery", "cost"}, Weights: []float64{3, 1}}.Resolve()
	require.NoError(t, err)

	assert.Equal(t, MetricWeighted, p.Metric)
	assert.Equal(t, Maximize, p.Direction)
	assert.Len(t, p.Bounds, len(process.Dimensions))
	require.Len(t, terms, 2)
	assert.Equal(t, Term{Metric: process.MetricRecovery, Direction: Maximize, Weight: 0.75}, terms[0])
	assert.Equal(t, Term{Metric: process.MetricCost, Direction: Minimize, Weight: 0.25}, terms[1])
}

func TestWeightedResolve_EqualByDefault(t *testing.T) {
	_, terms, err := WeightedSpec{Metrics: []string{"recovery", "purity", "energy", "cost"}}.Resolve()
	require.NoError(t, err)
	for _, tm := range terms {
		assert.InDelta(t, 0.25, tm.Weight, 1e-12)
	}
}

func TestWeightedResolve_Errors(t *testing.T) {
	tests := []struct {
		name  string
		spec  WeightedSpec
		field string
	}{
		{"single metric", WeightedSpec{Metrics: []string{"recovery"}}, "objective.metrics"},
		{"unknown metric", WeightedSpec{Metrics: []string{"recovery", "profit"}}, "objective.metrics[1]"},
		{"duplicate", WeightedSpec{Metrics: []string{"cost", "Cost"}}, "objective.metrics[1]"},
		{"weight count", WeightedSpec{Metrics: []string{"cost", "purity"}, Weights: []float64{1}}, "objective.weights"},
		{"negative weight", WeightedSpec{Metrics: []string{"cost", "purity"}, Weights: []float64{1, -1}}, "objective.weights[1]"},
		{"nan weight", WeightedSpec{Metrics: []string{"cost", "purity"}, Weights: []float64{math.NaN(), 1}}, "objective.weights[0]"},
		{"all zero", WeightedSpec{Metrics: []string{"cost", "purity"}, Weights: []float64{0, 0}}, "objective.weights"},
		{"bad bounds", WeightedSpec{Metrics: []string{"cost", "purity"},
			Bounds: map[string]Bound{process.FieldTemperature: {130, 200}}}, "objective.bounds.temperature"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.spec.Resolve()
			require.Error(t, err)
			assert.True(t, core.IsSpecError(err))
			assert.Equal(t, tc.field, core.FieldOf(err))
		})
	}
}

func TestEmphasize(t *testing.T) {
	terms := []Term{{Metric: "recovery", Weight: 0.5}, {Metric: "cost", Weight: 0.5}}
	got := Emphasize(terms, 1)
	assert.InDelta(t, 0.25, got[0].Weight, 1e-12)
	assert.InDelta(t, 0.75, got[1].Weight, 1e-12)
	assert.Equal(t, 0.5, terms[1].Weight, "input untouched")
	assert.Equal(t, "recovery 0.25, cost 0.75", WeightText(got))
}
