package extraction

import (
	"context"
	"errors"
	"testing"

	"warpmine/domain/core"
	"warpmine/domain/process"
	"warpmine/internal/synth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSimulator(t *testing.T) *Simulator {
	t.Helper()
	sim, err := NewSimulator(nil, "", nil)
	require.NoError(t, err)
	return sim
}

func seedPtr(v int64) *int64 { return &v }

func scenarioA(t *testing.T) process.Parameters {
	t.Helper()
	p, err := process.NewParameters(2.5, 8, 1.5, 65, 2.2, process.CopperOxide)
	require.NoError(t, err)
	return p
}

func TestSimulate_ScenarioA(t *testing.T) {
	sim := newTestSimulator(t)
	res, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t), Seed: seedPtr(42)})
	require.NoError(t, err)

	assert.Greater(t, res.RecoveryRate, 0.0)
	assert.Greater(t, res.Purity, 0.0)
	assert.Greater(t, res.ProcessingCost, 0.0)
	assert.Equal(t, RandomForest, res.Model)
	assert.Equal(t, int64(42), res.Seed)
	assert.NotEmpty(t, res.Recommendations)
	assert.Equal(t, 8.0, res.ProcessingTime)

	again, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t), Seed: seedPtr(42)})
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestSimulate_OutputRanges(t *testing.T) {
	sim := newTestSimulator(t)
	g := synth.New(2024)
	minerals := []process.MineralType{process.CopperOxide, process.CopperSulfide, process.CobaltSulfide}

	for i := 0; i < 300; i++ {
		p, err := process.NewParameters(
			g.Uniform(0, 100), g.Uniform(0.1, 200), g.Uniform(0, 12),
			g.Uniform(-30, 250), g.Uniform(0, 8), minerals[i%len(minerals)])
		require.NoError(t, err)

		for _, model := range sim.Models() {
			res, err := sim.Simulate(context.Background(), Request{Parameters: p, Model: model, Seed: seedPtr(int64(i))})
			require.NoError(t, err)
			for name, v := range map[string]float64{"recovery": res.RecoveryRate, "purity": res.Purity, "efficiency": res.OverallEfficiency} {
				require.GreaterOrEqual(t, v, 0.0, "%s %s %+v", model, name, p)
				require.LessOrEqual(t, v, 100.0, "%s %s %+v", model, name, p)
			}
			require.GreaterOrEqual(t, res.ProcessingCost, 0.0)
			require.GreaterOrEqual(t, res.EnergyConsumption, 0.0)
		}
	}
}

func TestSimulate_DeterministicPerModel(t *testing.T) {
	sim := newTestSimulator(t)
	for _, model := range sim.Models() {
		req := Request{Parameters: scenarioA(t), Model: model, Seed: seedPtr(7)}
		a, err := sim.Simulate(context.Background(), req)
		require.NoError(t, err)
		b, err := sim.Simulate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, a, b, model)
	}
}

func TestSimulate_TemperaturePlateau(t *testing.T) {
	sim := newTestSimulator(t)

	recoveryAt := func(model string, temp float64) float64 {
		p, err := process.NewParameters(2.5, 8, 1.5, temp, 2.2, process.CopperOxide)
		require.NoError(t, err)
		res, err := sim.Simulate(context.Background(), Request{Parameters: p, Model: model, Seed: seedPtr(99)})
		require.NoError(t, err)
		return res.RecoveryRate
	}

	for _, model := range sim.Models() {
		prev := recoveryAt(model, 60)
		for temp := 61.0; temp <= 75; temp++ {
			cur := recoveryAt(model, temp)
			assert.GreaterOrEqual(t, cur, prev, "%s at %.0f°C", model, temp)
			prev = cur
		}
		inBand := recoveryAt(model, 75)
		assert.LessOrEqual(t, recoveryAt(model, 110), inBand, model)
		assert.LessOrEqual(t, recoveryAt(model, 120), recoveryAt(model, 100), model)
	}
}

func TestSimulate_NoSeedVariesWithinEnvelope(t *testing.T) {
	sim := newTestSimulator(t)
	a, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t)})
	require.NoError(t, err)
	b, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t)})
	require.NoError(t, err)

	// noise is bounded at 3 sigma = 1.8 points per side for random_forest
	assert.InDelta(t, a.RecoveryRate, b.RecoveryRate, 2*1.8+1)
}

func TestSimulate_DefaultModelByOrePath(t *testing.T) {
	sim := newTestSimulator(t)
	cases := map[process.MineralType]string{
		process.CopperOxide:   RandomForest,
		process.CopperSulfide: GradientBoosting,
		process.CobaltSulfide: NeuralNetwork,
	}
	for mineral, want := range cases {
		p, err := process.NewParameters(2.5, 8, 1.5, 65, 2.2, mineral)
		require.NoError(t, err)
		res, err := sim.Simulate(context.Background(), Request{Parameters: p, Seed: seedPtr(1)})
		require.NoError(t, err)
		assert.Equal(t, want, res.Model, mineral)
	}

	configured, err := NewSimulator(nil, "xgboost", nil)
	require.NoError(t, err)
	res, err := configured.Simulate(context.Background(), Request{Parameters: scenarioA(t), Seed: seedPtr(1)})
	require.NoError(t, err)
	assert.Equal(t, GradientBoosting, res.Model)
}

func TestSimulate_Errors(t *testing.T) {
	sim := newTestSimulator(t)

	_, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t), Model: "svm"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnknownModel))

	_, err = sim.Simulate(context.Background(), Request{Parameters: process.Parameters{OreGrade: 2, LeachingTime: -1}})
	require.Error(t, err)
	assert.Equal(t, process.FieldLeachingTime, core.FieldOf(err))

	_, err = NewSimulator(nil, "svm", nil)
	assert.True(t, core.IsSpecError(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Simulate(ctx, Request{Parameters: scenarioA(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

type panickyModel struct{}

func (panickyModel) Name() string        { return "panicky" }
func (panickyModel) Description() string { return "always fails" }
func (panickyModel) Accuracy() float64   { return 0.9 }
func (panickyModel) Samples() int        { return 0 }
func (panickyModel) Evaluate(process.Parameters, *synth.Generator) process.Metrics {
	panic("singular matrix")
}

func TestSimulate_ModelFailureHasNoPartialResult(t *testing.T) {
	reg := DefaultRegistry()
	reg.Register(panickyModel{})
	sim, err := NewSimulator(reg, "", nil)
	require.NoError(t, err)

	res, err := sim.Simulate(context.Background(), Request{Parameters: scenarioA(t), Model: "panicky"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "singular matrix")
	assert.Equal(t, process.ExtractionResult{}, res)
	assert.Contains(t, sim.Models(), "panicky")
}

func TestCompare(t *testing.T) {
	sim := newTestSimulator(t)
	hot, err := process.NewParameters(2.5, 12, 1.8, 72, 2.3, process.CopperOxide)
	require.NoError(t, err)
	cheap, err := process.NewParameters(1.0, 4, 0.5, 30, 1.5, process.CopperOxide)
	require.NoError(t, err)

	cmp, err := sim.Compare(context.Background(), []Request{
		{Parameters: hot, Seed: seedPtr(5)},
		{Parameters: cheap, Seed: seedPtr(5)},
	})
	require.NoError(t, err)
	require.Len(t, cmp.Scenarios, 2)
	assert.Equal(t, "Scenario_1", cmp.BestForRecovery)
	assert.Equal(t, "Scenario_2", cmp.BestForCost)
	assert.Contains(t, cmp.Summary, "2 scenarios")

	_, err = sim.Compare(context.Background(), nil)
	assert.True(t, core.IsValidationError(err))

	_, err = sim.Compare(context.Background(), []Request{{Parameters: hot}, {Parameters: process.Parameters{Voltage: -1, LeachingTime: 1}}})
	require.Error(t, err)
	assert.Equal(t, "scenarios[1].voltage", core.FieldOf(err))
}

func TestRegistryAliases(t *testing.T) {
	reg := DefaultRegistry()
	for alias, want := range map[string]string{"RF": RandomForest, "neural-network": NeuralNetwork, "XGBoost": GradientBoosting} {
		m, err := reg.Get(alias)
		require.NoError(t, err, alias)
		assert.Equal(t, want, m.Name())
	}
	assert.Equal(t, []string{GradientBoosting, NeuralNetwork, RandomForest}, reg.Names())
}
