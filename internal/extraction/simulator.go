// Package extraction simulates leach/electrowinning performance from process
// parameters using interchangeable regression-style models.
package extraction

import (
	"context"
	"fmt"
	"math"

	"warpmine/domain/process"
	"warpmine/internal"
	"warpmine/internal/synth"

	"go.uber.org/zap"
)

// noiseSigmas is how many standard deviations the noise envelope spans
const noiseSigmas = 3.0

// Request is one simulation call. A nil Seed draws a fresh one.
type Request struct {
	Parameters process.Parameters `json:"parameters"`
	Model      string             `json:"model_name,omitempty"`
	Seed       *int64             `json:"seed,omitempty"`
}

// Simulator is stateless and safe for concurrent use
type Simulator struct {
	registry     *Registry
	defaultModel string
	logger       *zap.Logger
}

// NewSimulator creates a simulator. An empty defaultModel selects by ore path.
func NewSimulator(registry *Registry, defaultModel string, logger *zap.Logger) (*Simulator, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if defaultModel != "" {
		m, err := registry.Get(defaultModel)
		if err != nil {
			return nil, fmt.Errorf("default extraction model: %w", err)
		}
		defaultModel = m.Name()
	}
	return &Simulator{
		registry:     registry,
		defaultModel: defaultModel,
		logger:       internal.OrNop(logger).Named("extraction"),
	}, nil
}

// Models lists the registered model names
func (s *Simulator) Models() []string {
	return s.registry.Names()
}

// ModelName resolves which model a request would use for the given ore path
func (s *Simulator) ModelName(name string, mineral process.MineralType) (string, error) {
	m, err := s.selectModel(name, process.Parameters{MineralType: mineral})
	if err != nil {
		return "", err
	}
	return m.Name(), nil
}

func (s *Simulator) selectModel(name string, p process.Parameters) (Model, error) {
	switch {
	case name != "":
		return s.registry.Get(name)
	case s.defaultModel != "":
		return s.registry.Get(s.defaultModel)
	}
	return s.registry.Get(DefaultModelFor(p.MineralType))
}

// Simulate runs one model over the parameters. Validation and unknown models
// fail before any computation; a model failure yields no partial result.
func (s *Simulator) Simulate(ctx context.Context, req Request) (process.ExtractionResult, error) {
	if err := ctx.Err(); err != nil {
		return process.ExtractionResult{}, err
	}

	params, err := req.Parameters.Normalize()
	if err != nil {
		return process.ExtractionResult{}, err
	}
	model, err := s.selectModel(req.Model, params)
	if err != nil {
		return process.ExtractionResult{}, err
	}

	seed := synth.ResolveSeed(req.Seed)
	g := synth.New(seed)

	raw, err := evaluate(model, params, g.Fork("model"))
	if err != nil {
		s.logger.Error("extraction model failed",
			zap.String("model", model.Name()), zap.Int64("seed", seed), zap.Error(err))
		return process.ExtractionResult{}, err
	}

	noise := g.Fork("noise")
	sigma := (1 - model.Accuracy()) * 10
	recovery := clamp(raw.Recovery+noise.BoundedNoise(sigma, noiseSigmas), 0, 100)
	purity := clamp(raw.Purity+noise.BoundedNoise(sigma/2, noiseSigmas), 0, 100)
	cost := math.Max(0, raw.Cost*(1+noise.BoundedNoise(sigma, noiseSigmas)/100))
	energy := math.Max(0, raw.Energy*(1+noise.BoundedNoise(sigma, noiseSigmas)/100))
	hours := processingTime(params)

	result := process.ExtractionResult{
		RecoveryRate:      round(recovery, 3),
		Purity:            round(purity, 3),
		ProcessingCost:    round(cost, 3),
		EnergyConsumption: round(energy, 3),
		OverallEfficiency: round(clamp(recovery*purity/100, 0, 100), 3),
		ProcessingTime:    round(hours, 3),
		Throughput:        round(throughput(params, hours), 3),
		Model:             model.Name(),
		ModelAccuracy:     model.Accuracy(),
		SyntheticSamples:  model.Samples(),
		Seed:              seed,
		Parameters:        params,
	}
	result.Recommendations = Recommend(params, result)

	s.logger.Debug("extraction simulated",
		zap.String("model", result.Model),
		zap.Int64("seed", seed),
		zap.Float64("recovery", result.RecoveryRate),
		zap.Float64("purity", result.Purity))
	return result, nil
}

// evaluate runs the model, converting panics and non-finite output to errors
func evaluate(m Model, p process.Parameters, g *synth.Generator) (out process.Metrics, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model %s panicked: %v", m.Name(), r)
		}
	}()
	out = m.Evaluate(p, g)
	for _, v := range []float64{out.Recovery, out.Purity, out.Cost, out.Energy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return process.Metrics{}, fmt.Errorf("model %s produced a non-finite output", m.Name())
		}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
