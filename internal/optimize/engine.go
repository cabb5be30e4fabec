package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"warpmine/domain/core"
	"warpmine/domain/intent"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal"
	"warpmine/internal/extraction"
	"warpmine/internal/synth"

	"go.uber.org/zap"
)

// ParameterObjective scores a full parameter set in the caller's direction
type ParameterObjective func(ctx context.Context, p process.Parameters) (float64, error)

// Request is one optimization call. A nil Func optimizes the extraction
// simulator's output for Objective.Metric. A nil Baseline compares against
// the documented default operating point.
type Request struct {
	Objective optimization.ObjectiveSpec          `json:"objective"`
	Algorithm string                              `json:"algorithm,omitempty"`
	Config    optimization.Config                 `json:"config"`
	Baseline  *process.Parameters                 `json:"baseline,omitempty"`
	Model     string                              `json:"model_name,omitempty"`
	Func      ParameterObjective                  `json:"-"`
	// Progress is called from the search goroutine after every iteration
	Progress  func(optimization.ConvergencePoint) `json:"-"`
}

var strategies = map[string]func() Strategy{
	optimization.Genetic:               newGenetic,
	optimization.ParticleSwarm:         newParticleSwarm,
	optimization.SimulatedAnnealing:    newSimulatedAnnealing,
	optimization.DifferentialEvolution: newDifferentialEvolution,
}

// Engine runs optimization requests. It is stateless and safe for
// concurrent use.
type Engine struct {
	sim              *extraction.Simulator
	base             optimization.Config
	defaultAlgorithm string
	logger           *zap.Logger
}

// NewEngine creates an engine. base supplies config defaults and the
// wall-clock cap; an empty defaultAlgorithm selects by metric.
func NewEngine(sim *extraction.Simulator, base optimization.Config, defaultAlgorithm string, logger *zap.Logger) (*Engine, error) {
	if sim == nil {
		return nil, fmt.Errorf("optimization engine needs an extraction simulator")
	}
	if defaultAlgorithm != "" {
		canon, err := optimization.CanonicalAlgorithm(defaultAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("default optimization algorithm: %w", err)
		}
		defaultAlgorithm = canon
	}
	return &Engine{
		sim:              sim,
		base:             base,
		defaultAlgorithm: defaultAlgorithm,
		logger:           internal.OrNop(logger).Named("optimize"),
	}, nil
}

func (e *Engine) selectAlgorithm(name, metric string) (string, error) {
	switch {
	case name != "":
		return optimization.CanonicalAlgorithm(name)
	case e.defaultAlgorithm != "":
		return e.defaultAlgorithm, nil
	case metric == process.MetricCost:
		return optimization.SimulatedAnnealing, nil
	}
	return optimization.ParticleSwarm, nil
}

// Optimize validates the request, runs the search and reports the best
// point. Spec errors are returned before any candidate is evaluated.
func (e *Engine) Optimize(ctx context.Context, req Request) (optimization.Result, error) {
	problem, err := req.Objective.Resolve()
	if err != nil {
		return optimization.Result{}, err
	}
	algo, err := e.selectAlgorithm(req.Algorithm, problem.Metric)
	if err != nil {
		return optimization.Result{}, err
	}
	cfg, err := req.Config.WithDefaults(e.base)
	if err != nil {
		return optimization.Result{}, err
	}

	baseline, err := resolveBaseline(req.Baseline, problem.MineralType)
	if err != nil {
		return optimization.Result{}, err
	}

	seed := synth.ResolveSeed(cfg.Seed)
	model := ""
	objective := req.Func
	if objective == nil {
		model, err = e.sim.ModelName(req.Model, problem.MineralType)
		if err != nil {
			return optimization.Result{}, err
		}
		objective = e.extractionObjective(problem.Metric, model, seed)
	}

	vectorObjective := func(ctx context.Context, x []float64) (float64, error) {
		p, err := process.FromVector(x, problem.MineralType)
		if err != nil {
			return 0, err
		}
		return objective(ctx, p)
	}

	start := time.Now()
	g := synth.New(seed).Fork(algo)
	out, err := Search(ctx, problem, vectorObjective, strategies[algo](), cfg, g, req.Progress)
	if err != nil {
		e.logger.Error("optimization failed",
			zap.String("algorithm", algo), zap.Int64("seed", seed), zap.Error(err))
		return optimization.Result{}, err
	}

	best, err := process.FromVector(out.Best, problem.MineralType)
	if err != nil {
		return optimization.Result{}, fmt.Errorf("best candidate: %w", err)
	}
	res := optimization.Result{
		BestParameters: best,
		BestValue:      round(out.BestValue, 4),
		History:        out.History,
		Algorithm:      algo,
		Metric:         problem.Metric,
		Direction:      problem.Direction,
		Iterations:     out.Iterations,
		Evaluations:    out.Evaluations,
		StopReason:     out.Stop,
		Seed:           seed,
		Model:          model,
	}
	for i := range res.History {
		res.History[i].BestValue = round(res.History[i].BestValue, 4)
	}

	if v, err := safeObjective(ctx, objective, baseline); err == nil {
		bv := round(v, 4)
		res.BaselineValue = &bv
		if pct, ok := improvementPct(problem.Direction, v, out.BestValue); ok {
			pct = round(pct, 2)
			res.ImprovementPct = &pct
		}
	}
	res.Recommendations = Recommend(baseline, res)

	e.logger.Info("optimization finished",
		zap.String("algorithm", algo),
		zap.String("metric", problem.Metric),
		zap.Int("iterations", res.Iterations),
		zap.Int("evaluations", res.Evaluations),
		zap.String("stop_reason", string(res.StopReason)),
		zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
	return res, nil
}

func (e *Engine) extractionObjective(metric, model string, seed int64) ParameterObjective {
	return func(ctx context.Context, p process.Parameters) (float64, error) {
		r, err := e.sim.Simulate(ctx, extraction.Request{Parameters: p, Model: model, Seed: &seed})
		if err != nil {
			return 0, err
		}
		v, ok := r.Metric(metric)
		if !ok {
			return 0, fmt.Errorf("unknown metric %q", metric)
		}
		return v, nil
	}
}

func safeObjective(ctx context.Context, f ParameterObjective, p process.Parameters) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("objective panicked: %v", r)
		}
	}()
	v, err = f(ctx, p)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = fmt.Errorf("objective returned %g", v)
	}
	return v, err
}

// improvementPct is the relative gain of best over base in the search
// direction. It is undefined for a zero baseline.
func improvementPct(d optimization.Direction, base, best float64) (float64, bool) {
	if base == 0 {
		return 0, false
	}
	gain := best - base
	if d == optimization.Minimize {
		gain = base - best
	}
	return gain / math.Abs(base) * 100, true
}

// resolveBaseline normalizes the caller's baseline, or falls back to the
// default operating point
func resolveBaseline(b *process.Parameters, m process.MineralType) (process.Parameters, error) {
	if b == nil {
		return defaultBaseline(m), nil
	}
	p := *b
	if p.MineralType == "" {
		p.MineralType = m
	}
	p, err := p.Normalize()
	if err != nil {
		return process.Parameters{}, prefixed("baseline", err)
	}
	return p, nil
}

// defaultBaseline is the documented default operating point; it is always valid
func defaultBaseline(m process.MineralType) process.Parameters {
	p, _ := process.NewParameters(
		intent.DefaultOreGrade, intent.DefaultLeachingTime, intent.DefaultAcidConcentration,
		intent.DefaultTemperature, intent.DefaultVoltage, m)
	return p
}

func prefixed(prefix string, err error) error {
	var fe *core.FieldError
	if !errors.As(err, &fe) {
		return err
	}
	return &core.FieldError{Field: prefix + "." + fe.Field, Reason: fe.Reason, Err: fe.Err}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
