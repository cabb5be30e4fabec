package optimize

import (
	"context"
	"fmt"
	"math"
	"time"

	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal/extraction"
	"warpmine/internal/synth"

	"go.uber.org/zap"
)

// MetricsFunc reports every named metric for one operating point
type MetricsFunc func(ctx context.Context, p process.Parameters) (map[string]float64, error)

// WeightedRequest is one weighted multi-metric optimization call. A nil
// Func reads metrics from the extraction simulator.
type WeightedRequest struct {
	Objective optimization.WeightedSpec           `json:"objective"`
	Algorithm string                              `json:"algorithm,omitempty"`
	Config    optimization.Config                 `json:"config"`
	Baseline  *process.Parameters                 `json:"baseline,omitempty"`
	Model     string                              `json:"model_name,omitempty"`
	Func      MetricsFunc                         `json:"-"`
	Progress  func(optimization.ConvergencePoint) `json:"-"`
}

// OptimizeWeighted searches for the best compromise between several metrics.
// Each metric is scored as its relative gain over the baseline in its own
// direction, so metrics on different scales weigh as requested. After the
// compromise search, one shorter search per metric shifts half the weight
// onto that metric to show the trade-offs. The wall-clock budget is shared
// across all searches.
func (e *Engine) OptimizeWeighted(ctx context.Context, req WeightedRequest) (optimization.WeightedResult, error) {
	problem, terms, err := req.Objective.Resolve()
	if err != nil {
		return optimization.WeightedResult{}, err
	}
	algo := optimization.Genetic
	if req.Algorithm != "" || e.defaultAlgorithm != "" {
		if algo, err = e.selectAlgorithm(req.Algorithm, problem.Metric); err != nil {
			return optimization.WeightedResult{}, err
		}
	}
	cfg, err := req.Config.WithDefaults(e.base)
	if err != nil {
		return optimization.WeightedResult{}, err
	}
	baseline, err := resolveBaseline(req.Baseline, problem.MineralType)
	if err != nil {
		return optimization.WeightedResult{}, err
	}

	seed := synth.ResolveSeed(cfg.Seed)
	model := ""
	measure := req.Func
	if measure == nil {
		model, err = e.sim.ModelName(req.Model, problem.MineralType)
		if err != nil {
			return optimization.WeightedResult{}, err
		}
		measure = e.extractionMetrics(terms, model, seed)
	}

	reference, err := measure(ctx, baseline)
	if err != nil {
		return optimization.WeightedResult{}, fmt.Errorf("baseline metrics: %w", err)
	}
	for _, t := range terms {
		if _, ok := reference[t.Metric]; !ok {
			return optimization.WeightedResult{}, fmt.Errorf("baseline metrics: %q missing", t.Metric)
		}
	}

	runs := len(terms) + 1
	each := cfg
	if cfg.MaxDuration > 0 {
		each.MaxDuration = cfg.MaxDuration / time.Duration(runs)
	}
	start := time.Now()

	run := func(weights []optimization.Term, label string, progress func(optimization.ConvergencePoint)) (Outcome, error) {
		score := weightedScore(weights, reference, measure)
		vec := func(ctx context.Context, x []float64) (float64, error) {
			p, err := process.FromVector(x, problem.MineralType)
			if err != nil {
				return 0, err
			}
			return score(ctx, p)
		}
		g := synth.New(seed).Fork(algo + "/" + label)
		return Search(ctx, problem, vec, strategies[algo](), each, g, progress)
	}

	out, err := run(terms, "compromise", req.Progress)
	if err != nil {
		e.logger.Error("weighted optimization failed",
			zap.String("algorithm", algo), zap.Int64("seed", seed), zap.Error(err))
		return optimization.WeightedResult{}, err
	}
	best, err := newSolution(ctx, "", terms, out, reference, measure, problem.MineralType)
	if err != nil {
		return optimization.WeightedResult{}, err
	}

	res := optimization.WeightedResult{
		Algorithm:          algo,
		Terms:              roundTerms(terms),
		Baseline:           baseline,
		BaselineObjectives: roundMap(reference),
		BestCompromise:     best,
		History:            out.History,
		Iterations:         out.Iterations,
		Evaluations:        out.Evaluations,
		StopReason:         out.Stop,
		Seed:               seed,
		Model:              model,
	}
	for i := range res.History {
		res.History[i].BestValue = round(res.History[i].BestValue, 4)
	}

	for i, t := range terms {
		if ctx.Err() != nil {
			break
		}
		focus := optimization.Emphasize(terms, i)
		o, err := run(focus, t.Metric, nil)
		if err != nil {
			e.logger.Warn("trade-off search failed", zap.String("metric", t.Metric), zap.Error(err))
			continue
		}
		sol, err := newSolution(ctx, t.Metric, focus, o, reference, measure, problem.MineralType)
		if err != nil {
			continue
		}
		res.Evaluations += o.Evaluations
		res.TradeOffs = append(res.TradeOffs, sol)
	}
	res.Recommendations = RecommendWeighted(res)

	e.logger.Info("weighted optimization finished",
		zap.String("algorithm", algo),
		zap.String("weights", optimization.WeightText(res.Terms)),
		zap.Int("trade_offs", len(res.TradeOffs)),
		zap.Int("evaluations", res.Evaluations),
		zap.String("stop_reason", string(res.StopReason)),
		zap.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000))
	return res, nil
}

func newSolution(ctx context.Context, focus string, terms []optimization.Term, out Outcome, reference map[string]float64, measure MetricsFunc, m process.MineralType) (optimization.Solution, error) {
	p, err := process.FromVector(out.Best, m)
	if err != nil {
		return optimization.Solution{}, fmt.Errorf("best candidate: %w", err)
	}
	values, err := measure(ctx, p)
	if err != nil {
		return optimization.Solution{}, fmt.Errorf("best candidate metrics: %w", err)
	}
	weights := make(map[string]float64, len(terms))
	objectives := make(map[string]float64, len(terms))
	for _, t := range terms {
		weights[t.Metric] = round(t.Weight, 4)
		objectives[t.Metric] = round(values[t.Metric], 4)
	}
	return optimization.Solution{
		Focus:      focus,
		Weights:    weights,
		Parameters: p,
		Objectives: objectives,
		Score:      round(out.BestValue, 4),
	}, nil
}

func (e *Engine) extractionMetrics(terms []optimization.Term, model string, seed int64) MetricsFunc {
	return func(ctx context.Context, p process.Parameters) (map[string]float64, error) {
		r, err := e.sim.Simulate(ctx, extraction.Request{Parameters: p, Model: model, Seed: &seed})
		if err != nil {
			return nil, err
		}
		values := make(map[string]float64, len(terms))
		for _, t := range terms {
			v, ok := r.Metric(t.Metric)
			if !ok {
				return nil, fmt.Errorf("unknown metric %q", t.Metric)
			}
			values[t.Metric] = v
		}
		return values, nil
	}
}

// weightedScore is the weighted sum of each metric's gain over reference in
// percent, positive when the metric moves in its own direction
func weightedScore(terms []optimization.Term, reference map[string]float64, measure MetricsFunc) ParameterObjective {
	return func(ctx context.Context, p process.Parameters) (float64, error) {
		values, err := measure(ctx, p)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for _, t := range terms {
			v, ok := values[t.Metric]
			if !ok {
				return 0, fmt.Errorf("metric %q missing", t.Metric)
			}
			total += t.Weight * relativeGain(t.Direction, reference[t.Metric], v)
		}
		return total, nil
	}
}

func relativeGain(d optimization.Direction, base, v float64) float64 {
	scale := math.Abs(base)
	if scale < 1e-9 {
		scale = 1
	}
	gain := v - base
	if d == optimization.Minimize {
		gain = base - v
	}
	return gain / scale * 100
}

func roundTerms(terms []optimization.Term) []optimization.Term {
	out := make([]optimization.Term, len(terms))
	for i, t := range terms {
		t.Weight = round(t.Weight, 4)
		out[i] = t
	}
	return out
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round(v, 4)
	}
	return out
}
