package optimization

import (
	"fmt"
	"math"
	"strings"

	"warpmine/domain/core"
	"warpmine/domain/process"
)

// MetricWeighted is the Problem.Metric of a resolved WeightedSpec
const MetricWeighted = "weighted"

// WeightedSpec combines several metrics into one compromise objective.
// Empty Weights means equal weights; weights are normalized to sum to one.
type WeightedSpec struct {
	Metrics     []string            `json:"metrics"`
	Weights     []float64           `json:"weights,omitempty"`
	Bounds      map[string]Bound    `json:"bounds,omitempty"`
	MineralType process.MineralType `json:"mineral_type,omitempty"`
}

// Term is one weighted metric. Direction is the metric's natural direction.
type Term struct {
	Metric    string    `json:"metric"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
}

// Resolve validates the spec. The returned problem maximizes the weighted
// score over the same bounds a single-metric objective would search.
func (s WeightedSpec) Resolve() (Problem, []Term, error) {
	if len(s.Metrics) < 2 {
		return Problem{}, nil, core.NewSpecError(core.ErrInvalidSpec, "objective.metrics",
			fmt.Sprintf("need at least two metrics, got %d", len(s.Metrics)))
	}
	weights := s.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(s.Metrics))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(s.Metrics) {
		return Problem{}, nil, core.NewSpecError(core.ErrInvalidWeights, "objective.weights",
			fmt.Sprintf("got %d weights for %d metrics", len(weights), len(s.Metrics)))
	}

	var problem Problem
	terms := make([]Term, 0, len(s.Metrics))
	seen := make(map[string]bool, len(s.Metrics))
	sum := 0.0
	for i, raw := range s.Metrics {
		p, err := ObjectiveSpec{Metric: raw, Bounds: s.Bounds, MineralType: s.MineralType}.Resolve()
		if err != nil {
			if core.FieldOf(err) == "objective.metric" {
				return Problem{}, nil, core.NewSpecError(core.ErrUnknownMetric,
					fmt.Sprintf("objective.metrics[%d]", i), fmt.Sprintf("%q is not a known metric", raw))
			}
			return Problem{}, nil, err
		}
		if seen[p.Metric] {
			return Problem{}, nil, core.NewSpecError(core.ErrInvalidSpec,
				fmt.Sprintf("objective.metrics[%d]", i), fmt.Sprintf("%q is listed twice", p.Metric))
		}
		seen[p.Metric] = true

		w := weights[i]
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return Problem{}, nil, core.NewSpecError(core.ErrInvalidWeights,
				fmt.Sprintf("objective.weights[%d]", i), fmt.Sprintf("weight %g must be a finite non-negative number", w))
		}
		sum += w
		terms = append(terms, Term{Metric: p.Metric, Direction: p.Direction, Weight: w})
		problem = p
	}
	if sum <= 0 {
		return Problem{}, nil, core.NewSpecError(core.ErrInvalidWeights, "objective.weights", "weights must not all be zero")
	}
	for i := range terms {
		terms[i].Weight /= sum
	}

	problem.Metric = MetricWeighted
	problem.Direction = Maximize
	return problem, terms, nil
}

// Emphasize shifts half of the weight onto terms[i]. The result still sums
// to one.
func Emphasize(terms []Term, i int) []Term {
	out := make([]Term, len(terms))
	for j, t := range terms {
		t.Weight *= 0.5
		if j == i {
			t.Weight += 0.5
		}
		out[j] = t
	}
	return out
}

// Solution is one searched compromise. Objectives holds the raw metric
// values; Score is the weighted relative gain over the baseline in percent.
type Solution struct {
	Focus      string             `json:"focus,omitempty"`
	Weights    map[string]float64 `json:"weights"`
	Parameters process.Parameters `json:"parameters"`
	Objectives map[string]float64 `json:"objectives"`
	Score      float64            `json:"score"`
}

// WeightedResult is the outcome of a weighted multi-metric optimization.
// TradeOffs holds one solution per metric with extra weight on that metric.
type WeightedResult struct {
	Algorithm          string             `json:"algorithm"`
	Terms              []Term             `json:"terms"`
	Baseline           process.Parameters `json:"baseline"`
	BaselineObjectives map[string]float64 `json:"baseline_objectives"`
	BestCompromise     Solution           `json:"best_compromise"`
	TradeOffs          []Solution         `json:"trade_offs"`
	History            []ConvergencePoint `json:"history"`
	Iterations         int                `json:"iterations"`
	Evaluations        int                `json:"evaluations"`
	StopReason         StopReason         `json:"stop_reason"`
	Recommendations    []string           `json:"recommendations"`
	Seed               int64              `json:"seed"`
	Model              string             `json:"model,omitempty"`
}

// WeightText renders terms as "recovery 0.60, cost 0.40"
func WeightText(terms []Term) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = fmt.Sprintf("%s %.2f", t.Metric, t.Weight)
	}
	return strings.Join(parts, ", ")
}
