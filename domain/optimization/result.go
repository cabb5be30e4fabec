package optimization

import (
	"fmt"
	"strings"

	"warpmine/domain/core"
	"warpmine/domain/process"
)

// Algorithm names
const (
	Genetic               = "genetic"
	ParticleSwarm         = "particle_swarm"
	SimulatedAnnealing    = "simulated_annealing"
	DifferentialEvolution = "differential_evolution"
)

var algorithmAliases = map[string]string{
	"genetic":                Genetic,
	"genetic_algorithm":      Genetic,
	"ga":                     Genetic,
	"particle_swarm":         ParticleSwarm,
	"pso":                    ParticleSwarm,
	"swarm":                  ParticleSwarm,
	"simulated_annealing":    SimulatedAnnealing,
	"annealing":              SimulatedAnnealing,
	"sa":                     SimulatedAnnealing,
	"differential_evolution": DifferentialEvolution,
	"de":                     DifferentialEvolution,
}

// Algorithms lists the canonical names
func Algorithms() []string {
	return []string{Genetic, ParticleSwarm, SimulatedAnnealing, DifferentialEvolution}
}

// CanonicalAlgorithm maps an alias to its canonical name
func CanonicalAlgorithm(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if canon, ok := algorithmAliases[key]; ok {
		return canon, nil
	}
	return "", core.NewSpecError(core.ErrUnknownAlgorithm, "algorithm",
		fmt.Sprintf("%q is not one of %s", name, strings.Join(Algorithms(), ", ")))
}

// StopReason explains why a run ended
type StopReason string

const (
	StopConverged       StopReason = "converged"
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopDeadline        StopReason = "deadline"
	StopCancelled       StopReason = "cancelled"
)

// ConvergencePoint is the best value after one iteration, in caller direction
type ConvergencePoint struct {
	Iteration int     `json:"iteration"`
	BestValue float64 `json:"best_value"`
}

// Result is the outcome of one optimization run
type Result struct {
	BestParameters  process.Parameters `json:"best_parameters"`
	BestValue       float64            `json:"best_value"`
	History         []ConvergencePoint `json:"history"`
	Algorithm       string             `json:"algorithm"`
	Recommendations []string           `json:"recommendations"`
	Metric          string             `json:"metric"`
	Direction       Direction          `json:"direction"`
	Iterations      int                `json:"iterations"`
	Evaluations     int                `json:"evaluations"`
	StopReason      StopReason         `json:"stop_reason"`
	BaselineValue   *float64           `json:"baseline_value,omitempty"`
	ImprovementPct  *float64           `json:"improvement_pct,omitempty"`
	Seed            int64              `json:"seed"`
	Model           string             `json:"model,omitempty"`
}

// Better reports whether a beats b under direction d
func Better(d Direction, a, b float64) bool {
	if d == Maximize {
		return a > b
	}
	return a < b
}
