package extraction

import (
	"context"
	"fmt"

	"warpmine/domain/core"
	"warpmine/domain/process"
)

// Scenario is one simulated alternative in a comparison
type Scenario struct {
	ID     string                   `json:"scenario_id"`
	Result process.ExtractionResult `json:"result"`
}

// Comparison names the best scenario for each headline metric
type Comparison struct {
	Scenarios       []Scenario `json:"scenarios"`
	BestForRecovery string     `json:"best_for_recovery"`
	BestForPurity   string     `json:"best_for_purity"`
	BestForCost     string     `json:"best_for_cost"`
	Summary         string     `json:"summary"`
}

// MaxScenarios bounds one comparison call
const MaxScenarios = 20

// Compare simulates every scenario and picks winners. Ties go to the earlier
// scenario. Any invalid scenario fails the whole comparison.
func (s *Simulator) Compare(ctx context.Context, reqs []Request) (Comparison, error) {
	if len(reqs) == 0 {
		return Comparison{}, core.NewValidationError("scenarios", "at least one scenario is required")
	}
	if len(reqs) > MaxScenarios {
		return Comparison{}, core.NewValidationError("scenarios",
			fmt.Sprintf("at most %d scenarios per comparison, got %d", MaxScenarios, len(reqs)))
	}

	out := Comparison{Scenarios: make([]Scenario, 0, len(reqs))}
	models := map[string]struct{}{}
	for i, req := range reqs {
		res, err := s.Simulate(ctx, req)
		if err != nil {
			return Comparison{}, prefixField(err, fmt.Sprintf("scenarios[%d]", i))
		}
		models[res.Model] = struct{}{}
		out.Scenarios = append(out.Scenarios, Scenario{ID: fmt.Sprintf("Scenario_%d", i+1), Result: res})
	}

	best := func(better func(a, b process.ExtractionResult) bool) string {
		winner := out.Scenarios[0]
		for _, sc := range out.Scenarios[1:] {
			if better(sc.Result, winner.Result) {
				winner = sc
			}
		}
		return winner.ID
	}
	out.BestForRecovery = best(func(a, b process.ExtractionResult) bool { return a.RecoveryRate > b.RecoveryRate })
	out.BestForPurity = best(func(a, b process.ExtractionResult) bool { return a.Purity > b.Purity })
	out.BestForCost = best(func(a, b process.ExtractionResult) bool { return a.ProcessingCost < b.ProcessingCost })
	out.Summary = fmt.Sprintf("Analyzed %d scenarios using %d model(s)", len(reqs), len(models))
	return out, nil
}

func prefixField(err error, prefix string) error {
	fe, ok := err.(*core.FieldError)
	if !ok {
		return err
	}
	return &core.FieldError{Field: prefix + "." + fe.Field, Reason: fe.Reason, Err: fe.Err}
}
