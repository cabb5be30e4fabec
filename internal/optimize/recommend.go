package optimize

import (
	"fmt"
	"math"
	"strings"

	"warpmine/domain/optimization"
	"warpmine/domain/process"
)

const (
	changeThreshold  = 0.05
	pilotImprovement = 20.0
)

var metricAdvice = map[string][]string{
	process.MetricRecovery: {
		"Monitor recovery rates closely during implementation",
		"Confirm acid consumption stays within budget at the new settings",
	},
	process.MetricPurity: {
		"Increase analytical testing frequency during optimization",
		"Ensure downstream processes can handle purity changes",
	},
	process.MetricCost: {
		"Implement cost tracking to verify savings",
		"Balance cost reduction with quality requirements",
	},
	process.MetricEnergy: {
		"Meter cell-house power draw before and after the change",
		"Check that lower energy settings do not reduce cathode quality",
	},
	process.MetricEfficiency: {
		"Monitor recovery rates closely during implementation",
		"Consider staged implementation to validate improvements",
	},
}

// Recommend stages the move from baseline to the best parameters: one step
// per parameter that changes by more than 5 %, then metric-specific and
// general advice, then a pilot warning for large projected gains.
func Recommend(baseline process.Parameters, r optimization.Result) []string {
	recs := parameterSteps(baseline, r.BestParameters)

	recs = append(recs, metricAdvice[r.Metric]...)
	recs = append(recs,
		"Implement changes gradually to assess individual impacts",
		"Establish monitoring protocols for key performance indicators")

	if r.ImprovementPct != nil && *r.ImprovementPct > pilotImprovement {
		recs = append(recs, "High improvement potential: consider pilot testing before full implementation")
	}
	if stoppedEarly(r.StopReason) {
		recs = append(recs, "Search stopped early; rerun with a larger time budget to confirm these settings")
	}
	return recs
}

// RecommendWeighted stages the move to the best compromise, reports how each
// metric shifts, and names what each trade-off solution gains and gives up
func RecommendWeighted(r optimization.WeightedResult) []string {
	recs := []string{"Weighted optimization complete (" + optimization.WeightText(r.Terms) + "); review the trade-offs before acting"}
	recs = append(recs, parameterSteps(r.Baseline, r.BestCompromise.Parameters)...)

	for _, t := range r.Terms {
		base, got := r.BaselineObjectives[t.Metric], r.BestCompromise.Objectives[t.Metric]
		recs = append(recs, fmt.Sprintf("%s moves from %.2f to %.2f (%s)",
			displayName(t.Metric), base, got, gainWord(t.Direction, base, got)))
	}

	for _, s := range r.TradeOffs {
		var lost []string
		for _, t := range r.Terms {
			if t.Metric == s.Focus {
				continue
			}
			if relativeGain(t.Direction, r.BestCompromise.Objectives[t.Metric], s.Objectives[t.Metric]) < 0 {
				lost = append(lost, displayName(t.Metric))
			}
		}
		line := fmt.Sprintf("Favoring %s reaches %.2f", displayName(s.Focus), s.Objectives[s.Focus])
		if len(lost) > 0 {
			line += " at the expense of " + strings.Join(lost, " and ")
		}
		recs = append(recs, line)
	}

	recs = append(recs,
		"Monitor all objectives during implementation to ensure balanced performance",
		"Adjust objective weights to match business priorities",
		"Validate the compromise and trade-off settings through pilot testing")
	if stoppedEarly(r.StopReason) {
		recs = append(recs, "Search stopped early; rerun with a larger time budget to confirm these settings")
	}
	return recs
}

func gainWord(d optimization.Direction, base, got float64) string {
	g := relativeGain(d, base, got)
	switch {
	case math.Abs(g) < 0.05:
		return "unchanged"
	case g > 0:
		return fmt.Sprintf("%.1f%% better", g)
	}
	return fmt.Sprintf("%.1f%% worse", -g)
}

func stoppedEarly(r optimization.StopReason) bool {
	return r == optimization.StopDeadline || r == optimization.StopCancelled
}

// parameterSteps lists one step per parameter that changes by more than 5 %
func parameterSteps(baseline, best process.Parameters) []string {
	var recs []string
	from, to := baseline.Vector(), best.Vector()
	for i, name := range process.Dimensions {
		orig, opt := from[i], to[i]
		if orig == 0 {
			if opt != 0 {
				recs = append(recs, fmt.Sprintf("Set %s to %.2f", displayName(name), opt))
			}
			continue
		}
		change := (opt - orig) / orig
		if math.Abs(change) <= changeThreshold {
			continue
		}
		verb := "Increase"
		if opt < orig {
			verb = "Decrease"
		}
		recs = append(recs, fmt.Sprintf("%s %s from %.2f to %.2f (%+.1f%% change)",
			verb, displayName(name), orig, opt, change*100))
	}
	return recs
}

func displayName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}
