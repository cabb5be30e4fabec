package exploration

import (
	"math"

	"warpmine/domain/geology"

	"github.com/montanaflynn/stats"
)

// Likelihood bands for follow-up actions
const (
	DrillThreshold  = 0.70
	SurveyThreshold = 0.40
)

// steepness of the logistic squashing around the 0.5 midpoint
const steepness = 8.0

// weights per target mineral, in Features.Values order:
// soil, structural, alteration, geophysical
var weights = map[geology.Mineral][]float64{
	geology.Copper: {0.30, 0.20, 0.35, 0.15},
	geology.Cobalt: {0.35, 0.30, 0.15, 0.20},
}

// Weights returns a copy of the indicator weights for a mineral
func Weights(m geology.Mineral) []float64 {
	w := weights[m]
	out := make([]float64, len(w))
	copy(out, w)
	return out
}

// Likelihood maps a feature vector to a prospectivity score in [0, 1].
// The weighted sum goes through a logistic centered on 0.5.
func Likelihood(f geology.Features, m geology.Mineral) float64 {
	w, ok := weights[m]
	if !ok {
		w = weights[geology.Copper]
	}
	sum := 0.0
	for i, v := range f.Values() {
		sum += w[i] * v
	}
	l := 1 / (1 + math.Exp(-steepness*(sum-0.5)))
	return math.Max(0, math.Min(1, l))
}

// Confidence derives a band from how much the indicators disagree. Four
// scores in [0, 1] have a population deviation of at most 0.5.
func Confidence(f geology.Features, likelihood float64) geology.ConfidenceBand {
	sd, err := stats.Float64Data(f.Values()).StandardDeviationPopulation()
	if err != nil || math.IsNaN(sd) {
		sd = 0.5
	}
	half := 0.05 + 0.25*math.Min(1, sd/0.5)

	level := geology.ConfidenceLow
	switch {
	case sd < 0.10:
		level = geology.ConfidenceHigh
	case sd < 0.20:
		level = geology.ConfidenceMedium
	}
	return geology.ConfidenceBand{
		Lower: round(math.Max(0, likelihood-half), 4),
		Upper: round(math.Min(1, likelihood+half), 4),
		Level: level,
	}
}

// ActionFor picks the follow-up for a likelihood
func ActionFor(likelihood float64) geology.Action {
	switch {
	case likelihood >= DrillThreshold:
		return geology.ActionDrill
	case likelihood >= SurveyThreshold:
		return geology.ActionSurveyFirst
	}
	return geology.ActionNone
}

const baseBudgetUSD = 50000.0

// budgetEstimate scales the base program cost by prospectivity and by
// sampling density relative to the 50-sample default
func budgetEstimate(likelihood float64, sampleCount int) float64 {
	var mult float64
	switch {
	case likelihood > 0.8:
		mult = 3
	case likelihood > 0.6:
		mult = 2
	case likelihood > 0.4:
		mult = 1.5
	default:
		mult = 0.5
	}
	density := math.Max(1, float64(sampleCount)/DefaultSampleCount)
	return math.Floor(baseBudgetUSD * mult * density)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
