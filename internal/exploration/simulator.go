// Package exploration scores regions for mineral prospectivity and ranks
// them into a drilling priority list.
package exploration

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/internal"
	"warpmine/internal/synth"

	"go.uber.org/zap"
)

const (
	// DemoSeed seeds the synthesized default regions
	DemoSeed int64 = 42
	// DefaultSampleCount is the soil samples aggregated per synthesized region
	DefaultSampleCount = 50
	// MaxSampleCount bounds synthesis work per region
	MaxSampleCount = 10000
	// DefaultMaxDepthM is the assumed sampling depth when none is given
	DefaultMaxDepthM = 200.0
)

// demoRegions are the synthesized default regions and their mean indicator level
var demoRegions = []struct {
	id   core.RegionID
	mean float64
}{
	{"Region_A", 0.60},
	{"Region_B", 0.40},
	{"Region_C", 0.50},
	{"Region_D", 0.30},
}

// featureOffsets shift each indicator around the region mean so the
// synthesized vectors are not flat
var featureOffsets = []float64{0.02, -0.04, 0.05, -0.03}

const demoSpread = 0.15

// Request is one analysis call. Empty Regions synthesizes the demo set.
type Request struct {
	Regions       []geology.RegionProfile `json:"regions,omitempty"`
	TargetMineral string                  `json:"target_mineral,omitempty"`
	Seed          *int64                  `json:"seed,omitempty"`
	SampleCount   int                     `json:"sample_count,omitempty"`
	MaxDepthM     float64                 `json:"max_depth_m,omitempty"`
}

// Simulator is stateless and safe for concurrent use
type Simulator struct {
	logger *zap.Logger
}

// NewSimulator creates an exploration simulator
func NewSimulator(logger *zap.Logger) *Simulator {
	return &Simulator{logger: internal.OrNop(logger).Named("exploration")}
}

// Analyze scores and ranks every region. Ranking is by descending
// likelihood with ties broken by region id ascending.
func (s *Simulator) Analyze(ctx context.Context, req Request) (geology.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return geology.Analysis{}, err
	}

	mineral, err := geology.ParseMineral(req.TargetMineral)
	if err != nil {
		return geology.Analysis{}, err
	}
	samples := req.SampleCount
	switch {
	case samples < 0 || samples > MaxSampleCount:
		return geology.Analysis{}, core.NewValidationError("sample_count",
			fmt.Sprintf("must be within [1, %d], got %d", MaxSampleCount, samples))
	case samples == 0:
		samples = DefaultSampleCount
	}
	depth := req.MaxDepthM
	switch {
	case depth < 0 || math.IsNaN(depth) || math.IsInf(depth, 0):
		return geology.Analysis{}, core.NewValidationError("max_depth_m", "must be a positive depth in meters")
	case depth == 0:
		depth = DefaultMaxDepthM
	}

	analysis := geology.Analysis{TargetMineral: mineral}
	var profiles []geology.RegionProfile
	if len(req.Regions) == 0 {
		seed := DemoSeed
		if req.Seed != nil {
			seed = *req.Seed
		}
		profiles, err = Synthesize(seed, samples)
		if err != nil {
			return geology.Analysis{}, err
		}
		analysis.Seed = seed
		analysis.Synthesized = true
	} else {
		profiles, err = geology.NormalizeProfiles(req.Regions)
		if err != nil {
			return geology.Analysis{}, err
		}
	}

	results := make(geology.RankedResults, 0, len(profiles))
	for _, p := range profiles {
		l := round(Likelihood(p.Features, mineral), 4)
		action := ActionFor(l)
		results = append(results, geology.ProspectivityResult{
			RegionID:          p.RegionID,
			Likelihood:        l,
			Confidence:        Confidence(p.Features, l),
			Action:            action,
			Recommendation:    regionRecommendation(action, mineral),
			BudgetEstimateUSD: budgetEstimate(l, samples),
			Features:          p.Features,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Likelihood != results[j].Likelihood {
			return results[i].Likelihood > results[j].Likelihood
		}
		return results[i].RegionID < results[j].RegionID
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	analysis.Regions = results
	analysis.Ranking = results.IDs()
	analysis.Summary = summarize(results, mineral)
	analysis.Recommendations = campaignRecommendations(results, mineral, samples, depth)

	s.logger.Debug("exploration analyzed",
		zap.String("mineral", string(mineral)),
		zap.Int("regions", len(results)),
		zap.Bool("synthesized", analysis.Synthesized))
	return analysis, nil
}

// Synthesize builds the four demo regions. Each indicator is the mean of
// sampleCount clipped normal draws, from a per-region stream of seed.
func Synthesize(seed int64, sampleCount int) ([]geology.RegionProfile, error) {
	g := synth.New(seed)
	out := make([]geology.RegionProfile, 0, len(demoRegions))
	for _, r := range demoRegions {
		rg := g.Fork(string(r.id))
		vals := make([]float64, len(featureOffsets))
		for i, off := range featureOffsets {
			draws := rg.Sample(synth.Attribute{
				Name:   fmt.Sprintf("%s.%d", r.id, i),
				Mean:   r.mean + off,
				StdDev: demoSpread,
				Min:    0,
				Max:    1,
			}, sampleCount)
			sum, err := synth.Summarize(draws)
			if err != nil {
				return nil, fmt.Errorf("synthesize %s: %w", r.id, err)
			}
			vals[i] = round(sum.Mean, 4)
		}
		out = append(out, geology.RegionProfile{
			RegionID: r.id,
			Features: geology.Features{
				SoilAnomalyIndex:       vals[0],
				StructuralControlScore: vals[1],
				AlterationIndex:        vals[2],
				GeophysicalSignature:   vals[3],
			},
		})
	}
	return out, nil
}

func regionRecommendation(a geology.Action, m geology.Mineral) string {
	switch a {
	case geology.ActionDrill:
		return fmt.Sprintf("Immediate drilling program: high %s potential", m)
	case geology.ActionSurveyFirst:
		return "Detailed geochemical survey and geophysics before drilling"
	}
	return ""
}

func idsWith(results geology.RankedResults, a geology.Action) []string {
	var ids []string
	for _, r := range results {
		if r.Action == a {
			ids = append(ids, string(r.RegionID))
		}
	}
	return ids
}

func summarize(results geology.RankedResults, m geology.Mineral) string {
	if len(results) == 0 {
		return fmt.Sprintf("No regions supplied for %s prospectivity analysis", m)
	}
	best, worst := results[0], results[len(results)-1]
	var b strings.Builder
	fmt.Fprintf(&b, "Prospectivity analysis for %s across %d region(s). ", m, len(results))
	fmt.Fprintf(&b, "Highest: %s (%.1f%%). Lowest: %s (%.1f%%).",
		best.RegionID, best.Likelihood*100, worst.RegionID, worst.Likelihood*100)
	if ids := idsWith(results, geology.ActionDrill); len(ids) > 0 {
		fmt.Fprintf(&b, " High priority: %s.", strings.Join(ids, ", "))
	}
	if ids := idsWith(results, geology.ActionSurveyFirst); len(ids) > 0 {
		fmt.Fprintf(&b, " Moderate priority: %s.", strings.Join(ids, ", "))
	}
	if ids := idsWith(results, geology.ActionNone); len(ids) > 0 {
		fmt.Fprintf(&b, " Low priority: %s.", strings.Join(ids, ", "))
	}
	return b.String()
}

func campaignRecommendations(results geology.RankedResults, m geology.Mineral, samples int, depth float64) []string {
	var recs []string
	if ids := idsWith(results, geology.ActionDrill); len(ids) > 0 {
		recs = append(recs, fmt.Sprintf("Recommend immediate drilling in %s: high %s potential", strings.Join(ids, ", "), m))
	}
	if ids := idsWith(results, geology.ActionSurveyFirst); len(ids) > 0 {
		recs = append(recs, fmt.Sprintf("Conduct detailed geochemical surveys in %s before drilling", strings.Join(ids, ", ")))
	}
	if samples < 100 {
		recs = append(recs, "Increase sample density to 100-150 samples for better statistical confidence")
	}
	if depth < 150 {
		recs = append(recs, "Consider deeper sampling (up to 300m) in high-priority areas")
	}
	switch m {
	case geology.Copper:
		recs = append(recs, "Include Mo, Au, and Re analysis for porphyry copper potential assessment")
	case geology.Cobalt:
		recs = append(recs, "Include Ni, Cu, and rare earth element analysis for comprehensive evaluation")
	}
	if len(results) == 0 {
		return recs
	}
	top := results[0].Likelihood
	if top > 0.8 {
		recs = append(recs, "Conduct IP/resistivity surveys to identify sulfide zones in high-priority areas")
	}
	if top > 0.6 {
		recs = append(recs, "Plan systematic grid drilling on 50m x 50m spacing in target areas")
	} else {
		recs = append(recs, "Focus on geological mapping and structural analysis before detailed exploration")
	}
	return recs
}
