// Package geology holds region profiles and prospectivity results for the
// exploration simulator.
package geology

import (
	"fmt"
	"math"
	"strings"

	"warpmine/domain/core"
)

// Mineral is the exploration target
type Mineral string

const (
	Copper Mineral = "copper"
	Cobalt Mineral = "cobalt"
)

// ParseMineral accepts the mineral name or its chemical symbol. Empty means copper.
func ParseMineral(s string) (Mineral, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "copper", "cu":
		return Copper, nil
	case "cobalt", "co":
		return Cobalt, nil
	}
	return "", core.NewValidationError("target_mineral", fmt.Sprintf("unknown target mineral %q", s))
}

// Feature names as they appear on the wire
const (
	FeatureSoilAnomaly  = "soil_anomaly_index"
	FeatureStructural   = "structural_control_score"
	FeatureAlteration   = "alteration_index"
	FeatureGeophysical  = "geophysical_signature"
	fieldRegionID       = "region_id"
	fieldFeaturesPrefix = "features."
)

// Features is the normalized geochemical indicator vector of a region.
// Every score lies in [0, 1].
type Features struct {
	SoilAnomalyIndex       float64 `json:"soil_anomaly_index"`
	StructuralControlScore float64 `json:"structural_control_score"`
	AlterationIndex        float64 `json:"alteration_index"`
	GeophysicalSignature   float64 `json:"geophysical_signature"`
}

// Values returns the scores in a fixed order: soil, structural, alteration, geophysical
func (f Features) Values() []float64 {
	return []float64{f.SoilAnomalyIndex, f.StructuralControlScore, f.AlterationIndex, f.GeophysicalSignature}
}

// Validate checks that every score is finite and inside [0, 1]
func (f Features) Validate() error {
	return f.validate(fieldFeaturesPrefix)
}

func (f Features) validate(prefix string) error {
	names := []string{FeatureSoilAnomaly, FeatureStructural, FeatureAlteration, FeatureGeophysical}
	for i, v := range f.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1 {
			return core.NewValidationError(prefix+names[i],
				fmt.Sprintf("must be a score within [0, 1], got %g", v))
		}
	}
	return nil
}

// RegionProfile is one candidate region and its indicator vector
type RegionProfile struct {
	RegionID core.RegionID `json:"region_id"`
	Features Features      `json:"features"`
}

// NormalizeProfiles trims region ids and checks they are present and unique
// and that every feature score is in range. The input is not modified.
func NormalizeProfiles(profiles []RegionProfile) ([]RegionProfile, error) {
	out := make([]RegionProfile, 0, len(profiles))
	seen := make(map[core.RegionID]struct{}, len(profiles))
	for i, p := range profiles {
		id, err := core.ParseRegionID(string(p.RegionID))
		if err != nil {
			return nil, core.NewValidationError(fmt.Sprintf("regions[%d].%s", i, fieldRegionID), "must not be empty")
		}
		if _, dup := seen[id]; dup {
			return nil, &core.FieldError{
				Field:  fmt.Sprintf("regions[%d].%s", i, fieldRegionID),
				Reason: fmt.Sprintf("region %q appears more than once", id),
				Err:    core.ErrDuplicateRegion,
			}
		}
		seen[id] = struct{}{}
		if err := p.Features.validate(fmt.Sprintf("regions[%d].%s", i, fieldFeaturesPrefix)); err != nil {
			return nil, err
		}
		out = append(out, RegionProfile{RegionID: id, Features: p.Features})
	}
	return out, nil
}
