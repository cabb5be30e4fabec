// Package process holds the leach/electrowinning value objects shared by the
// extraction simulator, the optimizer and the chat router.
package process

import (
	"fmt"
	"math"

	"warpmine/domain/core"
)

// MineralType selects the ore path through the kinetics model
type MineralType string

const (
	CopperOxide   MineralType = "copper_oxide"
	CopperSulfide MineralType = "copper_sulfide"
	CobaltSulfide MineralType = "cobalt_sulfide"
)

// Valid reports whether the mineral type is one of the known ore paths
func (m MineralType) Valid() bool {
	switch m {
	case CopperOxide, CopperSulfide, CobaltSulfide:
		return true
	}
	return false
}

// IsSulfide reports whether the ore path needs oxidative leaching
func (m MineralType) IsSulfide() bool {
	return m == CopperSulfide || m == CobaltSulfide
}

// Field names as they appear on the wire and in optimizer bounds
const (
	FieldOreGrade          = "ore_grade"
	FieldLeachingTime      = "leaching_time"
	FieldAcidConcentration = "acid_concentration"
	FieldTemperature       = "temperature"
	FieldVoltage           = "voltage"
	FieldMineralType       = "mineral_type"
)

// Dimensions is the fixed ordering used when parameters are flattened to a vector
var Dimensions = []string{
	FieldOreGrade,
	FieldLeachingTime,
	FieldAcidConcentration,
	FieldTemperature,
	FieldVoltage,
}

// Operational envelope. Values beyond these are clamped, not rejected.
const (
	MaxLeachingTime      = 168.0
	MaxAcidConcentration = 10.0
	MinTemperature       = 0.0
	MaxTemperature       = 120.0
	MaxVoltage           = 6.0
)

// Physical limits. Values beyond these are rejected.
const (
	absoluteMinTemperature = -30.0
	absoluteMaxTemperature = 250.0
)

// Parameters is an immutable leach/electrowinning operating point.
// Construct with NewParameters; the zero value is not valid.
type Parameters struct {
	OreGrade          float64     `json:"ore_grade"`
	LeachingTime      float64     `json:"leaching_time"`
	AcidConcentration float64     `json:"acid_concentration"`
	Temperature       float64     `json:"temperature"`
	Voltage           float64     `json:"voltage"`
	MineralType       MineralType `json:"mineral_type"`
}

// NewParameters validates and normalizes an operating point
func NewParameters(oreGrade, leachingTime, acid, temperature, voltage float64, mineral MineralType) (Parameters, error) {
	p := Parameters{
		OreGrade:          oreGrade,
		LeachingTime:      leachingTime,
		AcidConcentration: acid,
		Temperature:       temperature,
		Voltage:           voltage,
		MineralType:       mineral,
	}
	return p.Normalize()
}

// Normalize validates every field and clamps the operational ones.
// It is used for values decoded from JSON, which bypass NewParameters.
func (p Parameters) Normalize() (Parameters, error) {
	if p.MineralType == "" {
		p.MineralType = CopperOxide
	}
	if !p.MineralType.Valid() {
		return Parameters{}, core.NewValidationError(FieldMineralType,
			fmt.Sprintf("unknown mineral type %q", p.MineralType))
	}

	for _, name := range Dimensions {
		v, _ := p.Value(name)
		if err := ValidateValue(name, v); err != nil {
			return Parameters{}, err
		}
	}

	p.LeachingTime = math.Min(p.LeachingTime, MaxLeachingTime)
	p.AcidConcentration = math.Min(p.AcidConcentration, MaxAcidConcentration)
	p.Temperature = clamp(p.Temperature, MinTemperature, MaxTemperature)
	p.Voltage = math.Min(p.Voltage, MaxVoltage)

	return p, nil
}

// ValidateValue checks one numeric field against its physical limits.
// Values inside the limits but outside the operational envelope are accepted.
func ValidateValue(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return core.NewValidationError(field, "must be a finite number")
	}
	switch field {
	case FieldOreGrade:
		if v < 0 || v > 100 {
			return core.NewValidationError(field, fmt.Sprintf("must be within [0, 100] %%, got %g", v))
		}
	case FieldLeachingTime:
		if v <= 0 {
			return core.NewValidationError(field, fmt.Sprintf("must be greater than 0 hours, got %g", v))
		}
	case FieldAcidConcentration:
		if v < 0 {
			return core.NewValidationError(field, fmt.Sprintf("must be at least 0 mol/L, got %g", v))
		}
	case FieldTemperature:
		if v < absoluteMinTemperature || v > absoluteMaxTemperature {
			return core.NewValidationError(field,
				fmt.Sprintf("must be within [%g, %g] °C, got %g", absoluteMinTemperature, absoluteMaxTemperature, v))
		}
	case FieldVoltage:
		if v < 0 {
			return core.NewValidationError(field, fmt.Sprintf("must be at least 0 V, got %g", v))
		}
	default:
		return core.NewValidationError(field, "unknown parameter")
	}
	return nil
}

// Envelope returns the operating range Normalize clamps field into
func Envelope(field string) (lo, hi float64, ok bool) {
	switch field {
	case FieldOreGrade:
		return 0, 100, true
	case FieldLeachingTime:
		return 0, MaxLeachingTime, true
	case FieldAcidConcentration:
		return 0, MaxAcidConcentration, true
	case FieldTemperature:
		return MinTemperature, MaxTemperature, true
	case FieldVoltage:
		return 0, MaxVoltage, true
	}
	return 0, 0, false
}

// Vector flattens the numeric fields in Dimensions order
func (p Parameters) Vector() []float64 {
	return []float64{p.OreGrade, p.LeachingTime, p.AcidConcentration, p.Temperature, p.Voltage}
}

// Value returns a numeric field by wire name
func (p Parameters) Value(field string) (float64, bool) {
	switch field {
	case FieldOreGrade:
		return p.OreGrade, true
	case FieldLeachingTime:
		return p.LeachingTime, true
	case FieldAcidConcentration:
		return p.AcidConcentration, true
	case FieldTemperature:
		return p.Temperature, true
	case FieldVoltage:
		return p.Voltage, true
	}
	return 0, false
}

// FromVector rebuilds parameters from a Dimensions-ordered vector
func FromVector(x []float64, mineral MineralType) (Parameters, error) {
	if len(x) != len(Dimensions) {
		return Parameters{}, fmt.Errorf("expected %d dimensions, got %d", len(Dimensions), len(x))
	}
	return NewParameters(x[0], x[1], x[2], x[3], x[4], mineral)
}

// IsKnownDimension reports whether name is an optimizable field
func IsKnownDimension(name string) bool {
	for _, d := range Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
