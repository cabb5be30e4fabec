package process

// Band is an operating range considered optimal for one input
type Band struct {
	Field string  `json:"field"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Unit  string  `json:"unit"`
}

// Contains reports whether v lies inside the band (inclusive)
func (b Band) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// SweetSpots are the industry sweet-spot bands used for recommendations.
// Ore grade has no practical upper bound, only the beneficiation floor.
var SweetSpots = []Band{
	{Field: FieldOreGrade, Low: 2.0, High: 100, Unit: "%"},
	{Field: FieldLeachingTime, Low: 8, High: 24, Unit: "h"},
	{Field: FieldAcidConcentration, Low: 1.2, High: 2.0, Unit: "mol/L"},
	{Field: FieldTemperature, Low: 60, High: 75, Unit: "°C"},
	{Field: FieldVoltage, Low: 2.0, High: 2.4, Unit: "V"},
}

// SweetSpot returns the band for a field
func SweetSpot(field string) (Band, bool) {
	for _, b := range SweetSpots {
		if b.Field == field {
			return b, true
		}
	}
	return Band{}, false
}

// Metrics are the raw model outputs before clamping and efficiency derivation
type Metrics struct {
	Recovery float64 // %
	Purity   float64 // %
	Cost     float64 // USD per tonne
	Energy   float64 // kWh per tonne
}

// ExtractionResult is produced once per simulation and never mutated
type ExtractionResult struct {
	RecoveryRate      float64    `json:"recovery_rate"`
	Purity            float64    `json:"purity"`
	ProcessingCost    float64    `json:"processing_cost"`
	EnergyConsumption float64    `json:"energy_consumption"`
	OverallEfficiency float64    `json:"overall_efficiency"`
	ProcessingTime    float64    `json:"processing_time"`
	Throughput        float64    `json:"throughput"`
	Recommendations   []string   `json:"recommendations"`
	Model             string     `json:"model"`
	ModelAccuracy     float64    `json:"model_accuracy"`
	SyntheticSamples  int        `json:"synthetic_data_points"`
	Seed              int64      `json:"seed"`
	Parameters        Parameters `json:"parameters"`
}

// Metric names shared with the optimizer
const (
	MetricRecovery   = "recovery"
	MetricPurity     = "purity"
	MetricCost       = "cost"
	MetricEnergy     = "energy"
	MetricEfficiency = "efficiency"
)

// Metric reads one of the optimizable outputs by name
func (r ExtractionResult) Metric(name string) (float64, bool) {
	switch name {
	case MetricRecovery:
		return r.RecoveryRate, true
	case MetricPurity:
		return r.Purity, true
	case MetricCost:
		return r.ProcessingCost, true
	case MetricEnergy:
		return r.EnergyConsumption, true
	case MetricEfficiency:
		return r.OverallEfficiency, true
	}
	return 0, false
}
