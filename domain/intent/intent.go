// Package intent defines the closed set of request kinds the chat router can
// recognize. Intents are built per request and never persisted.
package intent

import (
	"warpmine/domain/geology"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
)

// Kind names an intent variant on the wire
type Kind string

const (
	KindQuestion     Kind = "question"
	KindExtraction   Kind = "extraction"
	KindExploration  Kind = "exploration"
	KindOptimization Kind = "optimization"
)

// Intent is implemented only by the variants in this package
type Intent interface {
	Kind() Kind
	Confidence() float64
	isIntent()
}

// Question is forwarded verbatim to the knowledge collaborator
type Question struct {
	Text  string
	Score float64
}

// ExtractionRequest asks for a single extraction simulation
type ExtractionRequest struct {
	Parameters process.Parameters
	Model      string
	Defaulted  []string
	Score      float64
}

// ExplorationRequest asks for a prospectivity analysis of the default regions
type ExplorationRequest struct {
	TargetMineral geology.Mineral
	Defaulted     []string
	Score         float64
}

// OptimizationRequest asks for a parameter search
type OptimizationRequest struct {
	Objective optimization.ObjectiveSpec
	Algorithm string
	Defaulted []string
	Score     float64
}

func (Question) Kind() Kind            { return KindQuestion }
func (ExtractionRequest) Kind() Kind   { return KindExtraction }
func (ExplorationRequest) Kind() Kind  { return KindExploration }
func (OptimizationRequest) Kind() Kind { return KindOptimization }

func (q Question) Confidence() float64            { return q.Score }
func (r ExtractionRequest) Confidence() float64   { return r.Score }
func (r ExplorationRequest) Confidence() float64  { return r.Score }
func (r OptimizationRequest) Confidence() float64 { return r.Score }

func (Question) isIntent()            {}
func (ExtractionRequest) isIntent()   {}
func (ExplorationRequest) isIntent()  {}
func (OptimizationRequest) isIntent() {}

// Defaults used when a structured request leaves a parameter out
const (
	DefaultOreGrade          = 2.0
	DefaultLeachingTime      = 6.0
	DefaultAcidConcentration = 1.5
	DefaultTemperature       = 65.0
	DefaultVoltage           = 2.2
)

// DefaultValue returns the documented default for a process field
func DefaultValue(field string) (float64, bool) {
	switch field {
	case process.FieldOreGrade:
		return DefaultOreGrade, true
	case process.FieldLeachingTime:
		return DefaultLeachingTime, true
	case process.FieldAcidConcentration:
		return DefaultAcidConcentration, true
	case process.FieldTemperature:
		return DefaultTemperature, true
	case process.FieldVoltage:
		return DefaultVoltage, true
	}
	return 0, false
}
