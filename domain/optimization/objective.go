// Package optimization describes optimization problems over process
// parameters and the results the engine reports for them.
package optimization

import (
	"fmt"
	"math"
	"strings"
	"time"

	"warpmine/domain/core"
	"warpmine/domain/process"
)

// Direction of the search
type Direction string

const (
	Maximize Direction = "maximize"
	Minimize Direction = "minimize"
)

// DefaultDirection is minimize for cost and energy, maximize otherwise
func DefaultDirection(metric string) Direction {
	switch metric {
	case process.MetricCost, process.MetricEnergy:
		return Minimize
	}
	return Maximize
}

// Bound is a closed search interval for one dimension
type Bound struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Clamp projects v into the interval
func (b Bound) Clamp(v float64) float64 {
	return math.Max(b.Lower, math.Min(b.Upper, v))
}

// Width of the interval
func (b Bound) Width() float64 {
	return b.Upper - b.Lower
}

// DefaultBounds are the standard industry operating windows
func DefaultBounds() map[string]Bound {
	return map[string]Bound{
		process.FieldOreGrade:          {Lower: 0.5, Upper: 8.0},
		process.FieldLeachingTime:      {Lower: 2, Upper: 48},
		process.FieldAcidConcentration: {Lower: 0.1, Upper: 5.0},
		process.FieldTemperature:       {Lower: 15, Upper: 95},
		process.FieldVoltage:           {Lower: 1.0, Upper: 4.0},
	}
}

var metrics = []string{
	process.MetricRecovery,
	process.MetricPurity,
	process.MetricCost,
	process.MetricEnergy,
	process.MetricEfficiency,
}

// ObjectiveSpec defines an optimization problem
type ObjectiveSpec struct {
	Metric      string              `json:"metric"`
	Direction   Direction           `json:"direction,omitempty"`
	Bounds      map[string]Bound    `json:"bounds,omitempty"`
	MineralType process.MineralType `json:"mineral_type,omitempty"`
}

// Problem is a validated ObjectiveSpec with bounds resolved in dimension order
type Problem struct {
	Metric      string
	Direction   Direction
	Names       []string
	Bounds      []Bound
	MineralType process.MineralType
}

// Resolve validates the objective and fills defaults. Unknown names and
// degenerate bounds are reported as InvalidSpec errors.
func (s ObjectiveSpec) Resolve() (Problem, error) {
	metric := strings.ToLower(strings.TrimSpace(s.Metric))
	known := false
	for _, m := range metrics {
		if m == metric {
			known = true
			break
		}
	}
	if !known {
		return Problem{}, core.NewSpecError(core.ErrUnknownMetric, "objective.metric",
			fmt.Sprintf("%q is not one of %s", s.Metric, strings.Join(metrics, ", ")))
	}

	dir := Direction(strings.ToLower(strings.TrimSpace(string(s.Direction))))
	switch dir {
	case "":
		dir = DefaultDirection(metric)
	case Maximize, Minimize:
	default:
		return Problem{}, core.NewSpecError(core.ErrUnknownDirection, "objective.direction",
			fmt.Sprintf("%q must be maximize or minimize", s.Direction))
	}

	mineral := s.MineralType
	if mineral == "" {
		mineral = process.CopperOxide
	}
	if !mineral.Valid() {
		return Problem{}, core.NewValidationError("objective.mineral_type", fmt.Sprintf("unknown mineral type %q", mineral))
	}

	for name := range s.Bounds {
		if !process.IsKnownDimension(name) {
			return Problem{}, core.NewSpecError(core.ErrUnknownDimension, "objective.bounds."+name,
				fmt.Sprintf("%q is not an optimizable parameter", name))
		}
	}

	defaults := DefaultBounds()
	p := Problem{Metric: metric, Direction: dir, MineralType: mineral}
	for _, name := range process.Dimensions {
		b, ok := s.Bounds[name]
		if !ok {
			b = defaults[name]
		}
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) || math.IsInf(b.Lower, 0) || math.IsInf(b.Upper, 0) {
			return Problem{}, core.NewSpecError(core.ErrDegenerateBounds, "objective.bounds."+name, "bounds must be finite")
		}
		if b.Lower >= b.Upper {
			return Problem{}, core.NewSpecError(core.ErrDegenerateBounds, "objective.bounds."+name,
				fmt.Sprintf("lower %g must be below upper %g", b.Lower, b.Upper))
		}
		lo, hi, _ := process.Envelope(name)
		for _, v := range []float64{b.Lower, b.Upper} {
			if err := process.ValidateValue(name, v); err != nil {
				return Problem{}, core.NewSpecError(core.ErrDegenerateBounds, "objective.bounds."+name,
					fmt.Sprintf("bound %g is outside the physical range", v))
			}
			// candidates are clamped into the envelope, so a wider bound could
			// never be honored
			if v < lo || v > hi {
				return Problem{}, core.NewSpecError(core.ErrDegenerateBounds, "objective.bounds."+name,
					fmt.Sprintf("bound %g is outside the operating envelope [%g, %g]", v, lo, hi))
			}
		}
		p.Names = append(p.Names, name)
		p.Bounds = append(p.Bounds, b)
	}
	return p, nil
}

// Clamp projects x into the problem bounds in place and returns it
func (p Problem) Clamp(x []float64) []float64 {
	for i := range x {
		x[i] = p.Bounds[i].Clamp(x[i])
	}
	return x
}

// Config tunes a single optimization run. Zero fields take defaults.
type Config struct {
	PopulationSize int           `json:"population_size,omitempty"`
	MaxIterations  int           `json:"max_iterations,omitempty"`
	Tolerance      float64       `json:"tolerance,omitempty"`
	Patience       int           `json:"patience,omitempty"`
	MaxDuration    time.Duration `json:"-"`
	MaxDurationMS  int64         `json:"max_duration_ms,omitempty"`
	Seed           *int64        `json:"seed,omitempty"`
	Workers        int           `json:"workers,omitempty"`
}

// Default run settings
const (
	DefaultPopulationSize = 30
	DefaultMaxIterations  = 100
	DefaultTolerance      = 1e-6
	DefaultPatience       = 20
	DefaultMaxDuration    = 30 * time.Second
)

// WithDefaults fills every unset field and rejects negative values
func (c Config) WithDefaults(base Config) (Config, error) {
	if c.PopulationSize < 0 {
		return c, core.NewValidationError("config.population_size", "must not be negative")
	}
	if c.MaxIterations < 0 {
		return c, core.NewValidationError("config.max_iterations", "must not be negative")
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) {
		return c, core.NewValidationError("config.tolerance", "must not be negative")
	}
	if c.Patience < 0 {
		return c, core.NewValidationError("config.patience", "must not be negative")
	}
	if c.MaxDurationMS < 0 || c.MaxDuration < 0 {
		return c, core.NewValidationError("config.max_duration_ms", "must not be negative")
	}

	if c.PopulationSize == 0 {
		c.PopulationSize = firstPositive(base.PopulationSize, DefaultPopulationSize)
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = firstPositive(base.MaxIterations, DefaultMaxIterations)
	}
	if c.Tolerance == 0 {
		c.Tolerance = base.Tolerance
		if c.Tolerance <= 0 {
			c.Tolerance = DefaultTolerance
		}
	}
	if c.Patience == 0 {
		c.Patience = firstPositive(base.Patience, DefaultPatience)
	}
	if c.MaxDuration == 0 && c.MaxDurationMS > 0 {
		c.MaxDuration = time.Duration(c.MaxDurationMS) * time.Millisecond
	}
	limit := base.MaxDuration
	if limit <= 0 {
		limit = DefaultMaxDuration
	}
	if c.MaxDuration == 0 || c.MaxDuration > limit {
		c.MaxDuration = limit
	}
	c.MaxDurationMS = c.MaxDuration.Milliseconds()
	if c.Workers == 0 {
		c.Workers = base.Workers
	}
	if c.Seed == nil {
		c.Seed = base.Seed
	}
	if c.PopulationSize < 4 {
		// differential evolution needs three distinct partners
		c.PopulationSize = 4
	}
	return c, nil
}

func firstPositive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
