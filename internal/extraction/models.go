package extraction

import (
	"math"

	"warpmine/domain/process"
	"warpmine/internal/synth"
)

// randomForest averages the kernel over a bootstrap cloud of jittered
// operating points. Jitter is absolute and drawn independently of the
// inputs, so a fixed seed shifts every input by the same amounts.
type randomForest struct {
	trees  int
	jitter []float64 // per dimension, in Dimensions order
}

// NewRandomForest creates the ensemble regressor
func NewRandomForest() Model {
	return &randomForest{
		trees:  64,
		jitter: []float64{0.05, 0.25, 0.03, 1.0, 0.02},
	}
}

func (m *randomForest) Name() string        { return RandomForest }
func (m *randomForest) Accuracy() float64   { return 0.94 }
func (m *randomForest) Samples() int        { return m.trees }
func (m *randomForest) Description() string { return "bootstrap ensemble over jittered operating points" }

func (m *randomForest) Evaluate(p process.Parameters, g *synth.Generator) process.Metrics {
	var sum process.Metrics
	for t := 0; t < m.trees; t++ {
		q := p
		q.OreGrade = math.Max(0, q.OreGrade+g.BoundedNoise(m.jitter[0], 3))
		q.LeachingTime = math.Max(0.1, q.LeachingTime+g.BoundedNoise(m.jitter[1], 3))
		q.AcidConcentration = math.Max(0, q.AcidConcentration+g.BoundedNoise(m.jitter[2], 3))
		q.Temperature = math.Max(0, q.Temperature+g.BoundedNoise(m.jitter[3], 3))
		q.Voltage = math.Max(0, q.Voltage+g.BoundedNoise(m.jitter[4], 3))

		k := Kernel(q)
		sum.Recovery += k.Recovery
		sum.Purity += k.Purity
		sum.Cost += k.Cost
		sum.Energy += k.Energy
	}
	n := float64(m.trees)
	return process.Metrics{
		Recovery: sum.Recovery / n,
		Purity:   sum.Purity / n,
		Cost:     sum.Cost / n,
		Energy:   sum.Energy / n,
	}
}

// monotoneNet is a one-hidden-layer softplus network with nonnegative
// weights, rescaled so an all-zero input maps to 0 and all-one maps to 1
type monotoneNet struct {
	w [][]float64
	b []float64
	v []float64
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func (n monotoneNet) raw(x []float64) float64 {
	out := 0.0
	for j, row := range n.w {
		z := n.b[j]
		for i, w := range row {
			z += w * x[i]
		}
		out += n.v[j] * softplus(z)
	}
	return out
}

func (n monotoneNet) forward(x []float64) float64 {
	ones := make([]float64, len(x))
	for i := range ones {
		ones[i] = 1
	}
	lo := n.raw(make([]float64, len(x)))
	hi := n.raw(ones)
	return (n.raw(x) - lo) / (hi - lo)
}

type neuralNetwork struct {
	leach monotoneNet // grade, time, acid, temperature
	cell  monotoneNet // voltage, temperature, acid
}

// NewNeuralNetwork creates the monotone network regressor
func NewNeuralNetwork() Model {
	return &neuralNetwork{
		leach: monotoneNet{
			w: [][]float64{
				{1.2, 2.0, 0.8, 1.5},
				{0.4, 1.1, 2.2, 0.9},
				{0.9, 0.6, 1.0, 2.4},
			},
			b: []float64{-2.5, -2.0, -2.2},
			v: []float64{0.5, 0.3, 0.4},
		},
		cell: monotoneNet{
			w: [][]float64{
				{3.0, 0.5, 0.4},
				{1.5, 1.2, 1.0},
			},
			b: []float64{-1.8, -1.5},
			v: []float64{0.7, 0.3},
		},
	}
}

func (m *neuralNetwork) Name() string        { return NeuralNetwork }
func (m *neuralNetwork) Accuracy() float64   { return 0.97 }
func (m *neuralNetwork) Samples() int        { return 0 }
func (m *neuralNetwork) Description() string { return "monotone softplus network over response features" }

func (m *neuralNetwork) Evaluate(p process.Parameters, _ *synth.Generator) process.Metrics {
	r := responsesOf(p)
	leach := 0.5*r.grade*r.time*r.acid*r.temp + 0.5*m.leach.forward([]float64{r.grade, r.time, r.acid, r.temp})
	cell := 0.5*r.voltage*(0.5+0.5*r.temp)*(0.5+0.5*r.acid) + 0.5*r.voltage*m.cell.forward([]float64{r.voltage, r.temp, r.acid})
	return process.Metrics{
		Recovery: recoveryFromLeach(r, leach),
		Purity:   purityFromCell(r, cell),
		Cost:     processingCost(p),
		Energy:   energyConsumption(p),
	}
}

// stump is a single-split regression tree on one input
type stump struct {
	field     string
	threshold float64
	above     bool // true fires at v >= threshold, false fires strictly past it
	weight    float64
}

func (s stump) apply(p process.Parameters) float64 {
	v, _ := p.Value(s.field)
	if s.above && v >= s.threshold {
		return s.weight
	}
	if !s.above && v > s.threshold {
		return s.weight
	}
	return 0
}

type gradientBoosting struct {
	recoveryBase float64
	recovery     []stump
	purityBase   float64
	purity       []stump
	blend        float64
}

// NewGradientBoosting creates the boosted-stump regressor. Its prediction
// blends the kernel with additive stumps that only step up inside the
// sweet-spot bands and only step down past them.
func NewGradientBoosting() Model {
	return &gradientBoosting{
		recoveryBase: 40,
		recovery: []stump{
			{process.FieldOreGrade, 1.0, true, 8},
			{process.FieldOreGrade, 2.0, true, 8},
			{process.FieldLeachingTime, 6, true, 6},
			{process.FieldLeachingTime, 12, true, 6},
			{process.FieldLeachingTime, 24, true, 4},
			{process.FieldAcidConcentration, 1.0, true, 5},
			{process.FieldAcidConcentration, 1.5, true, 5},
			{process.FieldAcidConcentration, 3.0, false, -6},
			{process.FieldTemperature, 50, true, 5},
			{process.FieldTemperature, 60, true, 5},
			{process.FieldTemperature, 70, true, 4},
			{process.FieldTemperature, 90, false, -8},
		},
		purityBase: 86,
		purity: []stump{
			{process.FieldVoltage, 1.8, true, 4},
			{process.FieldVoltage, 2.0, true, 4},
			{process.FieldVoltage, 2.8, false, -5},
			{process.FieldTemperature, 50, true, 2},
			{process.FieldTemperature, 60, true, 1},
			{process.FieldAcidConcentration, 1.0, true, 1},
			{process.FieldAcidConcentration, 1.5, true, 1},
		},
		blend: 0.3,
	}
}

func (m *gradientBoosting) Name() string        { return GradientBoosting }
func (m *gradientBoosting) Accuracy() float64   { return 0.96 }
func (m *gradientBoosting) Samples() int        { return 0 }
func (m *gradientBoosting) Description() string { return "kernel blended with additive monotone stumps" }

func (m *gradientBoosting) Evaluate(p process.Parameters, _ *synth.Generator) process.Metrics {
	k := Kernel(p)
	rec := m.recoveryBase
	for _, s := range m.recovery {
		rec += s.apply(p)
	}
	pur := m.purityBase
	for _, s := range m.purity {
		pur += s.apply(p)
	}
	factor := mineralFactor(p.MineralType)
	return process.Metrics{
		Recovery: (1-m.blend)*k.Recovery + m.blend*rec*factor,
		Purity:   (1-m.blend)*k.Purity + m.blend*(pur-5*(1-factor)),
		Cost:     k.Cost,
		Energy:   k.Energy,
	}
}
