package optimize

import (
	"math"

	"github.com/montanaflynn/stats"
)

// finalTemperatureRatio is T_end / T_0 for the geometric cooling schedule
const finalTemperatureRatio = 1e-3

// simulatedAnnealing runs PopulationSize independent Metropolis chains that
// share one cooling schedule. The step size shrinks with temperature.
type simulatedAnnealing struct {
	cur      [][]float64
	curCost  []float64
	t0       float64
	alpha    float64
	minScale float64
}

func newSimulatedAnnealing() Strategy { return &simulatedAnnealing{minScale: 0.01} }

func (s *simulatedAnnealing) Init(ev *Evaluator) error {
	s.cur = make([][]float64, ev.PopulationSize)
	for i := range s.cur {
		s.cur[i] = ev.RandomPoint()
	}
	scores, err := ev.Evaluate(s.cur)
	if err != nil {
		return err
	}
	s.curCost = scores
	s.t0 = initialTemperature(scores)
	iters := math.Max(1, float64(ev.MaxIterations))
	s.alpha = math.Pow(finalTemperatureRatio, 1/iters)
	return nil
}

// initialTemperature is the spread of the finite starting scores, so roughly
// one standard deviation of worsening is accepted with probability 1/e
func initialTemperature(scores []float64) float64 {
	var finite stats.Float64Data
	for _, c := range scores {
		if !math.IsInf(c, 0) {
			finite = append(finite, c)
		}
	}
	sd, err := finite.StandardDeviationPopulation()
	if err != nil || sd <= 0 || math.IsNaN(sd) {
		return 1
	}
	return sd
}

func (s *simulatedAnnealing) Step(ev *Evaluator) error {
	t := s.t0 * math.Pow(s.alpha, float64(ev.Iteration))
	scale := math.Max(s.minScale, 0.1*t/s.t0)

	proposals := make([][]float64, len(s.cur))
	for i, x := range s.cur {
		p := make([]float64, len(x))
		for j := range x {
			p[j] = x[j] + ev.Gen.Normal(0, scale*ev.Bound(j).Width())
		}
		proposals[i] = p
	}
	scores, err := ev.Evaluate(proposals)
	if err != nil {
		return err
	}
	for i, c := range scores {
		delta := c - s.curCost[i]
		if delta <= 0 || (!math.IsInf(c, 1) && ev.Gen.Float64() < math.Exp(-delta/t)) {
			s.cur[i] = proposals[i]
			s.curCost[i] = c
		}
	}
	return nil
}
