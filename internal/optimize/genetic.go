package optimize

import (
	"sort"
)

// GA tuning
const (
	tournamentSize = 3
	blxAlpha       = 0.5
	mutationRate   = 0.1
	mutationScale  = 0.1 // sigma as a fraction of the bound width
	eliteCount     = 2
)

// genetic is a real-coded genetic algorithm: tournament selection, BLX-alpha
// crossover, gaussian mutation and elitism
type genetic struct {
	pop    [][]float64
	scores []float64
}

func newGenetic() Strategy { return &genetic{} }

func (s *genetic) Init(ev *Evaluator) error {
	s.pop = make([][]float64, ev.PopulationSize)
	for i := range s.pop {
		s.pop[i] = ev.RandomPoint()
	}
	scores, err := ev.Evaluate(s.pop)
	s.scores = scores
	return err
}

func (s *genetic) Step(ev *Evaluator) error {
	n := len(s.pop)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s.scores[order[a]] < s.scores[order[b]] })

	elites := eliteCount
	if elites > n {
		elites = n
	}
	next := make([][]float64, 0, n)
	nextScores := make([]float64, 0, n)
	for _, idx := range order[:elites] {
		next = append(next, append([]float64(nil), s.pop[idx]...))
		nextScores = append(nextScores, s.scores[idx])
	}

	children := make([][]float64, 0, n-elites)
	for len(children) < n-elites {
		a := s.pop[s.tournament(ev)]
		b := s.pop[s.tournament(ev)]
		children = append(children, s.mutate(ev, blend(ev, a, b)))
	}
	scores, err := ev.Evaluate(children)
	if err != nil {
		return err
	}
	s.pop = append(next, children...)
	s.scores = append(nextScores, scores...)
	return nil
}

func (s *genetic) tournament(ev *Evaluator) int {
	r := ev.Gen.Rand()
	best := r.IntN(len(s.pop))
	for k := 1; k < tournamentSize; k++ {
		c := r.IntN(len(s.pop))
		if s.scores[c] < s.scores[best] {
			best = c
		}
	}
	return best
}

// blend is BLX-alpha: each gene is drawn from the parents' interval widened
// by alpha on both sides
func blend(ev *Evaluator, a, b []float64) []float64 {
	child := make([]float64, len(a))
	for i := range a {
		lo, hi := a[i], b[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		d := hi - lo
		child[i] = ev.Gen.Uniform(lo-blxAlpha*d, hi+blxAlpha*d)
	}
	return child
}

func (s *genetic) mutate(ev *Evaluator, x []float64) []float64 {
	for i := range x {
		if ev.Gen.Float64() < mutationRate {
			x[i] += ev.Gen.Normal(0, mutationScale*ev.Bound(i).Width())
		}
	}
	return x
}
