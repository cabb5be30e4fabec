package optimize

// DE/rand/1/bin tuning
const (
	deWeight    = 0.8
	deCrossover = 0.9
)

type differentialEvolution struct {
	pop    [][]float64
	scores []float64
}

func newDifferentialEvolution() Strategy { return &differentialEvolution{} }

func (s *differentialEvolution) Init(ev *Evaluator) error {
	s.pop = make([][]float64, ev.PopulationSize)
	for i := range s.pop {
		s.pop[i] = ev.RandomPoint()
	}
	scores, err := ev.Evaluate(s.pop)
	s.scores = scores
	return err
}

func (s *differentialEvolution) Step(ev *Evaluator) error {
	n, d := len(s.pop), ev.Dim()
	r := ev.Gen.Rand()
	trials := make([][]float64, n)
	for i := range s.pop {
		a, b, c := distinct3(r.IntN, n, i)
		jrand := r.IntN(d)
		trial := append([]float64(nil), s.pop[i]...)
		for j := 0; j < d; j++ {
			if j == jrand || ev.Gen.Float64() < deCrossover {
				trial[j] = s.pop[a][j] + deWeight*(s.pop[b][j]-s.pop[c][j])
			}
		}
		trials[i] = trial
	}
	scores, err := ev.Evaluate(trials)
	if err != nil {
		return err
	}
	for i, c := range scores {
		if c <= s.scores[i] {
			s.pop[i] = trials[i]
			s.scores[i] = c
		}
	}
	return nil
}

// distinct3 draws three indices different from each other and from skip.
// n must be at least 4.
func distinct3(intN func(int) int, n, skip int) (int, int, int) {
	pick := func(not ...int) int {
		for {
			k := intN(n)
			ok := true
			for _, x := range not {
				if k == x {
					ok = false
					break
				}
			}
			if ok {
				return k
			}
		}
	}
	a := pick(skip)
	b := pick(skip, a)
	c := pick(skip, a, b)
	return a, b, c
}
