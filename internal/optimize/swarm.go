package optimize

import "math"

// PSO tuning: inertia decays linearly from wStart to wEnd
const (
	wStart    = 0.9
	wEnd      = 0.4
	cognitive = 1.5
	social    = 1.5
	vmaxFrac  = 0.2
)

type particleSwarm struct {
	pos       [][]float64
	vel       [][]float64
	pbest     [][]float64
	pbestCost []float64
}

func newParticleSwarm() Strategy { return &particleSwarm{} }

func (s *particleSwarm) Init(ev *Evaluator) error {
	n, d := ev.PopulationSize, ev.Dim()
	s.pos = make([][]float64, n)
	s.vel = make([][]float64, n)
	for i := 0; i < n; i++ {
		s.pos[i] = ev.RandomPoint()
		s.vel[i] = make([]float64, d)
		for j := 0; j < d; j++ {
			w := ev.Bound(j).Width()
			s.vel[i][j] = ev.Gen.Uniform(-0.1*w, 0.1*w)
		}
	}
	scores, err := ev.Evaluate(s.pos)
	s.pbest = make([][]float64, n)
	for i := range s.pos {
		s.pbest[i] = append([]float64(nil), s.pos[i]...)
	}
	s.pbestCost = scores
	return err
}

func (s *particleSwarm) inertia(ev *Evaluator) float64 {
	if ev.MaxIterations <= 1 {
		return wEnd
	}
	frac := float64(ev.Iteration-1) / float64(ev.MaxIterations-1)
	return wStart - (wStart-wEnd)*frac
}

func (s *particleSwarm) Step(ev *Evaluator) error {
	gbest, _ := ev.Best()
	w := s.inertia(ev)
	for i := range s.pos {
		attract := gbest
		if len(attract) == 0 {
			// nothing feasible yet: particles follow their own memory only
			attract = s.pbest[i]
		}
		for j := range s.pos[i] {
			r1, r2 := ev.Gen.Float64(), ev.Gen.Float64()
			v := w*s.vel[i][j] +
				cognitive*r1*(s.pbest[i][j]-s.pos[i][j]) +
				social*r2*(attract[j]-s.pos[i][j])
			vmax := vmaxFrac * ev.Bound(j).Width()
			s.vel[i][j] = math.Max(-vmax, math.Min(vmax, v))
			s.pos[i][j] += s.vel[i][j]
		}
	}
	scores, err := ev.Evaluate(s.pos)
	if err != nil {
		return err
	}
	for i, c := range scores {
		if c < s.pbestCost[i] {
			s.pbestCost[i] = c
			s.pbest[i] = append(s.pbest[i][:0], s.pos[i]...)
		}
	}
	return nil
}
