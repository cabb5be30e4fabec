// Package optimize searches the process parameter space with one of several
// metaheuristics that share a single minimization core.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"warpmine/domain/core"
	"warpmine/domain/optimization"
	"warpmine/internal/synth"

	"golang.org/x/sync/errgroup"
)

// Objective scores one candidate in the caller's direction. Errors, panics
// and non-finite values score the candidate as worst possible.
type Objective func(ctx context.Context, x []float64) (float64, error)

// Strategy generates candidates. Init evaluates the starting population and
// Step runs one iteration; both evaluate only through the Evaluator.
type Strategy interface {
	Init(ev *Evaluator) error
	Step(ev *Evaluator) error
}

// Evaluator is the shared core a strategy works against. Scores are always
// minimized: maximize problems are negated before strategies see them.
type Evaluator struct {
	ctx       context.Context
	problem   optimization.Problem
	objective Objective
	workers   int

	Gen            *synth.Generator
	PopulationSize int
	MaxIterations  int
	Iteration      int

	best        []float64
	bestScore   float64
	evaluations int
}

// Dim is the number of searched dimensions
func (ev *Evaluator) Dim() int { return len(ev.problem.Bounds) }

// Bound returns the interval of dimension i
func (ev *Evaluator) Bound(i int) optimization.Bound { return ev.problem.Bounds[i] }

// RandomPoint draws a uniform point inside the bounds
func (ev *Evaluator) RandomPoint() []float64 {
	x := make([]float64, ev.Dim())
	for i, b := range ev.problem.Bounds {
		x[i] = ev.Gen.Uniform(b.Lower, b.Upper)
	}
	return x
}

// Best returns a copy of the best candidate so far and its minimized score
func (ev *Evaluator) Best() ([]float64, float64) {
	return append([]float64(nil), ev.best...), ev.bestScore
}

// Evaluate clamps every candidate in place into the bounds and scores the
// batch. Candidates run concurrently; results are applied in index order so
// a run is reproducible for a fixed seed regardless of scheduling. The
// error is non-nil only when the run's context is done.
func (ev *Evaluator) Evaluate(batch [][]float64) ([]float64, error) {
	if err := ev.ctx.Err(); err != nil {
		return nil, err
	}
	scores := make([]float64, len(batch))
	g, gctx := errgroup.WithContext(ev.ctx)
	g.SetLimit(ev.workers)
	for i, x := range batch {
		ev.problem.Clamp(x)
		g.Go(func() error {
			scores[i] = ev.score(gctx, x)
			return nil
		})
	}
	_ = g.Wait()

	for i, x := range batch {
		ev.evaluations++
		if scores[i] < ev.bestScore {
			ev.bestScore = scores[i]
			ev.best = append(ev.best[:0], x...)
		}
	}
	return scores, ev.ctx.Err()
}

func (ev *Evaluator) score(ctx context.Context, x []float64) (s float64) {
	defer func() {
		if r := recover(); r != nil {
			s = math.Inf(1)
		}
	}()
	if ctx.Err() != nil {
		return math.Inf(1)
	}
	v, err := ev.objective(ctx, append([]float64(nil), x...))
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	if ev.problem.Direction == optimization.Maximize {
		return -v
	}
	return v
}

// Outcome is the raw result of a search, values in the caller's direction
type Outcome struct {
	Best        []float64
	BestValue   float64
	History     []optimization.ConvergencePoint
	Iterations  int
	Evaluations int
	Stop        optimization.StopReason
}

// Search runs strat to completion. It stops on plateau, iteration budget,
// wall-clock budget or cancellation and returns the best point found. Only a
// run that never produced a finite score fails. History starts at the first
// iteration with a finite best; onIteration, when set, sees each point as it
// is recorded.
func Search(ctx context.Context, p optimization.Problem, obj Objective, strat Strategy, cfg optimization.Config, g *synth.Generator, onIteration func(optimization.ConvergencePoint)) (Outcome, error) {
	if len(p.Bounds) == 0 {
		return Outcome{}, core.NewSpecError(core.ErrDegenerateBounds, "objective.bounds", "no dimensions to search")
	}
	runCtx := ctx
	if cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.MaxDuration)
		defer cancel()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ev := &Evaluator{
		ctx:            runCtx,
		problem:        p,
		objective:      obj,
		workers:        workers,
		Gen:            g,
		PopulationSize: cfg.PopulationSize,
		MaxIterations:  cfg.MaxIterations,
		bestScore:      math.Inf(1),
	}

	out := Outcome{Stop: optimization.StopBudgetExhausted}
	toValue := func(score float64) float64 {
		if p.Direction == optimization.Maximize {
			return -score
		}
		return score
	}

	err := strat.Init(ev)
	stalled := 0
	for err == nil && ev.Iteration < cfg.MaxIterations {
		ev.Iteration++
		prev := ev.bestScore
		err = strat.Step(ev)
		// nothing is recorded until some candidate has scored
		feasible := !math.IsInf(ev.bestScore, 0)
		if feasible {
			point := optimization.ConvergencePoint{
				Iteration: ev.Iteration,
				BestValue: toValue(ev.bestScore),
			}
			out.History = append(out.History, point)
			if onIteration != nil {
				onIteration(point)
			}
		}
		if err != nil {
			break
		}
		if !feasible {
			continue
		}
		if improved(prev, ev.bestScore, cfg.Tolerance) {
			stalled = 0
		} else {
			stalled++
		}
		if cfg.Patience > 0 && stalled >= cfg.Patience {
			out.Stop = optimization.StopConverged
			break
		}
	}

	if err != nil {
		switch {
		case ctx.Err() != nil:
			out.Stop = optimization.StopCancelled
		case errors.Is(err, context.DeadlineExceeded) || runCtx.Err() != nil:
			out.Stop = optimization.StopDeadline
		default:
			return Outcome{}, fmt.Errorf("%w: %w", core.ErrNoFeasibleCandidate, err)
		}
	}

	out.Iterations = ev.Iteration
	out.Evaluations = ev.evaluations
	if math.IsInf(ev.bestScore, 1) {
		if out.Stop == optimization.StopCancelled {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("%w after %d evaluations", core.ErrNoFeasibleCandidate, ev.evaluations)
	}
	out.Best, _ = ev.Best()
	out.BestValue = toValue(ev.bestScore)
	return out, nil
}

// improved reports a gain larger than tol, measured on the minimized score.
// Leaving +Inf counts as improvement.
func improved(prev, cur, tol float64) bool {
	if math.IsInf(prev, 1) {
		return !math.IsInf(cur, 1)
	}
	return prev-cur > tol
}
