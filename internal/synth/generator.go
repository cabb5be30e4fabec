// Package synth generates seeded, bounded-noise samples for ore, process and
// geological attributes. A Generator is not safe for concurrent use; every
// call site builds its own from an explicit seed.
package synth

import (
	"hash/fnv"
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

const seedMix = 0x9e3779b97f4a7c15

// Generator is a reproducible random stream
type Generator struct {
	seed int64
	src  *rand.PCG
	rng  *rand.Rand
}

// New creates a generator whose output depends only on seed
func New(seed int64) *Generator {
	src := rand.NewPCG(uint64(seed), uint64(seed)^seedMix)
	return &Generator{seed: seed, src: src, rng: rand.New(src)}
}

// RandomSeed draws a fresh seed from the runtime source
func RandomSeed() int64 {
	return rand.Int64()
}

// ResolveSeed returns *seed, or a fresh one when seed is nil
func ResolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return RandomSeed()
}

// Seed that created this generator
func (g *Generator) Seed() int64 {
	return g.seed
}

// Fork derives an independent stream for a named sub-task
func (g *Generator) Fork(label string) *Generator {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return New(g.seed ^ int64(h.Sum64()))
}

// Rand exposes the underlying stream for integer draws and shuffles
func (g *Generator) Rand() *rand.Rand {
	return g.rng
}

// Float64 in [0, 1)
func (g *Generator) Float64() float64 {
	return g.rng.Float64()
}

// Uniform in [lo, hi)
func (g *Generator) Uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return distuv.Uniform{Min: lo, Max: hi, Src: g.src}.Rand()
}

// Normal draw. A non-positive sigma returns mu.
func (g *Generator) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: g.src}.Rand()
}

// BoundedNoise is a zero-mean normal draw clipped to ±k·sigma
func (g *Generator) BoundedNoise(sigma, k float64) float64 {
	if sigma <= 0 {
		return 0
	}
	limit := k * sigma
	return math.Max(-limit, math.Min(limit, g.Normal(0, sigma)))
}

// Beta draw in [0, 1]
func (g *Generator) Beta(alpha, beta float64) float64 {
	return distuv.Beta{Alpha: alpha, Beta: beta, Src: g.src}.Rand()
}

// Attribute describes one synthetic measurement
type Attribute struct {
	Name   string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Sample draws n normal values clipped to the attribute range
func (g *Generator) Sample(a Attribute, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Max(a.Min, math.Min(a.Max, g.Normal(a.Mean, a.StdDev)))
	}
	return out
}

// Around draws n points near center. Each coordinate varies by relSpread of
// its own magnitude and is clipped to [lo[i], hi[i]].
func (g *Generator) Around(center []float64, relSpread float64, lo, hi []float64, n int) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		p := make([]float64, len(center))
		for j, c := range center {
			p[j] = math.Max(lo[j], math.Min(hi[j], g.Normal(c, math.Abs(c)*relSpread)))
		}
		points[i] = p
	}
	return points
}

// Summary of a sample
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summarize computes descriptive statistics of xs
func Summarize(xs []float64) (Summary, error) {
	data := stats.Float64Data(xs)
	mean, err := data.Mean()
	if err != nil {
		return Summary{}, err
	}
	sd, err := data.StandardDeviationPopulation()
	if err != nil {
		return Summary{}, err
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, err
	}
	lo, err := data.Min()
	if err != nil {
		return Summary{}, err
	}
	hi, err := data.Max()
	if err != nil {
		return Summary{}, err
	}
	return Summary{N: len(xs), Mean: mean, StdDev: sd, Median: median, Min: lo, Max: hi}, nil
}
