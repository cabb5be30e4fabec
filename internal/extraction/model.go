package extraction

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"warpmine/domain/core"
	"warpmine/domain/process"
	"warpmine/internal/synth"
)

// Model names
const (
	RandomForest     = "random_forest"
	NeuralNetwork    = "neural_network"
	GradientBoosting = "gradient_boosting"
)

// Model maps process parameters to raw metrics. Evaluate must be a pure
// function of its inputs; any internal randomness comes from g.
type Model interface {
	Name() string
	Description() string
	// Accuracy in (0, 1] scales the noise envelope the simulator applies
	Accuracy() float64
	Evaluate(p process.Parameters, g *synth.Generator) process.Metrics
	// Samples is how many synthetic points one evaluation draws
	Samples() int
}

// Registry holds models by name. It is read-only after construction in
// normal use, so lookups take only a read lock.
type Registry struct {
	mu      sync.RWMutex
	models  map[string]Model
	aliases map[string]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model), aliases: make(map[string]string)}
}

// DefaultRegistry contains the three built-in regressors
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewRandomForest(), "rf")
	r.Register(NewNeuralNetwork(), "nn")
	r.Register(NewGradientBoosting(), "xgboost", "xgb", "gbm")
	return r
}

// Register adds a model under its name and any aliases
func (r *Registry) Register(m Model, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[m.Name()] = m
	for _, a := range aliases {
		r.aliases[normalizeName(a)] = m.Name()
	}
}

// Get resolves a model by name or alias. Unknown names are InvalidSpec errors.
func (r *Registry) Get(name string) (Model, error) {
	key := normalizeName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canon, ok := r.aliases[key]; ok {
		key = canon
	}
	if m, ok := r.models[key]; ok {
		return m, nil
	}
	return nil, core.NewSpecError(core.ErrUnknownModel, "model_name",
		fmt.Sprintf("%q is not one of %s", name, strings.Join(r.namesLocked(), ", ")))
}

// Names lists canonical model names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// DefaultModelFor picks a model by ore path
func DefaultModelFor(m process.MineralType) string {
	switch m {
	case process.CopperSulfide:
		return GradientBoosting
	case process.CobaltSulfide:
		return NeuralNetwork
	}
	return RandomForest
}
