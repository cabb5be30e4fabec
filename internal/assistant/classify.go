package assistant

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"warpmine/domain/geology"
	"warpmine/domain/intent"
	"warpmine/domain/optimization"
	"warpmine/domain/process"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// keyword is one weighted rule term. Terms are matched on whole words.
type keyword struct {
	kind   intent.Kind
	term   string
	weight float64
}

var keywords = []keyword{
	{intent.KindExtraction, "simulate", 0.45},
	{intent.KindExtraction, "simulation", 0.45},
	{intent.KindExtraction, "predict", 0.35},
	{intent.KindExtraction, "estimate", 0.30},
	{intent.KindExtraction, "calculate", 0.30},
	{intent.KindExtraction, "extraction", 0.20},
	{intent.KindExtraction, "leaching", 0.15},
	{intent.KindExtraction, "leach", 0.15},
	{intent.KindExtraction, "recovery", 0.15},
	{intent.KindExtraction, "recovery rate", 0.10},
	{intent.KindExtraction, "purity", 0.10},

	{intent.KindExploration, "prospectivity", 0.50},
	{intent.KindExploration, "exploration", 0.35},
	{intent.KindExploration, "explore", 0.35},
	{intent.KindExploration, "drill", 0.20},
	{intent.KindExploration, "drilling", 0.20},
	{intent.KindExploration, "regions", 0.20},
	{intent.KindExploration, "region", 0.15},
	{intent.KindExploration, "targets", 0.15},
	{intent.KindExploration, "survey", 0.15},
	{intent.KindExploration, "rank", 0.20},
	{intent.KindExploration, "simulate", 0.20},
	{intent.KindExploration, "simulation", 0.20},
	{intent.KindExploration, "analysis", 0.15},
	{intent.KindExploration, "prospects", 0.20},
	{intent.KindExploration, "analyze", 0.15},
	{intent.KindExploration, "analyse", 0.15},

	{intent.KindOptimization, "optimize", 0.55},
	{intent.KindOptimization, "optimise", 0.55},
	{intent.KindOptimization, "optimization", 0.50},
	{intent.KindOptimization, "optimisation", 0.50},
	{intent.KindOptimization, "optimal", 0.30},
	{intent.KindOptimization, "maximize", 0.40},
	{intent.KindOptimization, "maximise", 0.40},
	{intent.KindOptimization, "minimize", 0.40},
	{intent.KindOptimization, "minimise", 0.40},
	{intent.KindOptimization, "best parameters", 0.30},
	{intent.KindOptimization, "genetic", 0.20},
	{intent.KindOptimization, "particle swarm", 0.20},
	{intent.KindOptimization, "pso", 0.20},
	{intent.KindOptimization, "annealing", 0.20},
	{intent.KindOptimization, "differential evolution", 0.20},
}

// Scoring adjustments
const (
	parameterWeight  = 0.15
	maxParameterGain = 0.45
	questionPenalty  = 0.25
)

var structuredKinds = []intent.Kind{intent.KindExtraction, intent.KindExploration, intent.KindOptimization}

var interrogatives = []string{"how", "what", "why", "which", "when", "where", "who", "explain", "describe", "tell", "can", "could", "should", "is", "are", "does", "do"}

// matcher is an Aho-Corasick automaton over the padded keyword terms
type matcher struct {
	ac    *ahocorasick.Matcher
	terms []keyword
}

func newMatcher(kws []keyword) *matcher {
	dict := make([]string, len(kws))
	for i, k := range kws {
		dict[i] = " " + normalizeText(k.term) + " "
	}
	return &matcher{ac: ahocorasick.NewStringMatcher(dict), terms: kws}
}

// scores sums keyword weights per kind. Each term counts once.
func (m *matcher) scores(normalized string) map[intent.Kind]float64 {
	out := make(map[intent.Kind]float64, len(structuredKinds))
	for _, idx := range m.ac.Match([]byte(normalized)) {
		if idx < 0 || idx >= len(m.terms) {
			continue
		}
		k := m.terms[idx]
		out[k.kind] += k.weight
	}
	return out
}

// normalizeText lowercases, maps non-alphanumerics to spaces and pads with
// one space on each side so padded terms only match whole words
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

func isQuestion(text string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	if strings.HasSuffix(t, "?") {
		return true
	}
	first := strings.Fields(normalizeText(t))
	if len(first) == 0 {
		return false
	}
	for _, w := range interrogatives {
		if first[0] == w {
			return true
		}
	}
	return false
}

const number = `(\d+(?:\.\d+)?)`

// unit-bound numbers, checked before name-bound ones
var unitPatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{process.FieldTemperature, regexp.MustCompile(number + `\s*(?:°\s*c|º\s*c|degrees?\s*(?:c|celsius)?|celsius|c)\b`)},
	{process.FieldAcidConcentration, regexp.MustCompile(number + `\s*(?:mol\s*/\s*l|mol/litre|molar|m)\b`)},
	{process.FieldVoltage, regexp.MustCompile(number + `\s*(?:volts?|v)\b`)},
	{process.FieldLeachingTime, regexp.MustCompile(number + `\s*(?:hours?|hrs?|h)\b`)},
	{process.FieldOreGrade, regexp.MustCompile(number + `\s*(?:%|percent)`)},
}

var namePatterns = []struct {
	field string
	re    *regexp.Regexp
}{
	{process.FieldOreGrade, regexp.MustCompile(`(?:ore\s+grade|grade)\s*(?:of|=|:|at|is)?\s*` + number)},
	{process.FieldLeachingTime, regexp.MustCompile(`(?:leaching\s+time|leach\s+time|leaching|time)\s*(?:of|=|:|at|is|for)?\s*` + number)},
	{process.FieldAcidConcentration, regexp.MustCompile(`(?:acid\s+concentration|acid)\s*(?:of|=|:|at|is)?\s*` + number)},
	{process.FieldTemperature, regexp.MustCompile(`(?:temperature|temp)\s*(?:of|=|:|at|is)?\s*` + number)},
	{process.FieldVoltage, regexp.MustCompile(`(?:voltage|potential)\s*(?:of|=|:|at|is)?\s*` + number)},
}

// extractParameters finds "<number><unit>" and "<name> <number>" pairs.
// The first unit-bound match per field wins over any name-bound one.
func extractParameters(text string) map[string]float64 {
	lower := strings.ToLower(text)
	found := map[string]float64{}
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				found[p.field] = v
			}
		}
	}
	for _, p := range namePatterns {
		if _, ok := found[p.field]; ok {
			continue
		}
		if m := p.re.FindStringSubmatch(lower); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				found[p.field] = v
			}
		}
	}
	return found
}

func containsWord(normalized string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(normalized, " "+w+" ") {
			return true
		}
	}
	return false
}

func detectMineralType(normalized string) (process.MineralType, bool) {
	sulfide := containsWord(normalized, "sulfide", "sulphide", "sulfides", "sulphides", "chalcopyrite")
	switch {
	case containsWord(normalized, "cobalt", "co"):
		return process.CobaltSulfide, true
	case sulfide:
		return process.CopperSulfide, true
	case containsWord(normalized, "oxide", "oxides"):
		return process.CopperOxide, true
	}
	return process.CopperOxide, false
}

func detectModel(normalized string) string {
	switch {
	case containsWord(normalized, "random forest", "rf"):
		return "random_forest"
	case containsWord(normalized, "neural network", "neural net", "nn"):
		return "neural_network"
	case containsWord(normalized, "gradient boosting", "xgboost", "boosted"):
		return "gradient_boosting"
	}
	return ""
}

func detectAlgorithm(normalized string) string {
	switch {
	case containsWord(normalized, "genetic", "ga"):
		return optimization.Genetic
	case containsWord(normalized, "particle swarm", "pso", "swarm"):
		return optimization.ParticleSwarm
	case containsWord(normalized, "annealing", "sa"):
		return optimization.SimulatedAnnealing
	case containsWord(normalized, "differential evolution", "de"):
		return optimization.DifferentialEvolution
	}
	return ""
}

var metricWords = []struct {
	metric string
	words  []string
}{
	{process.MetricPurity, []string{"purity", "pure"}},
	{process.MetricCost, []string{"cost", "costs", "cheaper", "expense"}},
	{process.MetricEnergy, []string{"energy", "power", "kwh"}},
	{process.MetricEfficiency, []string{"efficiency", "efficient"}},
	{process.MetricRecovery, []string{"recovery", "yield"}},
}

func detectMetric(normalized string) (string, bool) {
	for _, m := range metricWords {
		if containsWord(normalized, m.words...) {
			return m.metric, true
		}
	}
	return process.MetricRecovery, false
}

func detectDirection(normalized, metric string) optimization.Direction {
	switch {
	case containsWord(normalized, "minimize", "minimise", "reduce", "lower", "cut", "decrease"):
		return optimization.Minimize
	case containsWord(normalized, "maximize", "maximise", "increase", "raise", "boost"):
		return optimization.Maximize
	}
	return optimization.DefaultDirection(metric)
}

// Classifier turns free text into an Intent. It is safe for concurrent use.
type Classifier struct {
	m         *matcher
	threshold float64
}

// DefaultThreshold is the minimum structured confidence
const DefaultThreshold = 0.5

// NewClassifier builds the keyword automaton. A threshold outside (0, 1]
// falls back to DefaultThreshold.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 || threshold > 1 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	return &Classifier{m: newMatcher(keywords), threshold: threshold}
}

// Threshold in use
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify picks the best structured intent, or Question when none reaches
// the threshold. Ties go to extraction, then exploration, then optimization.
func (c *Classifier) Classify(text string) intent.Intent {
	normalized := normalizeText(text)
	params := extractParameters(text)
	scores := c.m.scores(normalized)
	scores[intent.KindExtraction] += math.Min(maxParameterGain, parameterWeight*float64(len(params)))
	scores[intent.KindOptimization] += math.Min(0.15, 0.05*float64(len(params)))
	if isQuestion(text) && len(params) == 0 {
		for _, k := range structuredKinds {
			scores[k] -= questionPenalty
		}
	}

	best, bestScore := intent.KindQuestion, 0.0
	for _, k := range structuredKinds {
		s := math.Max(0, math.Min(1, scores[k]))
		scores[k] = s
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	if bestScore < c.threshold {
		return intent.Question{Text: text, Score: round(1-bestScore, 3)}
	}
	bestScore = round(bestScore, 3)

	switch best {
	case intent.KindExtraction:
		return buildExtraction(normalized, params, bestScore)
	case intent.KindExploration:
		return buildExploration(normalized, bestScore)
	}
	return buildOptimization(normalized, bestScore)
}

func buildExtraction(normalized string, found map[string]float64, score float64) intent.ExtractionRequest {
	req := intent.ExtractionRequest{Model: detectModel(normalized), Score: score}
	values := make([]float64, len(process.Dimensions))
	for i, name := range process.Dimensions {
		if v, ok := found[name]; ok {
			values[i] = v
			continue
		}
		values[i], _ = intent.DefaultValue(name)
		req.Defaulted = append(req.Defaulted, name)
	}
	mineral, ok := detectMineralType(normalized)
	if !ok {
		req.Defaulted = append(req.Defaulted, process.FieldMineralType)
	}
	req.Parameters = process.Parameters{
		OreGrade:          values[0],
		LeachingTime:      values[1],
		AcidConcentration: values[2],
		Temperature:       values[3],
		Voltage:           values[4],
		MineralType:       mineral,
	}
	return req
}

func buildExploration(normalized string, score float64) intent.ExplorationRequest {
	req := intent.ExplorationRequest{TargetMineral: geology.Copper, Score: score}
	switch {
	case containsWord(normalized, "cobalt", "co"):
		req.TargetMineral = geology.Cobalt
	case containsWord(normalized, "copper", "cu"):
	default:
		req.Defaulted = append(req.Defaulted, "target_mineral")
	}
	return req
}

func buildOptimization(normalized string, score float64) intent.OptimizationRequest {
	req := intent.OptimizationRequest{Algorithm: detectAlgorithm(normalized), Score: score}
	metric, ok := detectMetric(normalized)
	if !ok {
		req.Defaulted = append(req.Defaulted, "metric")
	}
	mineral, ok := detectMineralType(normalized)
	if !ok {
		req.Defaulted = append(req.Defaulted, process.FieldMineralType)
	}
	if req.Algorithm == "" {
		req.Defaulted = append(req.Defaulted, "algorithm")
	}
	req.Objective = optimization.ObjectiveSpec{
		Metric:      metric,
		Direction:   detectDirection(normalized, metric),
		MineralType: mineral,
	}
	sort.Strings(req.Defaulted)
	return req
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
