package assistant

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/domain/intent"
	"warpmine/domain/optimization"
	"warpmine/domain/process"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

var fieldLabels = map[string]string{
	process.FieldOreGrade:          "ore grade",
	process.FieldLeachingTime:      "leaching time",
	process.FieldAcidConcentration: "acid concentration",
	process.FieldTemperature:       "temperature",
	process.FieldVoltage:           "voltage",
	process.FieldMineralType:       "ore type",
	"target_mineral":               "target mineral",
	"metric":                       "objective metric",
	"algorithm":                    "algorithm",
}

var fieldUnits = map[string]string{
	process.FieldOreGrade:          "%",
	process.FieldLeachingTime:      " h",
	process.FieldAcidConcentration: " mol/L",
	process.FieldTemperature:       " °C",
	process.FieldVoltage:           " V",
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return strings.ReplaceAll(field, "_", " ")
}

func writeDefaulted(b *strings.Builder, defaulted []string, describe func(string) string) {
	if len(defaulted) == 0 {
		return
	}
	parts := make([]string, len(defaulted))
	for i, f := range defaulted {
		parts[i] = describe(f)
	}
	fmt.Fprintf(b, "\n_Defaults used for: %s._\n", strings.Join(parts, ", "))
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s:**\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func renderExtraction(r process.ExtractionResult, defaulted []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Extraction simulation (%s)\n\n", r.Model)
	fmt.Fprintf(&b, "- Recovery rate: %.1f%%\n", r.RecoveryRate)
	fmt.Fprintf(&b, "- Purity: %.2f%%\n", r.Purity)
	fmt.Fprintf(&b, "- Processing cost: $%.2f/t\n", r.ProcessingCost)
	fmt.Fprintf(&b, "- Energy consumption: %.1f kWh/t\n", r.EnergyConsumption)
	fmt.Fprintf(&b, "- Overall efficiency: %.1f%%\n", r.OverallEfficiency)
	fmt.Fprintf(&b, "- Processing time: %.1f h, throughput %.1f t/day\n", r.ProcessingTime, r.Throughput)

	p := r.Parameters
	fmt.Fprintf(&b, "\nInputs: %.2f%% grade, %.1f h, %.2f mol/L acid, %.0f °C, %.2f V (%s)\n",
		p.OreGrade, p.LeachingTime, p.AcidConcentration, p.Temperature, p.Voltage, p.MineralType)
	writeDefaulted(&b, defaulted, func(f string) string {
		if v, ok := p.Value(f); ok {
			return fmt.Sprintf("%s %g%s", label(f), v, fieldUnits[f])
		}
		if f == process.FieldMineralType {
			return fmt.Sprintf("%s %s", label(f), p.MineralType)
		}
		return label(f)
	})
	writeList(&b, "Recommendations", r.Recommendations)
	return b.String()
}

func renderExploration(a geology.Analysis, defaulted []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s prospectivity\n\n", titleCase(string(a.TargetMineral)))
	b.WriteString("| Rank | Region | Likelihood | Confidence | Action |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, r := range a.Regions {
		fmt.Fprintf(&b, "| %d | %s | %.1f%% | %s (%.0f-%.0f%%) | %s |\n",
			r.Rank, r.RegionID, r.Likelihood*100, r.Confidence.Level,
			r.Confidence.Lower*100, r.Confidence.Upper*100, actionLabel(r.Action))
	}
	fmt.Fprintf(&b, "\n%s\n", a.Summary)
	if a.Synthesized {
		fmt.Fprintf(&b, "\n_Regions synthesized with seed %d._\n", a.Seed)
	}
	writeDefaulted(&b, defaulted, func(f string) string {
		if f == "target_mineral" {
			return fmt.Sprintf("%s %s", label(f), a.TargetMineral)
		}
		return label(f)
	})
	writeList(&b, "Recommendations", a.Recommendations)
	return b.String()
}

func renderOptimization(r optimization.Result, defaulted []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Optimization: %s %s (%s)\n\n", r.Direction, r.Metric, strings.ReplaceAll(r.Algorithm, "_", " "))
	fmt.Fprintf(&b, "- Best value: %.3f\n", r.BestValue)
	if r.BaselineValue != nil {
		fmt.Fprintf(&b, "- Baseline value: %.3f\n", *r.BaselineValue)
	}
	if r.ImprovementPct != nil {
		fmt.Fprintf(&b, "- Improvement: %+.1f%%\n", *r.ImprovementPct)
	}
	fmt.Fprintf(&b, "- Iterations: %d (%s), evaluations: %d\n", r.Iterations, r.StopReason, r.Evaluations)

	b.WriteString("\n**Best parameters:**\n")
	vec := r.BestParameters.Vector()
	for i, f := range process.Dimensions {
		fmt.Fprintf(&b, "- %s: %.2f%s\n", label(f), vec[i], fieldUnits[f])
	}
	writeDefaulted(&b, defaulted, func(f string) string {
		switch f {
		case "metric":
			return fmt.Sprintf("%s %s", label(f), r.Metric)
		case "algorithm":
			return fmt.Sprintf("%s %s", label(f), r.Algorithm)
		case process.FieldMineralType:
			return fmt.Sprintf("%s %s", label(f), r.BestParameters.MineralType)
		}
		return label(f)
	})
	writeList(&b, "Implementation plan", r.Recommendations)
	return b.String()
}

func renderInputProblem(kind intent.Kind, err error) string {
	reason := err.Error()
	var fe *core.FieldError
	if errors.As(err, &fe) {
		reason = fmt.Sprintf("%s: %s", label(fe.Field), fe.Reason)
	}
	return fmt.Sprintf("I couldn't run the %s request: %s.", kind, reason)
}

func actionLabel(a geology.Action) string {
	switch a {
	case geology.ActionDrill:
		return "drill"
	case geology.ActionSurveyFirst:
		return "survey first"
	}
	return "no action"
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ToHTML renders assistant markdown for the web front end
func ToHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(bytes.TrimSpace(markdown.ToHTML([]byte(md), p, r)))
}
