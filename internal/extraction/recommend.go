package extraction

import (
	"fmt"

	"warpmine/domain/process"
)

// Result thresholds for performance and cost messages
const (
	excellentRecovery = 90.0
	excellentPurity   = 95.0
	highCost          = 550.0
)

// Recommend compares each input against its sweet-spot band and then adds
// result-driven advice. Output order is stable: inputs in Dimensions order,
// then cost, then overall performance.
func Recommend(p process.Parameters, r process.ExtractionResult) []string {
	var recs []string

	if p.OreGrade < 2.0 {
		recs = append(recs, fmt.Sprintf(
			"Ore grade %.1f%% is below 2.0%%: consider beneficiation to upgrade the feed before leaching", p.OreGrade))
	}

	switch {
	case p.LeachingTime < 8:
		recs = append(recs, fmt.Sprintf(
			"Increase leaching time from %.0f h to %.0f-%.0f h for better recovery",
			p.LeachingTime, p.LeachingTime+2, p.LeachingTime+4))
	case p.LeachingTime > 24:
		recs = append(recs, fmt.Sprintf(
			"Leaching beyond 24 h (currently %.0f h) gives diminishing returns: shorten the cycle to raise throughput", p.LeachingTime))
	}

	switch {
	case p.AcidConcentration < 1.2:
		recs = append(recs, fmt.Sprintf(
			"Raise acid concentration from %.2f to 1.5-1.8 mol/L for complete dissolution", p.AcidConcentration))
	case p.AcidConcentration > 2.0:
		recs = append(recs, fmt.Sprintf(
			"Reduce acid concentration from %.2f to 1.5-1.8 mol/L to minimize reagent costs", p.AcidConcentration))
	}

	switch {
	case p.Temperature < 60:
		recs = append(recs, fmt.Sprintf(
			"Increase temperature from %.0f°C to 65-70°C to improve leaching kinetics", p.Temperature))
	case p.Temperature > 75:
		recs = append(recs, fmt.Sprintf(
			"Lower temperature from %.0f°C to 65-75°C: gains plateau above 75°C while energy use keeps rising", p.Temperature))
	}

	switch {
	case p.Voltage < 2.0:
		recs = append(recs, fmt.Sprintf(
			"Increase electrowinning voltage from %.2f V to 2.2-2.4 V for higher purity", p.Voltage))
	case p.Voltage > 2.4:
		recs = append(recs, fmt.Sprintf(
			"Reduce electrowinning voltage from %.2f V to 2.2-2.4 V to limit energy use and impurity co-deposition", p.Voltage))
	}

	if r.ProcessingCost > highCost {
		recs = append(recs, fmt.Sprintf(
			"Processing cost of $%.0f per tonne is high: review reagent consumption and heating load", r.ProcessingCost))
	}

	if r.RecoveryRate > excellentRecovery && r.Purity > excellentPurity {
		recs = append(recs, "Excellent performance! Consider scaling up or optimizing for cost reduction")
	}

	if len(recs) == 0 {
		recs = append(recs, "Process parameters are well-optimized for current conditions")
	}
	return recs
}
