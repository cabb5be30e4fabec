package extraction

import (
	"math"

	"warpmine/domain/process"
)

// Response curves shared by every model. Each factor is in [0, 1] and is
// nondecreasing up to its plateau.

// gradeFactor rewards richer feed up to 3 % grade
func gradeFactor(grade float64) float64 {
	return 0.6 + 0.4*math.Min(1, math.Max(0, grade)/3.0)
}

// timeFactor is first-order leach kinetics with a 6 h time constant
func timeFactor(hours float64) float64 {
	return 1 - math.Exp(-math.Max(0, hours)/6.0)
}

// acidFactor rises to 2.0 mol/L, plateaus to 2.5, then declines from gangue
// attack and passivation
func acidFactor(acid float64) float64 {
	switch {
	case acid <= 2.0:
		r := 1 - math.Max(0, acid)/2.0
		return 0.3 + 0.7*(1-r*r)
	case acid <= 2.5:
		return 1
	default:
		return math.Max(0.4, 1-0.08*(acid-2.5))
	}
}

// temperatureFactor rises to 75 °C, plateaus to 85 °C, then declines as
// solution losses and reagent decomposition set in
func temperatureFactor(temp float64) float64 {
	switch {
	case temp <= 75:
		r := (75 - math.Max(0, temp)) / 75
		return 0.35 + 0.65*(1-r*r)
	case temp <= 85:
		return 1
	default:
		return math.Max(0.4, 1-0.012*(temp-85))
	}
}

// voltageFactor peaks across the 2.0–2.4 V electrowinning window. Over-voltage
// co-deposits impurities.
func voltageFactor(v float64) float64 {
	switch {
	case v < 2.0:
		d := 2.0 - v
		return math.Max(0, 1-0.25*d*d)
	case v <= 2.4:
		return 1
	default:
		return math.Max(0, 1-0.12*(v-2.4))
	}
}

// mineralFactor scales leachability by ore path
func mineralFactor(m process.MineralType) float64 {
	switch m {
	case process.CopperSulfide:
		return 0.85
	case process.CobaltSulfide:
		return 0.80
	}
	return 1.0
}

// responses is the feature vector the learned models consume
type responses struct {
	grade, time, acid, temp, voltage, mineral float64
}

func responsesOf(p process.Parameters) responses {
	return responses{
		grade:   gradeFactor(p.OreGrade),
		time:    timeFactor(p.LeachingTime),
		acid:    acidFactor(p.AcidConcentration),
		temp:    temperatureFactor(p.Temperature),
		voltage: voltageFactor(p.Voltage),
		mineral: mineralFactor(p.MineralType),
	}
}

func recoveryFromLeach(r responses, leach float64) float64 {
	return 100 * r.mineral * (0.35 + 0.6*leach)
}

func purityFromCell(r responses, cell float64) float64 {
	return 85 + 14*cell - 5*(1-r.mineral)
}

// kernelRecovery in percent
func kernelRecovery(r responses) float64 {
	return recoveryFromLeach(r, r.grade*r.time*r.acid*r.temp)
}

// kernelPurity in percent
func kernelPurity(r responses) float64 {
	return purityFromCell(r, r.voltage*(0.5+0.5*r.temp)*(0.5+0.5*r.acid))
}

// processingCost in USD per tonne. Quadratic in temperature and voltage.
func processingCost(p process.Parameters) float64 {
	dt := math.Max(0, p.Temperature-20)
	cost := 120 + 45*p.AcidConcentration + 12*p.LeachingTime + 0.04*dt*dt + 25*p.Voltage*p.Voltage
	if p.MineralType.IsSulfide() {
		cost += 60
	}
	return cost
}

// energyConsumption in kWh per tonne. Quadratic in temperature and voltage.
func energyConsumption(p process.Parameters) float64 {
	dt := math.Max(0, p.Temperature-20)
	return 6*p.Voltage*p.Voltage*(1+p.LeachingTime/24) + 0.02*dt*dt
}

// Kernel is the noise-free reference response
func Kernel(p process.Parameters) process.Metrics {
	r := responsesOf(p)
	return process.Metrics{
		Recovery: kernelRecovery(r),
		Purity:   kernelPurity(r),
		Cost:     processingCost(p),
		Energy:   energyConsumption(p),
	}
}

// processingTime in hours. Low grade and cold solutions slow the circuit.
func processingTime(p process.Parameters) float64 {
	t := p.LeachingTime
	if p.OreGrade < 1.0 {
		t *= 1.5
	}
	if p.Temperature < 50 {
		t *= 1.3
	}
	return t
}

// throughput in tonnes per day
func throughput(p process.Parameters, hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return 24 / hours * 100 * math.Min(2.0, p.OreGrade/2.0)
}
