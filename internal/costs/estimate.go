// Package costs implements pre-submission cost estimation, real-time
// cost tracking for running simulations, and the daily billed-cost
// aggregation with budget evaluation.
package costs

import "math"

// baseHourlyRates is the static on-demand rate lookup by instance type.
var baseHourlyRates = map[string]float64{
	"c7g.4xlarge":  0.58,
	"c7g.8xlarge":  1.20,
	"c7g.16xlarge": 2.40,
	"m7g.8xlarge":  1.39,
	"m7g.16xlarge": 2.78,
	"r7g.8xlarge":  1.71,
	"c6i.4xlarge":  1.32,
	"c6i.8xlarge":  2.64,
	"c6i.16xlarge": 5.28,
	"m6i.8xlarge":  3.07,
}

// defaultHourlyRate is used for instance types missing from the table.
const defaultHourlyRate = 1.20

// costMultipliers de-rate non-full-chemistry simulation types.
var costMultipliers = map[string]float64{
	"fullchem":  1.0,
	"tropchem":  0.9,
	"aerosol":   0.8,
	"transport": 0.6,
	"ch4":       0.7,
	"co2":       0.7,
}

// storageRatePerDay approximates output storage cost per simulated day.
const storageRatePerDay = 0.05

// wallClockPerSimDay is the empirical wall-clock-hours-per-simulated-day
// factor feeding the runtime-hours estimate.
const wallClockPerSimDay = 0.5

// BaseHourlyRate looks up the on-demand rate for an instance type.
func BaseHourlyRate(instanceType string) float64 {
	if r, ok := baseHourlyRates[instanceType]; ok {
		return r
	}
	return defaultHourlyRate
}

// CostMultiplier returns the simulation-type de-rating factor.
func CostMultiplier(simulationType string) float64 {
	if m, ok := costMultipliers[simulationType]; ok {
		return m
	}
	return 1.0
}

// RuntimeHours estimates billable compute hours for a run.
func RuntimeHours(durationDays int, simulationType string) float64 {
	return float64(durationDays) * CostMultiplier(simulationType) * wallClockPerSimDay
}

// Estimate computes the pre-submission cost estimate, rounded to cents:
// baseRate x runtimeHours + storage per simulated day.
func Estimate(instanceType, simulationType string, durationDays int) float64 {
	compute := BaseHourlyRate(instanceType) * RuntimeHours(durationDays, simulationType)
	storage := storageRatePerDay * float64(durationDays)
	return roundCents(compute + storage)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
