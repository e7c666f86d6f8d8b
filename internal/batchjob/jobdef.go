// Package batchjob maps a simulation configuration onto an AWS Batch
// submission: job definition by architecture, resource requests from
// the instance type, and a timeout from duration and simulation type.
package batchjob

import (
	"math"
	"strings"
	"time"
)

// gravitonPrefixes identify ARM64 instance families that run the
// Graviton job definition.
var gravitonPrefixes = []string{"c7g", "m7g", "r7g"}

// timeoutMultipliers de-rate the wall-clock estimate for simulation
// types cheaper than full chemistry.
var timeoutMultipliers = map[string]float64{
	"fullchem":  1.0,
	"tropchem":  0.8,
	"aerosol":   0.7,
	"transport": 0.5,
	"ch4":       0.6,
	"co2":       0.6,
}

// resolutionFactors scale the runtime estimate with grid resolution.
var resolutionFactors = map[string]float64{
	"4x5":       1.0,
	"2x2.5":     2.5,
	"0.5x0.625": 5.0,
	"nested":    5.0,
	"c90":       4.0,
	"c180":      8.0,
}

const (
	// baseSecondsPerDay is the empirical wall-clock cost of one
	// simulated day at 4x5 full chemistry.
	baseSecondsPerDay = 3600
	// safetyMargin pads the timeout over the runtime estimate.
	safetyMargin = 1.5
	// maxTimeoutSeconds caps any job at 24h.
	maxTimeoutSeconds = 86400
)

// IsGraviton reports whether instanceType belongs to an ARM64 family.
func IsGraviton(instanceType string) bool {
	for _, p := range gravitonPrefixes {
		if strings.HasPrefix(instanceType, p) {
			return true
		}
	}
	return false
}

// DetermineJobDefinition picks the job definition for the instance
// architecture.
func DetermineJobDefinition(instanceType, gravitonDef, x86Def string) string {
	if IsGraviton(instanceType) {
		return gravitonDef
	}
	return x86Def
}

// VCPUs returns the vCPU request for an instance size.
func VCPUs(instanceType string) int32 {
	switch {
	case strings.Contains(instanceType, "16xlarge"):
		return 64
	case strings.Contains(instanceType, "8xlarge"):
		return 32
	case strings.Contains(instanceType, "4xlarge"):
		return 16
	default:
		return 4
	}
}

// MemoryMiB returns the memory request; high-resolution grids need
// twice the default.
func MemoryMiB(resolution string) int32 {
	if resolution == "2x2.5" || resolution == "nested" {
		return 16384
	}
	return 8192
}

// TimeoutMultiplier returns the simulation-type de-rating factor,
// defaulting to full chemistry for unknown types.
func TimeoutMultiplier(simulationType string) float64 {
	if m, ok := timeoutMultipliers[simulationType]; ok {
		return m
	}
	return 1.0
}

// ResolutionFactor returns the grid scaling factor, defaulting to 4x5.
func ResolutionFactor(resolution string) float64 {
	if f, ok := resolutionFactors[resolution]; ok {
		return f
	}
	return 1.0
}

// CalculateTimeout returns the attempt timeout in seconds:
// ceil(3600 x days x typeMultiplier x 1.5), capped at 24h.
func CalculateTimeout(durationDays int, simulationType string) int32 {
	secs := math.Ceil(baseSecondsPerDay * float64(durationDays) * TimeoutMultiplier(simulationType) * safetyMargin)
	if secs > maxTimeoutSeconds {
		secs = maxTimeoutSeconds
	}
	return int32(secs)
}

// ExpectedRuntime is the pre-margin wall-clock estimate stored on the
// record and used for progress estimation while the job runs.
func ExpectedRuntime(durationDays int, simulationType, resolution string) time.Duration {
	secs := baseSecondsPerDay * float64(durationDays) * TimeoutMultiplier(simulationType) * ResolutionFactor(resolution)
	return time.Duration(secs * float64(time.Second))
}
