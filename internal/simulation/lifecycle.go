package simulation

import "time"

// fallbackRuntime bounds the progress estimate when no expected
// duration was stored at submission.
const fallbackRuntime = 24 * time.Hour

// MapBatchStatus translates the external scheduler status into the
// internal lifecycle state. Unrecognized statuses map to UNKNOWN so a
// polling loop never crashes on a new value.
func MapBatchStatus(external string) Status {
	switch external {
	case "SUBMITTED", "PENDING", "RUNNABLE":
		return StatusQueued
	case "STARTING", "RUNNING":
		return StatusRunning
	case "SUCCEEDED":
		return StatusProcessingResults
	case "FAILED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// EstimateProgress returns the progress percentage for a running job:
// floor(elapsed/expected*100), capped at 99 until a terminal SUCCEEDED
// transition forces 100. A non-positive expected duration falls back
// to 24h.
func EstimateProgress(elapsed, expected time.Duration) int {
	if expected <= 0 {
		expected = fallbackRuntime
	}
	if elapsed <= 0 {
		return 0
	}
	p := int(elapsed * 100 / expected)
	if p > 99 {
		p = 99
	}
	return p
}
