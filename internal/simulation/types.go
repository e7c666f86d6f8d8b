package simulation

import "time"

// Status is the simulation lifecycle state.
type Status string

const (
	StatusSubmitted         Status = "SUBMITTED"
	StatusValidating        Status = "VALIDATING"
	StatusQueued            Status = "QUEUED"
	StatusRunning           Status = "RUNNING"
	StatusProcessingResults Status = "PROCESSING_RESULTS"
	StatusCompleted         Status = "COMPLETED"
	StatusFailed            Status = "FAILED"
	StatusCancelled         Status = "CANCELLED"
	StatusUnknown           Status = "UNKNOWN"
)

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Config is the user-supplied simulation configuration. It is persisted
// verbatim to the config location and echoed onto the record.
type Config struct {
	SimulationType string `dynamodbav:"simulation_type" json:"simulationType"`
	InstanceType   string `dynamodbav:"instance_type" json:"instanceType"`
	DurationDays   int    `dynamodbav:"duration_days" json:"durationDays"`
	Resolution     string `dynamodbav:"resolution,omitempty" json:"resolution,omitempty"`
	UseSpot        bool   `dynamodbav:"use_spot,omitempty" json:"useSpot,omitempty"`
}

// ResultSummary is attached to the record by the results processor.
type ResultSummary struct {
	OutputFiles    int          `dynamodbav:"output_files" json:"outputFiles"`
	LogFiles       int          `dynamodbav:"log_files" json:"logFiles"`
	ConfigFiles    int          `dynamodbav:"config_files" json:"configFiles"`
	RestartFiles   int          `dynamodbav:"restart_files" json:"restartFiles"`
	TotalSizeBytes int64        `dynamodbav:"total_size_bytes" json:"totalSizeBytes"`
	Performance    *Performance `dynamodbav:"performance,omitempty" json:"performance,omitempty"`
}

// Performance carries the authoritative timing numbers from the run
// manifest when one was written by the container.
type Performance struct {
	SimulatedDays   float64 `dynamodbav:"simulated_days" json:"simulated_days"`
	WallTimeSeconds float64 `dynamodbav:"wall_time_seconds" json:"wall_time_seconds"`
	CoreCount       int     `dynamodbav:"core_count,omitempty" json:"core_count,omitempty"`
}

// Simulation is the item stored in the simulations DynamoDB table.
// Keyed by user_id (PK) + simulation_id (SK). Every update is
// conditional on version, so concurrent writers cannot silently lose
// updates.
type Simulation struct {
	UserID            string         `dynamodbav:"user_id"`       // PK
	SimulationID      string         `dynamodbav:"simulation_id"` // SK
	Name              string         `dynamodbav:"simulation_name,omitempty"`
	Status            Status         `dynamodbav:"status"`
	StatusDetails     string         `dynamodbav:"status_details,omitempty"`
	Progress          int            `dynamodbav:"progress"`
	BatchJobID        string         `dynamodbav:"batch_job_id,omitempty"` // set once, immutable
	ConfigLocation    string         `dynamodbav:"config_location,omitempty"`
	OutputLocation    string         `dynamodbav:"output_location,omitempty"`
	Config            Config         `dynamodbav:"config"`
	CostEstimate      float64        `dynamodbav:"cost_estimate,omitempty"`
	ResultSummary     *ResultSummary `dynamodbav:"result_summary,omitempty"`
	ExpectedRuntimeMS int64          `dynamodbav:"expected_runtime_ms,omitempty"`
	Version           int64          `dynamodbav:"version"`
	CreatedAt         time.Time      `dynamodbav:"created_at"`
	UpdatedAt         time.Time      `dynamodbav:"updated_at"`
	StartedAt         *time.Time     `dynamodbav:"started_at,omitempty"`
	CompletedAt       *time.Time     `dynamodbav:"completed_at,omitempty"`
}
