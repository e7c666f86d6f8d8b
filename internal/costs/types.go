package costs

import "time"

// CostRecord is one row per user x resource x date. ResourceID is a
// composite "{type}#{id}#{date}" sort key; TimePeriod is the month
// bucket backing the aggregation GSI.
type CostRecord struct {
	UserID     string    `dynamodbav:"user_id"`     // PK
	ResourceID string    `dynamodbav:"resource_id"` // SK
	Cost       float64   `dynamodbav:"cost"`
	Date       string    `dynamodbav:"date"`        // YYYY-MM-DD
	TimePeriod string    `dynamodbav:"time_period"` // YYYY-MM
	CreatedAt  time.Time `dynamodbav:"created_at"`
}

// Budget statuses
const (
	BudgetStatusActive   = "ACTIVE"
	BudgetStatusInactive = "INACTIVE"
)

// Budget is a user-defined spending limit with an alert threshold.
type Budget struct {
	UserID          string    `dynamodbav:"user_id"`   // PK
	BudgetID        string    `dynamodbav:"budget_id"` // SK
	Name            string    `dynamodbav:"name"`
	Amount          float64   `dynamodbav:"amount"`
	TimePeriod      string    `dynamodbav:"time_period"`     // e.g. MONTHLY
	AlertThreshold  float64   `dynamodbav:"alert_threshold"` // percentage
	PeriodStart     time.Time `dynamodbav:"period_start"`
	Status          string    `dynamodbav:"status"`
	LastAlertPeriod string    `dynamodbav:"last_alert_period,omitempty"` // YYYY-MM of the last alert sent
	CreatedAt       time.Time `dynamodbav:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at"`
}

// SimulationResourceID builds the composite sort key for a simulation
// cost record on a given date.
func SimulationResourceID(simulationID, date string) string {
	return "simulation#" + simulationID + "#" + date
}
