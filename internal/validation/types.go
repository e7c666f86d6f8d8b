package validation

import "github.com/geoschem-cloud/simulation-workflow/internal/simulation"

// SubmitSimulationRequest is the payload for POST /simulations
type SubmitSimulationRequest struct {
	UserID         string            `json:"userId" validate:"required"`
	SimulationName string            `json:"simulationName" validate:"required"`
	Config         *SimulationConfig `json:"simulationConfig" validate:"required"`
}

// SimulationConfig is the user-facing configuration shape.
type SimulationConfig struct {
	SimulationType string `json:"simulationType" validate:"required,oneof=fullchem tropchem aerosol transport ch4 co2"`
	InstanceType   string `json:"instanceType" validate:"required"`
	DurationDays   int    `json:"durationDays" validate:"required,min=1,max=365"`
	Resolution     string `json:"resolution,omitempty" validate:"omitempty,oneof=4x5 2x2.5 0.5x0.625 nested c90 c180"`
	UseSpot        bool   `json:"useSpot,omitempty"`
}

// Domain converts the request config into the persisted shape.
func (c *SimulationConfig) Domain() simulation.Config {
	return simulation.Config{
		SimulationType: c.SimulationType,
		InstanceType:   c.InstanceType,
		DurationDays:   c.DurationDays,
		Resolution:     c.Resolution,
		UseSpot:        c.UseSpot,
	}
}

// CreateBudgetRequest is the payload for POST /budgets
type CreateBudgetRequest struct {
	UserID         string  `json:"userId" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	TimePeriod     string  `json:"timePeriod" validate:"required,oneof=MONTHLY QUARTERLY ANNUALLY"`
	AlertThreshold float64 `json:"alertThreshold" validate:"required,gt=0,lte=100"`
}

// CreateUserRequest is the payload for POST /users
type CreateUserRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// UpdateUserRequest is the payload for PUT /users/:username
type UpdateUserRequest struct {
	Attributes map[string]string `json:"attributes" validate:"required,min=1"`
}
