package validation

import (
	"fmt"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// instanceFamilies lists the instance families the job definitions
// support; anything else is rejected before we touch the scheduler.
var instanceFamilies = []string{"c7g", "m7g", "r7g", "c6i", "m6i", "r6i"}

// New returns a configured validator with custom struct-level
// validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// reject instance types outside the supported families before
	// they reach the scheduler
	v.RegisterStructValidation(simulationConfigStructValidation, SimulationConfig{})

	return v
}

func simulationConfigStructValidation(sl validatorv10.StructLevel) {
	cfg := sl.Current().Interface().(SimulationConfig)

	family, _, ok := strings.Cut(cfg.InstanceType, ".")
	if !ok {
		sl.ReportError(cfg.InstanceType, "instanceType", "InstanceType", "instance_type_format",
			fmt.Sprintf("instance type %q is not family.size", cfg.InstanceType))
		return
	}
	for _, f := range instanceFamilies {
		if family == f {
			return
		}
	}
	sl.ReportError(cfg.InstanceType, "instanceType", "InstanceType", "instance_family_supported",
		fmt.Sprintf("instance family %q is not supported", family))
}
