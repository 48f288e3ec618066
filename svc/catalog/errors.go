package catalog

import "errors"

var (
	// ErrPlanNotFound is returned when no plan exists for the requested ID.
	ErrPlanNotFound = errors.New("catalog: plan not found")

	// ErrInvalidPlan is returned when a plan definition fails validation.
	ErrInvalidPlan = errors.New("catalog: invalid plan definition")

	// ErrLoadFailed is returned when a plan source cannot be read.
	ErrLoadFailed = errors.New("catalog: failed to load plans")
)
