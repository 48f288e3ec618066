package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Plan describes one purchasable subscription tier.
type Plan struct {
	ID                uuid.UUID
	Tier              string
	DurationDays      int
	MaxVisibleTargets int
	ReminderLeadHours int
	PriceCents        int64
	Currency          string
	Active            bool
}

// Duration returns the subscription length granted by the plan.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}

// ReminderLead returns how far before expiry the renewal reminder fires.
func (p Plan) ReminderLead() time.Duration {
	return time.Duration(p.ReminderLeadHours) * time.Hour
}

// Validate checks that the plan definition is internally consistent.
func (p Plan) Validate() error {
	switch {
	case p.ID == uuid.Nil:
		return fmt.Errorf("%w: missing plan ID", ErrInvalidPlan)
	case p.Tier == "":
		return fmt.Errorf("%w: plan %s has no tier", ErrInvalidPlan, p.ID)
	case p.DurationDays <= 0:
		return fmt.Errorf("%w: plan %s duration must be positive", ErrInvalidPlan, p.ID)
	case p.MaxVisibleTargets < 0:
		return fmt.Errorf("%w: plan %s visible targets must not be negative", ErrInvalidPlan, p.ID)
	case p.ReminderLeadHours < 0:
		return fmt.Errorf("%w: plan %s reminder lead must not be negative", ErrInvalidPlan, p.ID)
	case p.PriceCents < 0:
		return fmt.Errorf("%w: plan %s price must not be negative", ErrInvalidPlan, p.ID)
	case p.Currency == "":
		return fmt.Errorf("%w: plan %s has no currency", ErrInvalidPlan, p.ID)
	}
	return nil
}

// Source resolves plan definitions. Implementations must be safe for
// concurrent use and must return ErrPlanNotFound for unknown IDs.
type Source interface {
	// GetPlan returns the plan with the given ID.
	GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error)

	// ListPlans returns every plan ordered by price ascending. Inactive
	// plans are included; callers decide whether to display them.
	ListPlans(ctx context.Context) ([]Plan, error)
}
