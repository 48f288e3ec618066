package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradesignal/backend/pkg/pg"
)

type pgSource struct {
	pool *pgxpool.Pool
}

// NewPgSource returns a Source backed by the plans table.
func NewPgSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	const query = `
		SELECT id, tier, duration_days, max_visible_targets, reminder_lead_hours,
		       price_cents, currency, active
		FROM plans
		WHERE id = $1`

	var plan Plan
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&plan.ID, &plan.Tier, &plan.DurationDays, &plan.MaxVisibleTargets,
		&plan.ReminderLeadHours, &plan.PriceCents, &plan.Currency, &plan.Active,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return &plan, nil
}

func (s *pgSource) ListPlans(ctx context.Context) ([]Plan, error) {
	const query = `
		SELECT id, tier, duration_days, max_visible_targets, reminder_lead_hours,
		       price_cents, currency, active
		FROM plans
		ORDER BY price_cents, tier`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var plan Plan
		if err := rows.Scan(
			&plan.ID, &plan.Tier, &plan.DurationDays, &plan.MaxVisibleTargets,
			&plan.ReminderLeadHours, &plan.PriceCents, &plan.Currency, &plan.Active,
		); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return plans, nil
}
