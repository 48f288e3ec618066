package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memorySource struct {
	mu    sync.RWMutex
	plans map[uuid.UUID]Plan
}

// NewMemorySource returns an in-memory Source seeded with the given plans.
// Panics if no plans are provided or a plan fails validation, since a
// service without a single valid plan cannot sell anything.
func NewMemorySource(plans ...Plan) Source {
	if len(plans) == 0 {
		panic("catalog: at least one plan is required")
	}
	byID := make(map[uuid.UUID]Plan, len(plans))
	for _, plan := range plans {
		if err := plan.Validate(); err != nil {
			panic(err)
		}
		byID[plan.ID] = plan
	}
	return &memorySource{plans: byID}
}

func (s *memorySource) GetPlan(_ context.Context, id uuid.UUID) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return &plan, nil
}

func (s *memorySource) ListPlans(_ context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := make([]Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].PriceCents != plans[j].PriceCents {
			return plans[i].PriceCents < plans[j].PriceCents
		}
		return plans[i].Tier < plans[j].Tier
	})
	return plans, nil
}
