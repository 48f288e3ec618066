package catalog

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type planFile struct {
	Plans []struct {
		ID                string `yaml:"id"`
		Tier              string `yaml:"tier"`
		DurationDays      int    `yaml:"duration_days"`
		MaxVisibleTargets int    `yaml:"max_visible_targets"`
		ReminderLeadHours int    `yaml:"reminder_lead_hours"`
		PriceCents        int64  `yaml:"price_cents"`
		Currency          string `yaml:"currency"`
		Active            bool   `yaml:"active"`
	} `yaml:"plans"`
}

// NewFileSource loads a YAML plan catalog from disk. The file is read once;
// changing the catalog requires a restart.
func NewFileSource(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("%w: %s defines no plans", ErrLoadFailed, path)
	}

	byID := make(map[uuid.UUID]Plan, len(file.Plans))
	for _, raw := range file.Plans {
		id, err := uuid.Parse(raw.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: plan ID %q is not a UUID", ErrInvalidPlan, raw.ID)
		}
		plan := Plan{
			ID:                id,
			Tier:              raw.Tier,
			DurationDays:      raw.DurationDays,
			MaxVisibleTargets: raw.MaxVisibleTargets,
			ReminderLeadHours: raw.ReminderLeadHours,
			PriceCents:        raw.PriceCents,
			Currency:          raw.Currency,
			Active:            raw.Active,
		}
		if err := plan.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[id]; exists {
			return nil, fmt.Errorf("%w: duplicate plan ID %s", ErrInvalidPlan, id)
		}
		byID[id] = plan
	}

	return &memorySource{plans: byID}, nil
}
