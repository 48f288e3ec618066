package lifecycle

import "time"

// Config holds the sweep settings sourced from the environment.
type Config struct {
	// SweepInterval is how often the sweeper runs. It must be no coarser
	// than the smallest reminder lead in the plan catalog, or reminder
	// windows can be skipped entirely.
	SweepInterval time.Duration `env:"LIFECYCLE_SWEEP_INTERVAL" envDefault:"15m"`
	// ReminderMargin widens the reminder window to absorb sweep start
	// jitter.
	ReminderMargin time.Duration `env:"LIFECYCLE_REMINDER_MARGIN" envDefault:"1m"`
}
