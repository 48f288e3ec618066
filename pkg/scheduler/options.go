package scheduler

import (
	"log/slog"
	"time"
)

type schedulerOptions struct {
	interval   time.Duration
	runOnStart bool
	logger     *slog.Logger
}

// Option configures a Scheduler.
type Option func(*schedulerOptions)

// WithInterval sets the tick interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithRunOnStart controls whether the job runs immediately on Start
// instead of waiting for the first tick. Defaults to true so that work
// due during downtime is picked up as soon as the process restarts.
func WithRunOnStart(run bool) Option {
	return func(o *schedulerOptions) {
		o.runOnStart = run
	}
}

// WithLogger supplies an external slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *schedulerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
