// Package ratelimit admits requests through per-key token buckets.
// Each key owns a bucket that starts full and refills on a fixed
// interval; a request spends one token and is rejected once the bucket
// runs dry. The package ships a memory-backed store and an HTTP
// middleware for keying buckets off the client address.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfiguration is returned when the bucket settings are
// unusable.
var ErrInvalidConfiguration = errors.New("ratelimit: invalid configuration")

// Config holds the token bucket settings sourced from the environment.
// The defaults allow a burst of 10 requests and a sustained rate of 10
// per minute per key.
type Config struct {
	// Capacity is the bucket size, i.e. the largest burst a key may spend
	// at once.
	Capacity int `env:"RATELIMIT_CAPACITY" envDefault:"10"`
	// RefillRate is the number of tokens returned per refill interval.
	RefillRate int `env:"RATELIMIT_REFILL_RATE" envDefault:"1"`
	// RefillInterval is how often refills happen.
	RefillInterval time.Duration `env:"RATELIMIT_REFILL_INTERVAL" envDefault:"6s"`
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfiguration)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive", ErrInvalidConfiguration)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive", ErrInvalidConfiguration)
	}
	return nil
}

// Result is the outcome of a single admission check.
type Result struct {
	// Limit is the configured bucket capacity.
	Limit int
	// Remaining is the token count left after this check. Negative means
	// the request was rejected.
	Remaining int
	// ResetAt is when the next refill lands.
	ResetAt time.Time
}

// Allowed reports whether the request may proceed.
func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is the wait until the next refill. Zero when the request
// was allowed or the refill is already due.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	wait := time.Until(r.ResetAt)
	if wait < 0 {
		return 0
	}
	return wait
}

// Store tracks bucket state per key. Take spends one token and reports
// the count left afterwards along with the next refill time.
type Store interface {
	Take(ctx context.Context, key string, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Limiter runs admission checks against a store.
type Limiter struct {
	store Store
	cfg   Config
}

// NewLimiter validates the config and builds a limiter over store.
func NewLimiter(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: missing store", ErrInvalidConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, cfg: cfg}, nil
}

// Allow spends one token from the bucket for key and reports the
// outcome.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	remaining, resetAt, err := l.store.Take(ctx, key, l.cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: l.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}

// Reset discards the bucket for key, restoring it to full on the next
// check.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}
