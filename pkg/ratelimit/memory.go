package ratelimit

import (
	"context"
	"sync"
	"time"
)

// staleAfter is how long an idle bucket survives before eviction.
const staleAfter = time.Hour

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
}

// MemoryStore keeps buckets in process memory. A background loop evicts
// idle buckets so abandoned keys do not accumulate for the lifetime of
// the process.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	evictEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithEvictionInterval overrides how often idle buckets are collected.
// Zero or negative disables the background loop.
func WithEvictionInterval(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.evictEvery = d
	}
}

// NewMemoryStore creates a store and starts its eviction loop. Call
// Close on shutdown to stop the loop.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		buckets:    make(map[string]*bucket),
		evictEvery: 5 * time.Minute,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.evictEvery > 0 {
		go s.evictLoop()
	}
	return s
}

// Take implements Store. New keys start with a full bucket.
func (s *MemoryStore) Take(_ context.Context, key string, cfg Config) (int, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, lastRefill: now}
		s.buckets[key] = b
	}
	b.lastSeen = now

	if elapsed := now.Sub(b.lastRefill); elapsed >= cfg.RefillInterval {
		intervals := int(elapsed / cfg.RefillInterval)
		b.tokens = min(cfg.Capacity, b.tokens+intervals*cfg.RefillRate)
		// Advancing by whole intervals keeps the refill cadence exact
		// instead of drifting with request arrival times.
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
	}

	next := b.lastRefill.Add(cfg.RefillInterval)
	if b.tokens == 0 {
		// A dry bucket rejects without going negative, so a flood cannot
		// push recovery past the next refill.
		return -1, next, nil
	}
	b.tokens--
	return b.tokens, next, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Close stops the eviction loop. The store remains usable afterwards.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) evictLoop() {
	ticker := time.NewTicker(s.evictEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictStale(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) evictStale(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(s.buckets, key)
		}
	}
}
