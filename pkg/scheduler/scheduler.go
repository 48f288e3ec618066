package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// JobFunc is the unit of work executed on every tick.
type JobFunc func(ctx context.Context) error

// Scheduler runs a single job at a fixed interval. A tick is skipped
// when the previous run has not finished, so the job never overlaps
// with itself.
type Scheduler struct {
	name     string
	job      JobFunc
	interval time.Duration
	logger   *slog.Logger

	runOnStart bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a scheduler for the named job.
func New(name string, job JobFunc, opts ...Option) (*Scheduler, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if job == nil {
		return nil, ErrNilJob
	}

	options := &schedulerOptions{
		interval:   time.Minute,
		runOnStart: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		name:       name,
		job:        job,
		interval:   options.interval,
		runOnStart: options.runOnStart,
		logger:     options.logger,
	}, nil
}

// Start begins ticking in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx)

	s.logger.Info("scheduler started",
		slog.String("job", s.name),
		slog.Duration("interval", s.interval))

	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.logger.Info("scheduler stopped", slog.String("job", s.name))
	return nil
}

// Run returns a function suitable for errgroup.Group.Go: it starts the
// scheduler, blocks until the context is cancelled and then stops it.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return s.Stop()
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick spawns a run unless one is still in flight.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("previous run still in progress, skipping tick",
			slog.String("job", s.name))
		return
	}

	// The loop goroutine still holds a waitgroup slot, so Add here can
	// never race a Wait that already reached zero.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.execute(ctx)
	}()
}

func (s *Scheduler) execute(ctx context.Context) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked",
				slog.String("job", s.name),
				slog.Any("panic", r),
				slog.Duration("duration", time.Since(start)))
		}
	}()

	if err := s.job(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("job failed",
			slog.String("job", s.name),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}

	s.logger.Debug("job completed",
		slog.String("job", s.name),
		slog.Duration("duration", time.Since(start)))
}

// String identifies the scheduler in logs and error messages.
func (s *Scheduler) String() string {
	return fmt.Sprintf("scheduler(%s, %s)", s.name, s.interval)
}
