package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/tradesignal/backend/svc/catalog"
)

const (
	defaultConflictRetries  = 3
	defaultConflictInterval = 20 * time.Millisecond
)

// Service owns the queue rules: position assignment, immediate activation
// versus queueing, and strictly sequential promotion. All writes go through
// the Store's atomic operations; on ErrConflict the full read-decide-write
// cycle is retried with exponential backoff a bounded number of times.
type Service struct {
	store Store
	plans catalog.Source
	log   *slog.Logger

	conflictRetries  uint64
	conflictInterval time.Duration
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger used for ledger events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithConflictRetry tunes how often and how quickly conflicting writes are
// retried before surfacing ErrConflict.
func WithConflictRetry(retries uint64, interval time.Duration) Option {
	return func(s *Service) {
		if retries > 0 {
			s.conflictRetries = retries
		}
		if interval > 0 {
			s.conflictInterval = interval
		}
	}
}

// NewService creates a ledger service on top of the given store and plan
// catalog.
func NewService(store Store, plans catalog.Source, opts ...Option) *Service {
	s := &Service{
		store:            store,
		plans:            plans,
		log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		conflictRetries:  defaultConflictRetries,
		conflictInterval: defaultConflictInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue appends a paid plan instance to the user's queue. The entry takes
// the next queue position; it activates immediately when the user has no
// open entry, otherwise it waits as pending.
func (s *Service) Enqueue(ctx context.Context, userID, planID, paymentID uuid.UUID) (*Entry, error) {
	return s.enqueue(ctx, userID, planID, &paymentID, time.Now().UTC())
}

// EnqueueAt is Enqueue with an explicit activation clock.
func (s *Service) EnqueueAt(ctx context.Context, userID, planID, paymentID uuid.UUID, now time.Time) (*Entry, error) {
	return s.enqueue(ctx, userID, planID, &paymentID, now)
}

// Grant appends a plan instance without a funding payment. Granted entries
// follow exactly the same queue rules as purchased ones.
func (s *Service) Grant(ctx context.Context, userID, planID uuid.UUID) (*Entry, error) {
	return s.enqueue(ctx, userID, planID, nil, time.Now().UTC())
}

// GrantAt is Grant with an explicit activation clock.
func (s *Service) GrantAt(ctx context.Context, userID, planID uuid.UUID, now time.Time) (*Entry, error) {
	return s.enqueue(ctx, userID, planID, nil, now)
}

func (s *Service) enqueue(ctx context.Context, userID, planID uuid.UUID, paymentID *uuid.UUID, now time.Time) (*Entry, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to resolve plan: %w", err)
	}

	var entry *Entry
	op := func() error {
		state, err := s.store.QueueState(ctx, userID)
		if err != nil {
			return backoff.Permanent(err)
		}

		e := &Entry{
			ID:            uuid.New(),
			UserID:        userID,
			PlanID:        plan.ID,
			Status:        StatusPending,
			QueuePosition: state.MaxPosition + 1,
			PaymentID:     paymentID,
			CreatedAt:     now,
		}

		var snap *Snapshot
		if !state.HasOpen {
			activation := now
			expiry := now.Add(plan.Duration())
			e.Status = StatusActive
			e.ActivationDate = &activation
			e.ExpiryDate = &expiry
			snap = snapshotForPlan(*plan, activation, expiry)
		}

		if err := s.store.InsertEntry(ctx, e, snap); err != nil {
			return retryableConflict(err)
		}
		entry = e
		return nil
	}

	if err := s.retryConflicts(ctx, op); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "ledger entry appended",
		slog.String("user_id", userID.String()),
		slog.String("plan_id", plan.ID.String()),
		slog.Int("position", entry.QueuePosition),
		slog.String("status", string(entry.Status)))
	return entry, nil
}

// PromoteNext completes an expired active entry and activates the pending
// entry at the directly following queue position, if any. When the queue
// holds no successor the snapshot is disabled instead. The returned entry
// is the newly activated one, nil when nothing was promoted. Calling it
// again for an already completed entry is a no-op.
func (s *Service) PromoteNext(ctx context.Context, expiredID uuid.UUID, now time.Time) (*Entry, error) {
	var promoted *Entry
	op := func() error {
		expired, err := s.store.GetEntry(ctx, expiredID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if expired.Status == StatusCompleted {
			// Another sweep already handled this entry.
			promoted = nil
			return nil
		}
		if !expired.ExpiredAt(now) {
			return backoff.Permanent(ErrEntryNotDue)
		}

		next, err := s.store.NextPending(ctx, expired.UserID, expired.QueuePosition+1)
		if errors.Is(err, ErrEntryNotFound) {
			if err := s.store.CompleteAndPromote(ctx, expired.ID, nil); err != nil {
				return retryableConflict(err)
			}
			promoted = nil
			return nil
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		plan, err := s.plans.GetPlan(ctx, next.PlanID)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("ledger: failed to resolve plan: %w", err))
		}

		activation := now
		expiry := now.Add(plan.Duration())
		promo := &Promotion{
			EntryID:        next.ID,
			ActivationDate: activation,
			ExpiryDate:     expiry,
			Snapshot:       *snapshotForPlan(*plan, activation, expiry),
		}
		if err := s.store.CompleteAndPromote(ctx, expired.ID, promo); err != nil {
			return retryableConflict(err)
		}

		next.Status = StatusActive
		next.ActivationDate = &activation
		next.ExpiryDate = &expiry
		promoted = next
		return nil
	}

	if err := s.retryConflicts(ctx, op); err != nil {
		return nil, err
	}

	if promoted != nil {
		s.log.InfoContext(ctx, "ledger entry promoted",
			slog.String("user_id", promoted.UserID.String()),
			slog.String("entry_id", promoted.ID.String()),
			slog.Int("position", promoted.QueuePosition))
	}
	return promoted, nil
}

// QueueItem pairs a ledger entry with its plan for presentation.
type QueueItem struct {
	Entry Entry
	Plan  catalog.Plan
}

// CurrentQueue returns every entry of the user in queue order together
// with its plan attributes, completed history included. Callers that only
// present the open queue filter with Entry.Open.
func (s *Service) CurrentQueue(ctx context.Context, userID uuid.UUID) ([]QueueItem, error) {
	entries, err := s.store.EntriesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]QueueItem, 0, len(entries))
	for _, e := range entries {
		plan, err := s.plans.GetPlan(ctx, e.PlanID)
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to resolve plan: %w", err)
		}
		items = append(items, QueueItem{Entry: e, Plan: *plan})
	}
	return items, nil
}

// Snapshot returns the user's subscription snapshot.
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	return s.store.GetSnapshot(ctx, userID)
}

// DueEntries returns active entries whose expiry is at or before asOf.
func (s *Service) DueEntries(ctx context.Context, asOf time.Time) ([]Entry, error) {
	return s.store.DueEntries(ctx, asOf)
}

// ActiveEntries returns all currently active entries.
func (s *Service) ActiveEntries(ctx context.Context) ([]Entry, error) {
	return s.store.ActiveEntries(ctx)
}

// MarkReminderSent records that the expiry reminder for the user's current
// term went out, so it is not sent twice.
func (s *Service) MarkReminderSent(ctx context.Context, userID uuid.UUID) error {
	return s.store.MarkReminderSent(ctx, userID)
}

func (s *Service) retryConflicts(ctx context.Context, op backoff.Operation) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = s.conflictInterval
	expBackoff.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(expBackoff, s.conflictRetries), ctx))
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("%w: retries exhausted", ErrConflict)
		}
		return err
	}
	return nil
}

// retryableConflict lets ErrConflict bubble to the retry loop and marks
// everything else permanent.
func retryableConflict(err error) error {
	if errors.Is(err, ErrConflict) {
		return err
	}
	return backoff.Permanent(err)
}

func snapshotForPlan(plan catalog.Plan, start, end time.Time) *Snapshot {
	return &Snapshot{
		Tier:              plan.Tier,
		StartDate:         start,
		EndDate:           end,
		IsActive:          true,
		MaxVisibleTargets: plan.MaxVisibleTargets,
		ReminderLeadHours: plan.ReminderLeadHours,
		ReminderSent:      false,
	}
}
