package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/user"
)

// Ledger is the slice of the subscription ledger the sweep needs.
type Ledger interface {
	DueEntries(ctx context.Context, asOf time.Time) ([]ledger.Entry, error)
	ActiveEntries(ctx context.Context) ([]ledger.Entry, error)
	PromoteNext(ctx context.Context, expiredID uuid.UUID, now time.Time) (*ledger.Entry, error)
	Snapshot(ctx context.Context, userID uuid.UUID) (*ledger.Snapshot, error)
	MarkReminderSent(ctx context.Context, userID uuid.UUID) error
}

// Users resolves notification channels.
type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// Notifier delivers expiry reminders.
type Notifier interface {
	Send(ctx context.Context, channel, title, body string) error
}

// Result summarizes one sweep.
type Result struct {
	// Expired counts active entries completed this pass.
	Expired int
	// Promoted counts queued entries activated this pass.
	Promoted int
	// Reminded counts reminder attempts made this pass.
	Reminded int
	// Errors counts entries that could not be processed.
	Errors int
}

// Option configures the sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used for sweep events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// Sweeper advances the subscription lifecycle on every run.
type Sweeper struct {
	cfg      Config
	ledger   Ledger
	users    Users
	notifier Notifier
	log      *slog.Logger
}

// NewSweeper wires a sweeper over the ledger.
func NewSweeper(cfg Config, ldg Ledger, users Users, notifier Notifier, opts ...Option) *Sweeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 15 * time.Minute
	}
	if cfg.ReminderMargin < 0 {
		cfg.ReminderMargin = 0
	}

	s := &Sweeper{
		cfg:      cfg,
		ledger:   ldg,
		users:    users,
		notifier: notifier,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes one sweep at the current time. It satisfies the interval
// scheduler's job signature.
func (s *Sweeper) Run(ctx context.Context) error {
	res := s.Sweep(ctx, time.Now().UTC())
	if res.Errors > 0 {
		return fmt.Errorf("lifecycle: sweep finished with %d errors", res.Errors)
	}
	return nil
}

// Sweep runs both passes at the given instant. Safe to re-run: entries
// already completed are not matched again and reminders are guarded by
// the snapshot flag.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) Result {
	var res Result

	due, err := s.ledger.DueEntries(ctx, now)
	if err != nil {
		s.log.ErrorContext(ctx, "sweep could not list due entries", slog.Any("error", err))
		res.Errors++
		return res
	}
	for _, entry := range due {
		promoted, err := s.ledger.PromoteNext(ctx, entry.ID, now)
		if err != nil {
			res.Errors++
			s.log.ErrorContext(ctx, "promotion failed",
				slog.String("entry_id", entry.ID.String()),
				slog.String("user_id", entry.UserID.String()),
				slog.Any("error", err))
			continue
		}
		res.Expired++
		if promoted != nil {
			res.Promoted++
			s.log.InfoContext(ctx, "subscription rotated",
				slog.String("user_id", entry.UserID.String()),
				slog.String("completed_entry", entry.ID.String()),
				slog.String("activated_entry", promoted.ID.String()))
		} else {
			s.log.InfoContext(ctx, "subscription ended",
				slog.String("user_id", entry.UserID.String()),
				slog.String("entry_id", entry.ID.String()))
		}
	}

	// Reminders run after promotion so a term activated this pass is
	// already visible.
	active, err := s.ledger.ActiveEntries(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "sweep could not list active entries", slog.Any("error", err))
		res.Errors++
		return res
	}
	for _, entry := range active {
		reminded, err := s.remind(ctx, entry, now)
		if err != nil {
			res.Errors++
			s.log.ErrorContext(ctx, "reminder processing failed",
				slog.String("entry_id", entry.ID.String()),
				slog.String("user_id", entry.UserID.String()),
				slog.Any("error", err))
			continue
		}
		if reminded {
			res.Reminded++
		}
	}
	return res
}

// remind sends the expiry reminder when now falls inside the entry's
// reminder window and none was sent for the current activation. The
// snapshot flag flips after the first attempt whatever the delivery
// outcome, so a flaky dispatcher cannot cause duplicates.
func (s *Sweeper) remind(ctx context.Context, entry ledger.Entry, now time.Time) (bool, error) {
	if entry.ExpiryDate == nil {
		return false, nil
	}

	snap, err := s.ledger.Snapshot(ctx, entry.UserID)
	if err != nil {
		return false, err
	}
	if !snap.IsActive || snap.ReminderSent || snap.ReminderLeadHours <= 0 {
		return false, nil
	}

	fire := entry.ExpiryDate.Add(-snap.ReminderLead())
	if now.Before(fire) || !now.Before(fire.Add(s.cfg.SweepInterval+s.cfg.ReminderMargin)) {
		return false, nil
	}

	usr, err := s.users.Get(ctx, entry.UserID)
	if err != nil {
		return false, err
	}
	if usr.NotificationChannel == nil {
		return false, nil
	}

	title, body := reminderMessage(snap)
	if err := s.notifier.Send(ctx, *usr.NotificationChannel, title, body); err != nil {
		s.log.ErrorContext(ctx, "reminder delivery failed",
			slog.String("user_id", entry.UserID.String()),
			slog.Any("error", err))
	}
	if err := s.ledger.MarkReminderSent(ctx, entry.UserID); err != nil {
		return false, err
	}

	s.log.InfoContext(ctx, "expiry reminder sent",
		slog.String("user_id", entry.UserID.String()),
		slog.Time("expires_at", *entry.ExpiryDate))
	return true, nil
}

func reminderMessage(snap *ledger.Snapshot) (title, body string) {
	title = "Your subscription is ending soon"
	body = fmt.Sprintf("Your %s plan ends on %s. Renew now to keep access without interruption.",
		snap.Tier, snap.EndDate.Format("2 Jan 2006 15:04 MST"))
	return title, body
}
