package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradesignal/backend/pkg/gateway"
	"github.com/tradesignal/backend/svc/catalog"
	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/user"
)

// Ledger is the slice of the subscription ledger the payment flow needs.
type Ledger interface {
	Enqueue(ctx context.Context, userID, planID, paymentID uuid.UUID) (*ledger.Entry, error)
}

// Gateway is the slice of the gateway client the payment flow needs.
type Gateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error)
	CheckStatus(ctx context.Context, transactionID string) (*gateway.StatusResponse, error)
}

// Users is the slice of the user service the payment flow needs.
type Users interface {
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, params user.CreateParams) (*user.User, error)
	Activate(ctx context.Context, id uuid.UUID) error
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger used for payment events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Service drives checkouts and applies gateway results to the ledger.
type Service struct {
	cfg    Config
	store  Store
	plans  catalog.Source
	ledger Ledger
	users  Users
	gw     Gateway
	log    *slog.Logger
}

// NewService wires the payment flow together.
func NewService(cfg Config, store Store, plans catalog.Source, ledger Ledger, users Users, gw Gateway, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		plans:  plans,
		ledger: ledger,
		users:  users,
		gw:     gw,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutResult is what the caller needs to send the payer to the
// gateway. TempPassword is set only when register-and-pay created a new
// account.
type CheckoutResult struct {
	Payment      *Payment
	PaymentURL   string
	TempPassword string
}

// Checkout opens a gateway session for an existing user. The payment
// record is created pending; the caller redirects the payer to PaymentURL
// and the outcome arrives via callback or poll. If the gateway cannot
// open the session the payment is marked failed and the gateway error is
// returned, because the payer is waiting synchronously.
func (s *Service) Checkout(ctx context.Context, userID, planID uuid.UUID) (*CheckoutResult, error) {
	usr, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.checkout(ctx, usr, planID, false, "")
}

// RegisterAndPay runs a checkout for an email address that may not have an
// account yet. A fresh account is created disabled with a generated
// password and enabled once the payment completes; an existing account
// goes through the regular checkout.
func (s *Service) RegisterAndPay(ctx context.Context, email string, planID uuid.UUID) (*CheckoutResult, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.checkout(ctx, existing, planID, false, "")
	case errors.Is(err, user.ErrUserNotFound):
	default:
		return nil, err
	}

	password, err := user.RandomPassword(s.cfg.TempPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("payment: failed to generate password: %w", err)
	}
	usr, err := s.users.Create(ctx, user.CreateParams{
		Email:    email,
		Password: password,
		Active:   false,
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "account created for register-and-pay",
		slog.String("user_id", usr.ID.String()))
	return s.checkout(ctx, usr, planID, true, password)
}

func (s *Service) checkout(ctx context.Context, usr *user.User, planID uuid.UUID, isNew bool, tempPassword string) (*CheckoutResult, error) {
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan is not open for purchase", ErrInvalidPlan)
	}

	now := time.Now().UTC()
	p := &Payment{
		ID:            uuid.New(),
		UserID:        usr.ID,
		PlanID:        plan.ID,
		AmountCents:   plan.PriceCents,
		Currency:      plan.Currency,
		Status:        StatusPending,
		TransactionID: newTransactionID(now),
		IsNewUser:     isNew,
		CreatedAt:     now,
	}
	if tempPassword != "" {
		p.TempPassword = &tempPassword
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	resp, err := s.gw.Initiate(ctx, gateway.InitiateRequest{
		TransactionID: p.TransactionID,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		PayerRef:      usr.Email,
		CallbackURL:   s.cfg.CallbackURL,
		RedirectURL:   s.cfg.RedirectURL,
	})
	if err != nil {
		// The payer cannot proceed without a session, so the attempt is
		// over; a new checkout starts a new payment.
		if ferr := s.store.FinalizePayment(ctx, p.ID, StatusFailed, nil, time.Now().UTC()); ferr != nil {
			s.log.ErrorContext(ctx, "failed to mark payment failed",
				slog.String("payment_id", p.ID.String()), slog.Any("error", ferr))
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout initiated",
		slog.String("payment_id", p.ID.String()),
		slog.String("transaction_id", p.TransactionID),
		slog.String("plan_id", plan.ID.String()))
	return &CheckoutResult{Payment: p, PaymentURL: resp.PaymentURL, TempPassword: tempPassword}, nil
}

// OnPaymentResult applies a gateway result to the payment with the given
// transaction id. Replays of a finalized payment return
// ErrAlreadyFinalized and change nothing, so the webhook can be
// redelivered freely. A success appends the plan to the user's
// subscription queue and enables the account; anything else marks the
// payment failed with no ledger effect.
func (s *Service) OnPaymentResult(ctx context.Context, transactionID, resultCode, gatewayTransactionID string) error {
	p, err := s.store.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if p.Final() {
		s.log.InfoContext(ctx, "payment result replay ignored",
			slog.String("transaction_id", transactionID),
			slog.String("status", string(p.Status)))
		return fmt.Errorf("%w: status %s", ErrAlreadyFinalized, p.Status)
	}

	if resultCode == gateway.ResultSuccess {
		return s.complete(ctx, p, gatewayTransactionID)
	}
	return s.fail(ctx, p, resultCode)
}

// HandleCallback applies a parsed gateway callback.
func (s *Service) HandleCallback(ctx context.Context, cb gateway.Callback) error {
	return s.OnPaymentResult(ctx, cb.TransactionID, cb.ResultCode, cb.GatewayTransactionID)
}

// PollStatus re-checks a pending payment with the gateway and applies the
// same transition the callback would, so either path can arrive first or
// alone. A still-pending or unreachable gateway leaves the payment
// untouched.
func (s *Service) PollStatus(ctx context.Context, transactionID string) (*Payment, error) {
	p, err := s.store.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if p.Final() {
		return p, nil
	}

	status, err := s.gw.CheckStatus(ctx, transactionID)
	if err != nil {
		// The outcome is unknown; the payment stays pending for the next
		// poll or the callback.
		return nil, err
	}

	switch status.Status {
	case gateway.StatusCompleted:
		if err := s.complete(ctx, p, status.GatewayTransactionID); err != nil {
			return nil, err
		}
	case gateway.StatusFailed:
		if err := s.fail(ctx, p, "poll"); err != nil {
			return nil, err
		}
	default:
		return p, nil
	}
	return s.store.GetByTransactionID(ctx, transactionID)
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.store.GetPayment(ctx, id)
}

// History returns the user's payments, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]Payment, error) {
	return s.store.ListForUser(ctx, userID)
}

func (s *Service) complete(ctx context.Context, p *Payment, gatewayTransactionID string) error {
	var gtx *string
	if gatewayTransactionID != "" {
		gtx = &gatewayTransactionID
	}
	if err := s.store.FinalizePayment(ctx, p.ID, StatusCompleted, gtx, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			// The callback and a poll raced; the winner already applied
			// the result.
			return nil
		}
		return err
	}

	if _, err := s.ledger.Enqueue(ctx, p.UserID, p.PlanID, p.ID); err != nil {
		return fmt.Errorf("payment: failed to enqueue plan: %w", err)
	}
	if err := s.users.Activate(ctx, p.UserID); err != nil {
		// The subscription is already granted; activation is retried by
		// the next admin touch rather than failing the webhook.
		s.log.ErrorContext(ctx, "failed to enable user after payment",
			slog.String("user_id", p.UserID.String()), slog.Any("error", err))
	}

	s.log.InfoContext(ctx, "payment completed",
		slog.String("payment_id", p.ID.String()),
		slog.String("transaction_id", p.TransactionID))
	return nil
}

func (s *Service) fail(ctx context.Context, p *Payment, resultCode string) error {
	if err := s.store.FinalizePayment(ctx, p.ID, StatusFailed, nil, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyFinalized) {
			return nil
		}
		return err
	}

	s.log.InfoContext(ctx, "payment failed",
		slog.String("payment_id", p.ID.String()),
		slog.String("transaction_id", p.TransactionID),
		slog.String("result_code", resultCode))
	return nil
}

// newTransactionID builds the merchant-side transaction reference sent to
// the gateway and echoed back in callbacks.
func newTransactionID(now time.Time) string {
	return fmt.Sprintf("TS-%d-%s", now.Unix(), uuid.NewString()[:8])
}
