// Package billing exposes the commerce endpoints: the plan catalog,
// checkout flows, the gateway callback, payment status, the subscription
// queue, and the admin grant.
package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tradesignal/backend/pkg/binder"
	"github.com/tradesignal/backend/pkg/gateway"
	"github.com/tradesignal/backend/pkg/response"
	"github.com/tradesignal/backend/pkg/webhook"
	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/catalog"
	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/payment"
	"github.com/tradesignal/backend/svc/user"
)

// Callback bodies larger than this are rejected before verification.
const maxCallbackBytes = 64 << 10

// CallbackVerifier authenticates gateway callback deliveries.
// *gateway.Client satisfies it.
type CallbackVerifier interface {
	VerifyCallbackSignature(payload []byte, timestamp int64, signature string) error
}

// Option configures the handler.
type Option func(*Handler)

// WithLogger sets a structured logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// Handler serves the billing routes.
type Handler struct {
	plans    catalog.Source
	payments *payment.Service
	ledger   *ledger.Service
	users    *user.Service
	tokens   *auth.Service
	verifier CallbackVerifier
	log      *slog.Logger
}

// NewHandler wires the billing module.
func NewHandler(
	plans catalog.Source,
	payments *payment.Service,
	ledgerSvc *ledger.Service,
	users *user.Service,
	tokens *auth.Service,
	verifier CallbackVerifier,
	opts ...Option,
) *Handler {
	h := &Handler{
		plans:    plans,
		payments: payments,
		ledger:   ledgerSvc,
		users:    users,
		tokens:   tokens,
		verifier: verifier,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts the billing routes. The catalog, the register-and-pay
// checkout, and the gateway callback are public; everything else requires
// an access token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/plans", h.listPlans)
	r.Post("/register-checkout", h.registerCheckout)
	r.Post("/callback", h.callback)

	r.Group(func(priv chi.Router) {
		priv.Use(auth.Middleware(h.tokens))
		priv.Post("/checkout", h.checkout)
		priv.Get("/payments", h.listPayments)
		priv.Get("/payments/{transactionID}", h.pollPayment)
		priv.Get("/subscription", h.subscription)

		priv.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdmin)
			admin.Post("/admin/grants", h.grant)
		})
	})

	return r
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListPlans(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "plan listing failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	items := make([]planResponse, 0, len(plans))
	for _, plan := range plans {
		if !plan.Active {
			continue
		}
		items = append(items, toPlanResponse(plan))
	}
	response.JSON(w, http.StatusOK, items)
}

type checkoutRequest struct {
	PlanID uuid.UUID `json:"planId"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	var req checkoutRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := h.payments.Checkout(r.Context(), identity.OwnerID, req.PlanID)
	if err != nil {
		h.writeCheckoutError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, toCheckoutResponse(result))
}

type registerCheckoutRequest struct {
	Email  string    `json:"email"`
	PlanID uuid.UUID `json:"planId"`
}

func (h *Handler) registerCheckout(w http.ResponseWriter, r *http.Request) {
	var req registerCheckoutRequest
	if !bind(w, r, &req) {
		return
	}

	result, err := h.payments.RegisterAndPay(r.Context(), req.Email, req.PlanID)
	if err != nil {
		if errors.Is(err, user.ErrInvalidEmail) {
			response.Error(w, response.ValidationError{"email": {"must be a valid email address"}})
			return
		}
		h.writeCheckoutError(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, toCheckoutResponse(result))
}

// writeCheckoutError maps the failure modes the two checkout flows share.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payment.ErrInvalidPlan):
		response.Error(w, response.ValidationError{"planId": {"unknown or inactive plan"}})
	case errors.Is(err, user.ErrUserNotFound):
		response.Error(w, response.ErrUnauthorized)
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		response.Error(w, response.ErrServiceUnavailable.WithMessage("payment gateway is unavailable, try again shortly"))
	default:
		h.log.ErrorContext(r.Context(), "checkout failed", slog.Any("error", err))
		response.Error(w, err)
	}
}

type callbackResponse struct {
	Status string `json:"status"`
}

// callback receives the gateway's server-to-server payment notification.
// Once the signature verifies, the response is always 200 so the gateway
// stops redelivering; the body reports whether the result was applied, a
// duplicate, or ignored.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		response.Error(w, response.ErrBadRequest.WithMessage("unreadable callback body"))
		return
	}

	sig, err := webhook.ExtractSignatureHeaders(r.Header.Get)
	if err != nil {
		response.Error(w, response.ErrUnauthorized.WithMessage("invalid callback signature"))
		return
	}
	if err := h.verifier.VerifyCallbackSignature(body, sig.Timestamp, sig.Signature); err != nil {
		h.log.WarnContext(r.Context(), "callback signature rejected", slog.Any("error", err))
		response.Error(w, response.ErrUnauthorized.WithMessage("invalid callback signature"))
		return
	}

	cb, err := gateway.ParseCallback(body)
	if err != nil {
		response.Error(w, response.ErrBadRequest.WithMessage("malformed callback payload"))
		return
	}

	switch err := h.payments.HandleCallback(r.Context(), *cb); {
	case err == nil:
		response.JSON(w, http.StatusOK, callbackResponse{Status: "applied"})
	case errors.Is(err, payment.ErrAlreadyFinalized):
		response.JSON(w, http.StatusOK, callbackResponse{Status: "duplicate"})
	case errors.Is(err, payment.ErrUnknownTransaction):
		// Authenticated but unknown: drop it and tell the gateway not to
		// retry.
		h.log.WarnContext(r.Context(), "callback for unknown transaction dropped",
			slog.String("transaction_id", cb.TransactionID))
		response.JSON(w, http.StatusOK, callbackResponse{Status: "ignored"})
	default:
		// A transient failure; a non-200 makes the gateway redeliver.
		h.log.ErrorContext(r.Context(), "callback processing failed",
			slog.String("transaction_id", cb.TransactionID),
			slog.Any("error", err))
		response.Error(w, err)
	}
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	payments, err := h.payments.History(r.Context(), identity.OwnerID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "payment history failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	items := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPaymentResponse(&payments[i]))
	}
	response.JSON(w, http.StatusOK, items)
}

func (h *Handler) pollPayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	p, err := h.payments.PollStatus(r.Context(), transactionID)
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrPaymentNotFound):
		response.Error(w, response.ErrNotFound.WithMessage("unknown payment"))
		return
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		response.Error(w, response.ErrServiceUnavailable.WithMessage("payment gateway is unavailable, try again shortly"))
		return
	default:
		h.log.ErrorContext(r.Context(), "payment poll failed",
			slog.String("transaction_id", transactionID),
			slog.Any("error", err))
		response.Error(w, err)
		return
	}

	// Payments are visible to their owner and to admins; everyone else
	// sees the same 404 as a missing record.
	if p.UserID != identity.OwnerID && !identity.IsAdmin() {
		response.Error(w, response.ErrNotFound.WithMessage("unknown payment"))
		return
	}
	response.JSON(w, http.StatusOK, toPaymentResponse(p))
}

type subscriptionResponse struct {
	Snapshot *snapshotResponse   `json:"snapshot"`
	Queue    []queueItemResponse `json:"queue"`
}

func (h *Handler) subscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.GetIdentityFromContext(r.Context())
	if !ok {
		response.Error(w, response.ErrUnauthorized)
		return
	}

	queue, err := h.ledger.CurrentQueue(r.Context(), identity.OwnerID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "queue lookup failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	// Completed history lives under /payments; the status view shows only
	// the open queue.
	resp := subscriptionResponse{Queue: make([]queueItemResponse, 0, len(queue))}
	for _, item := range queue {
		if !item.Entry.Open() {
			continue
		}
		resp.Queue = append(resp.Queue, toQueueItemResponse(item))
	}

	snap, err := h.ledger.Snapshot(r.Context(), identity.OwnerID)
	switch {
	case err == nil:
		resp.Snapshot = toSnapshotResponse(snap)
	case errors.Is(err, ledger.ErrSnapshotNotFound):
		// Never subscribed; snapshot stays null.
	default:
		h.log.ErrorContext(r.Context(), "snapshot lookup failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusOK, resp)
}

type grantRequest struct {
	UserID uuid.UUID `json:"userId"`
	PlanID uuid.UUID `json:"planId"`
}

// grant appends a plan to a user's queue without a payment. Admin only.
func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if !bind(w, r, &req) {
		return
	}

	if _, err := h.users.Get(r.Context(), req.UserID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Error(w, response.ValidationError{"userId": {"unknown user"}})
			return
		}
		h.log.ErrorContext(r.Context(), "grant user lookup failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	entry, err := h.ledger.Grant(r.Context(), req.UserID, req.PlanID)
	if err != nil {
		if errors.Is(err, catalog.ErrPlanNotFound) {
			response.Error(w, response.ValidationError{"planId": {"unknown plan"}})
			return
		}
		h.log.ErrorContext(r.Context(), "grant failed", slog.Any("error", err))
		response.Error(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, toEntryResponse(entry, nil))
}

func bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := binder.JSON(r, v); err != nil {
		response.Error(w, response.ErrBadRequest.WithMessage(err.Error()))
		return false
	}
	return true
}

type planResponse struct {
	ID                uuid.UUID `json:"id"`
	Tier              string    `json:"tier"`
	DurationDays      int       `json:"durationDays"`
	MaxVisibleTargets int       `json:"maxVisibleTargets"`
	ReminderLeadHours int       `json:"reminderLeadHours"`
	PriceCents        int64     `json:"priceCents"`
	Currency          string    `json:"currency"`
}

func toPlanResponse(plan catalog.Plan) planResponse {
	return planResponse{
		ID:                plan.ID,
		Tier:              plan.Tier,
		DurationDays:      plan.DurationDays,
		MaxVisibleTargets: plan.MaxVisibleTargets,
		ReminderLeadHours: plan.ReminderLeadHours,
		PriceCents:        plan.PriceCents,
		Currency:          plan.Currency,
	}
}

type checkoutResponse struct {
	PaymentID     uuid.UUID `json:"paymentId"`
	TransactionID string    `json:"transactionId"`
	PaymentURL    string    `json:"paymentUrl"`
	AmountCents   int64     `json:"amountCents"`
	Currency      string    `json:"currency"`
	IsNewUser     bool      `json:"isNewUser,omitempty"`
	TempPassword  string    `json:"tempPassword,omitempty"`
}

func toCheckoutResponse(result *payment.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		PaymentID:     result.Payment.ID,
		TransactionID: result.Payment.TransactionID,
		PaymentURL:    result.PaymentURL,
		AmountCents:   result.Payment.AmountCents,
		Currency:      result.Payment.Currency,
		IsNewUser:     result.Payment.IsNewUser,
		TempPassword:  result.TempPassword,
	}
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PlanID        uuid.UUID  `json:"planId"`
	TransactionID string     `json:"transactionId"`
	Status        string     `json:"status"`
	AmountCents   int64      `json:"amountCents"`
	Currency      string     `json:"currency"`
	CreatedAt     time.Time  `json:"createdAt"`
	FinalizedAt   *time.Time `json:"finalizedAt,omitempty"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		PlanID:        p.PlanID,
		TransactionID: p.TransactionID,
		Status:        string(p.Status),
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		CreatedAt:     p.CreatedAt,
		FinalizedAt:   p.FinalizedAt,
	}
}

type snapshotResponse struct {
	Tier              string    `json:"tier"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	IsActive          bool      `json:"isActive"`
	MaxVisibleTargets int       `json:"maxVisibleTargets"`
	ReminderLeadHours int       `json:"reminderLeadHours"`
}

func toSnapshotResponse(snap *ledger.Snapshot) *snapshotResponse {
	return &snapshotResponse{
		Tier:              snap.Tier,
		StartDate:         snap.StartDate,
		EndDate:           snap.EndDate,
		IsActive:          snap.IsActive,
		MaxVisibleTargets: snap.MaxVisibleTargets,
		ReminderLeadHours: snap.ReminderLeadHours,
	}
}

type entryResponse struct {
	ID             uuid.UUID  `json:"id"`
	PlanID         uuid.UUID  `json:"planId"`
	Tier           string     `json:"tier,omitempty"`
	Status         string     `json:"status"`
	QueuePosition  int        `json:"queuePosition"`
	ActivationDate *time.Time `json:"activationDate,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
}

func toEntryResponse(entry *ledger.Entry, plan *catalog.Plan) entryResponse {
	resp := entryResponse{
		ID:             entry.ID,
		PlanID:         entry.PlanID,
		Status:         string(entry.Status),
		QueuePosition:  entry.QueuePosition,
		ActivationDate: entry.ActivationDate,
		ExpiryDate:     entry.ExpiryDate,
	}
	if plan != nil {
		resp.Tier = plan.Tier
	}
	return resp
}

type queueItemResponse struct {
	entryResponse
	DurationDays int `json:"durationDays"`
}

func toQueueItemResponse(item ledger.QueueItem) queueItemResponse {
	return queueItemResponse{
		entryResponse: toEntryResponse(&item.Entry, &item.Plan),
		DurationDays:  item.Plan.DurationDays,
	}
}
