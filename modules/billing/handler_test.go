package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradesignal/backend/modules/billing"
	"github.com/tradesignal/backend/pkg/gateway"
	"github.com/tradesignal/backend/pkg/webhook"
	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/catalog"
	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/payment"
	"github.com/tradesignal/backend/svc/user"
)

const callbackSecret = "callback-signing-secret"

type stubGateway struct {
	initiate func(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error)
	status   func(ctx context.Context, transactionID string) (*gateway.StatusResponse, error)
}

func (g *stubGateway) Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error) {
	if g.initiate != nil {
		return g.initiate(ctx, req)
	}
	return &gateway.InitiateResponse{PaymentURL: "https://pay.gw.example/s/" + req.TransactionID}, nil
}

func (g *stubGateway) CheckStatus(ctx context.Context, transactionID string) (*gateway.StatusResponse, error) {
	if g.status != nil {
		return g.status(ctx, transactionID)
	}
	return &gateway.StatusResponse{Status: gateway.StatusPending}, nil
}

type billingFixture struct {
	router   http.Handler
	users    *user.Service
	tokens   *auth.Service
	ledger   *ledger.Service
	payments *payment.Service
	gw       *stubGateway
	plan     catalog.Plan
	retired  catalog.Plan
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	plan := catalog.Plan{
		ID:                uuid.New(),
		Tier:              "basic",
		DurationDays:      30,
		MaxVisibleTargets: 3,
		ReminderLeadHours: 24,
		PriceCents:        1990,
		Currency:          "USD",
		Active:            true,
	}
	retired := catalog.Plan{
		ID:                uuid.New(),
		Tier:              "legacy",
		DurationDays:      7,
		MaxVisibleTargets: 1,
		ReminderLeadHours: 24,
		PriceCents:        990,
		Currency:          "USD",
		Active:            false,
	}
	source := catalog.NewMemorySource(plan, retired)

	users := user.NewService(user.NewMemoryStore(), user.WithBcryptCost(bcrypt.MinCost))
	tokens, err := auth.NewService(auth.Config{
		SigningKey: "0123456789abcdef0123456789abcdef",
	}, auth.NewMemoryStore())
	require.NoError(t, err)

	ledgerSvc := ledger.NewService(ledger.NewMemoryStore(), source)
	gw := &stubGateway{}
	payments := payment.NewService(payment.Config{
		CallbackURL:        "https://api.example.com/billing/callback",
		RedirectURL:        "https://app.example.com/billing/done",
		TempPasswordLength: 12,
	}, payment.NewMemoryStore(), source, ledgerSvc, users, gw)

	// The verifier only does local HMAC checks, so a real client works
	// offline.
	verifier, err := gateway.New(gateway.Config{
		BaseURL:       "https://gw.example.com",
		MerchantID:    "M-1",
		APIKey:        "key",
		SigningSecret: callbackSecret,
	})
	require.NoError(t, err)

	handler := billing.NewHandler(source, payments, ledgerSvc, users, tokens, verifier)
	return &billingFixture{
		router:   handler.Router(),
		users:    users,
		tokens:   tokens,
		ledger:   ledgerSvc,
		payments: payments,
		gw:       gw,
		plan:     plan,
		retired:  retired,
	}
}

func (fx *billingFixture) newUser(t *testing.T, email string, role user.Role) (*user.User, string) {
	t.Helper()
	usr, err := fx.users.Create(context.Background(), user.CreateParams{
		Email:    email,
		Password: "hunter2secret",
		Role:     role,
		Active:   true,
	})
	require.NoError(t, err)

	ownerType := auth.OwnerUser
	if role == user.RoleAdmin {
		ownerType = auth.OwnerAdmin
	}
	token, err := fx.tokens.IssueAccessToken(usr.ID, ownerType)
	require.NoError(t, err)
	return usr, token
}

func (fx *billingFixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

// signedCallback posts a correctly signed gateway callback.
func (fx *billingFixture) signedCallback(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	sig, err := webhook.SignPayload(callbackSecret, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", sig.Signature)
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(sig.Timestamp, 10))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func (fx *billingFixture) checkout(t *testing.T, token string) (transactionID string) {
	t.Helper()
	rec := fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, fx.plan.ID), token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		TransactionID string `json:"transactionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.TransactionID
}

func callbackBody(transactionID, resultCode string) string {
	return fmt.Sprintf(`{"transactionId":%q,"resultCode":%q,"gatewayTransactionId":"GW-77"}`, transactionID, resultCode)
}

func TestListPlans(t *testing.T) {
	t.Parallel()

	fx := newBillingFixture(t)
	rec := fx.do(t, http.MethodGet, "/plans", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []struct {
		Tier       string `json:"tier"`
		PriceCents int64  `json:"priceCents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plans))
	require.Len(t, plans, 1, "retired plans stay hidden")
	assert.Equal(t, "basic", plans[0].Tier)
	assert.EqualValues(t, 1990, plans[0].PriceCents)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("opens a gateway session", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, fx.plan.ID), token)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			PaymentID     uuid.UUID `json:"paymentId"`
			TransactionID string    `json:"transactionId"`
			PaymentURL    string    `json:"paymentUrl"`
			AmountCents   int64     `json:"amountCents"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.PaymentID)
		assert.NotEmpty(t, resp.TransactionID)
		assert.Contains(t, resp.PaymentURL, resp.TransactionID)
		assert.EqualValues(t, 1990, resp.AmountCents)
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)

		rec := fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, fx.plan.ID), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects retired and unknown plans", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, fx.retired.ID), token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, uuid.New()), token)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("gateway outage is a 503", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)
		fx.gw.initiate = func(context.Context, gateway.InitiateRequest) (*gateway.InitiateResponse, error) {
			return nil, gateway.ErrGatewayUnavailable
		}

		rec := fx.do(t, http.MethodPost, "/checkout", fmt.Sprintf(`{"planId":%q}`, fx.plan.ID), token)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRegisterCheckout(t *testing.T) {
	t.Parallel()

	t.Run("new email gets an account and a temp password", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)

		rec := fx.do(t, http.MethodPost, "/register-checkout",
			fmt.Sprintf(`{"email":"fresh@example.com","planId":%q}`, fx.plan.ID), "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp struct {
			IsNewUser    bool   `json:"isNewUser"`
			TempPassword string `json:"tempPassword"`
			PaymentURL   string `json:"paymentUrl"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsNewUser)
		assert.Len(t, resp.TempPassword, 12)
		assert.NotEmpty(t, resp.PaymentURL)
	})

	t.Run("existing email checks out without leaking a password", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		fx.newUser(t, "buyer@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodPost, "/register-checkout",
			fmt.Sprintf(`{"email":"buyer@example.com","planId":%q}`, fx.plan.ID), "")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "tempPassword")
	})

	t.Run("rejects a malformed email", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)

		rec := fx.do(t, http.MethodPost, "/register-checkout",
			fmt.Sprintf(`{"email":"nope","planId":%q}`, fx.plan.ID), "")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestCallback(t *testing.T) {
	t.Parallel()

	t.Run("applies a signed success and grants the plan", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, token := fx.newUser(t, "buyer@example.com", user.RoleUser)
		txID := fx.checkout(t, token)

		rec := fx.signedCallback(t, callbackBody(txID, gateway.ResultSuccess))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"status":"applied"}`, rec.Body.String())

		queue, err := fx.ledger.CurrentQueue(context.Background(), usr.ID)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Equal(t, ledger.StatusActive, queue[0].Entry.Status)
	})

	t.Run("redelivery reports a duplicate and applies nothing", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, token := fx.newUser(t, "buyer@example.com", user.RoleUser)
		txID := fx.checkout(t, token)

		body := callbackBody(txID, gateway.ResultSuccess)
		require.Equal(t, http.StatusOK, fx.signedCallback(t, body).Code)

		rec := fx.signedCallback(t, body)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())

		queue, err := fx.ledger.CurrentQueue(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.Len(t, queue, 1)
	})

	t.Run("unknown transaction is acknowledged and dropped", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)

		rec := fx.signedCallback(t, callbackBody("TS-0-deadbeef", gateway.ResultSuccess))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ignored"}`, rec.Body.String())
	})

	t.Run("bad signature is rejected before parsing", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)
		txID := fx.checkout(t, token)

		body := callbackBody(txID, gateway.ResultSuccess)
		sig, err := webhook.SignPayload("wrong-secret", []byte(body))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(body))
		req.Header.Set("X-Webhook-Signature", sig.Signature)
		req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(sig.Timestamp, 10))
		rec := httptest.NewRecorder()
		fx.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		// The payment is untouched.
		p, err := fx.payments.PollStatus(context.Background(), txID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, p.Status)
	})

	t.Run("missing signature headers are rejected", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		fx.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestPollPayment(t *testing.T) {
	t.Parallel()

	t.Run("returns the gateway-confirmed status", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)
		txID := fx.checkout(t, token)

		fx.gw.status = func(_ context.Context, transactionID string) (*gateway.StatusResponse, error) {
			return &gateway.StatusResponse{Status: gateway.StatusCompleted, GatewayTransactionID: "GW-9"}, nil
		}

		rec := fx.do(t, http.MethodGet, "/payments/"+txID, "", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "completed", resp.Status)
	})

	t.Run("other users cannot see the payment", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, owner := fx.newUser(t, "owner@example.com", user.RoleUser)
		_, other := fx.newUser(t, "other@example.com", user.RoleUser)
		txID := fx.checkout(t, owner)

		rec := fx.do(t, http.MethodGet, "/payments/"+txID, "", other)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown transaction is a 404", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "buyer@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodGet, "/payments/TS-0-cafecafe", "", token)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubscription(t *testing.T) {
	t.Parallel()

	t.Run("never subscribed", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		_, token := fx.newUser(t, "new@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodGet, "/subscription", "", token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"snapshot":null,"queue":[]}`, rec.Body.String())
	})

	t.Run("active term with a queued successor", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, token := fx.newUser(t, "buyer@example.com", user.RoleUser)

		_, err := fx.ledger.Grant(context.Background(), usr.ID, fx.plan.ID)
		require.NoError(t, err)
		_, err = fx.ledger.Grant(context.Background(), usr.ID, fx.plan.ID)
		require.NoError(t, err)

		rec := fx.do(t, http.MethodGet, "/subscription", "", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Snapshot *struct {
				Tier     string `json:"tier"`
				IsActive bool   `json:"isActive"`
			} `json:"snapshot"`
			Queue []struct {
				Status        string `json:"status"`
				QueuePosition int    `json:"queuePosition"`
				Tier          string `json:"tier"`
				DurationDays  int    `json:"durationDays"`
			} `json:"queue"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Snapshot)
		assert.Equal(t, "basic", resp.Snapshot.Tier)
		assert.True(t, resp.Snapshot.IsActive)
		require.Len(t, resp.Queue, 2)
		assert.Equal(t, "active", resp.Queue[0].Status)
		assert.Equal(t, 1, resp.Queue[0].QueuePosition)
		assert.Equal(t, "pending", resp.Queue[1].Status)
		assert.Equal(t, 2, resp.Queue[1].QueuePosition)
		assert.Equal(t, 30, resp.Queue[1].DurationDays)
	})
}

func TestGrant(t *testing.T) {
	t.Parallel()

	t.Run("admin grants a plan without payment", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, _ := fx.newUser(t, "member@example.com", user.RoleUser)
		_, admin := fx.newUser(t, "admin@example.com", user.RoleAdmin)

		rec := fx.do(t, http.MethodPost, "/admin/grants",
			fmt.Sprintf(`{"userId":%q,"planId":%q}`, usr.ID, fx.plan.ID), admin)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		queue, err := fx.ledger.CurrentQueue(context.Background(), usr.ID)
		require.NoError(t, err)
		require.Len(t, queue, 1)
		assert.Nil(t, queue[0].Entry.PaymentID)
	})

	t.Run("regular users are forbidden", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, token := fx.newUser(t, "member@example.com", user.RoleUser)

		rec := fx.do(t, http.MethodPost, "/admin/grants",
			fmt.Sprintf(`{"userId":%q,"planId":%q}`, usr.ID, fx.plan.ID), token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown user or plan is a field error", func(t *testing.T) {
		t.Parallel()
		fx := newBillingFixture(t)
		usr, _ := fx.newUser(t, "member@example.com", user.RoleUser)
		_, admin := fx.newUser(t, "admin@example.com", user.RoleAdmin)

		rec := fx.do(t, http.MethodPost, "/admin/grants",
			fmt.Sprintf(`{"userId":%q,"planId":%q}`, uuid.New(), fx.plan.ID), admin)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = fx.do(t, http.MethodPost, "/admin/grants",
			fmt.Sprintf(`{"userId":%q,"planId":%q}`, usr.ID, uuid.New()), admin)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}
