package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradesignal/backend/pkg/webhook"
)

const (
	// ResultSuccess is the gateway result code for an approved payment.
	// Every other code is a decline or failure.
	ResultSuccess = "000"

	initiatePath = "/v1/payments"

	defaultRequestTimeout = 10 * time.Second
	defaultCallbackMaxAge = 5 * time.Minute

	// Upper bound on gateway response bodies; anything larger is truncated.
	maxResponseBytes = 64 * 1024
)

// Status is the gateway-reported state of a payment session.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// InitiateRequest describes the payment session to open. TransactionID is
// the merchant-side idempotency key and must be unique per checkout.
type InitiateRequest struct {
	TransactionID string
	AmountCents   int64
	Currency      string
	PayerRef      string
	CallbackURL   string
	RedirectURL   string
}

// InitiateResponse carries the hosted payment page the buyer is redirected to.
type InitiateResponse struct {
	PaymentURL string
}

// StatusResponse is the result of a status poll.
type StatusResponse struct {
	Status               Status
	GatewayTransactionID string
}

// Callback is the server-to-server payment result notification. The gateway
// retries delivery, so the same callback may arrive more than once.
type Callback struct {
	TransactionID        string `json:"transactionId"`
	ResultCode           string `json:"resultCode"`
	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`
}

// Succeeded reports whether the callback announces an approved payment.
func (c Callback) Succeeded() bool {
	return c.ResultCode == ResultSuccess
}

// Option customizes the gateway client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, primarily for tests.
// A nil client is ignored.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// Client talks to the redirect payment gateway on behalf of one merchant
// account. It is safe for concurrent use.
type Client struct {
	baseURL        string
	merchantID     string
	apiKey         string
	signingSecret  string
	requestTimeout time.Duration
	callbackMaxAge time.Duration
	client         *http.Client
}

// New validates the configuration and returns a ready client.
func New(cfg Config, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: base URL %q is not a valid http(s) URL", ErrInvalidConfiguration, cfg.BaseURL)
	}
	if cfg.MerchantID == "" {
		return nil, fmt.Errorf("%w: merchant ID is required", ErrInvalidConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidConfiguration)
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrInvalidConfiguration)
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		merchantID:     cfg.MerchantID,
		apiKey:         cfg.APIKey,
		signingSecret:  cfg.SigningSecret,
		requestTimeout: cfg.RequestTimeout,
		callbackMaxAge: cfg.CallbackMaxAge,
		client:         &http.Client{},
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = defaultRequestTimeout
	}
	if c.callbackMaxAge <= 0 {
		c.callbackMaxAge = defaultCallbackMaxAge
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Initiate opens a payment session and returns the URL to redirect the buyer
// to. A rejected request surfaces as ErrInitiateRejected; transport failures
// and timeouts as ErrGatewayUnavailable.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	body, err := json.Marshal(initiateRequest{
		MerchantID:    c.merchantID,
		TransactionID: req.TransactionID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		PayerRef:      req.PayerRef,
		CallbackURL:   req.CallbackURL,
		RedirectURL:   req.RedirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal initiate request: %w", err)
	}

	resp, respBody, err := c.do(ctx, http.MethodPost, c.baseURL+initiatePath, body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrInitiateRejected, resp.StatusCode)
	}

	var out initiateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.ResultCode != ResultSuccess {
		return nil, fmt.Errorf("%w: result code %s (%s)", ErrInitiateRejected, out.ResultCode, out.Message)
	}
	if out.PaymentURL == "" {
		return nil, fmt.Errorf("%w: missing payment URL", ErrMalformedResponse)
	}

	return &InitiateResponse{PaymentURL: out.PaymentURL}, nil
}

// CheckStatus polls the gateway for the current state of a payment session.
// It is the fallback path for missed callbacks; both paths report through
// the same transaction ID.
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (*StatusResponse, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("%w: empty transaction id", ErrTransactionNotFound)
	}

	resp, respBody, err := c.do(ctx, http.MethodGet, c.baseURL+initiatePath+"/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrMalformedResponse, resp.StatusCode)
	}

	var out statusResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch Status(out.Status) {
	case StatusCompleted, StatusPending, StatusFailed:
		return &StatusResponse{
			Status:               Status(out.Status),
			GatewayTransactionID: out.GatewayTransactionID,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, out.Status)
	}
}

// VerifyCallbackSignature authenticates a callback body against the shared
// signing secret. The signature covers "<timestamp>.<payload>" and rejects
// deliveries older than the configured callback max age.
func (c *Client) VerifyCallbackSignature(payload []byte, timestamp int64, signature string) error {
	return webhook.VerifySignature(c.signingSecret, payload, webhook.SignatureHeaders{
		Signature: signature,
		Timestamp: timestamp,
	}, c.callbackMaxAge)
}

// ParseCallback decodes and validates a callback payload.
func ParseCallback(data []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if cb.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrInvalidCallback)
	}
	if cb.ResultCode == "" {
		return nil, fmt.Errorf("%w: missing result code", ErrInvalidCallback)
	}
	return &cb, nil
}

// do executes one bounded request and reads the capped response body.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Merchant-ID", c.merchantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to read response: %v", ErrGatewayUnavailable, err)
	}

	return resp, respBody, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: request timed out", ErrGatewayUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// Gateway wire types.

type initiateRequest struct {
	MerchantID    string `json:"merchantId"`
	TransactionID string `json:"transactionId"`
	AmountCents   int64  `json:"amountCents"`
	Currency      string `json:"currency"`
	PayerRef      string `json:"payerRef,omitempty"`
	CallbackURL   string `json:"callbackUrl"`
	RedirectURL   string `json:"redirectUrl"`
}

type initiateResponse struct {
	ResultCode string `json:"resultCode"`
	Message    string `json:"message,omitempty"`
	PaymentURL string `json:"paymentUrl,omitempty"`
}

type statusResponse struct {
	Status               string `json:"status"`
	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`
	Message              string `json:"message,omitempty"`
}
