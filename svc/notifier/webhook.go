package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tradesignal/backend/pkg/webhook"
)

// ErrInvalidConfiguration is returned when the webhook notifier settings
// are incomplete.
var ErrInvalidConfiguration = errors.New("notifier: invalid configuration")

// Config holds the webhook dispatcher settings sourced from the
// environment.
type Config struct {
	// WebhookURL is the dispatcher endpoint notifications are posted to.
	WebhookURL string `env:"NOTIFIER_WEBHOOK_URL"`
	// SigningSecret signs the payload so the dispatcher can authenticate
	// the origin.
	SigningSecret string `env:"NOTIFIER_SIGNING_SECRET"`
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration `env:"NOTIFIER_SEND_TIMEOUT" envDefault:"5s"`
}

// WebhookNotifier pushes notifications to an external dispatcher as
// signed JSON. Deliveries retry briefly and share a circuit breaker, so a
// dead dispatcher degrades to fast failures instead of piling up timeouts.
type WebhookNotifier struct {
	cfg     Config
	sender  *webhook.Sender
	breaker *webhook.CircuitBreaker

	maxRetries    int
	retryInterval time.Duration
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*WebhookNotifier)

// WithRetry tunes delivery retries.
func WithRetry(maxRetries int, interval time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if maxRetries >= 0 {
			n.maxRetries = maxRetries
		}
		if interval > 0 {
			n.retryInterval = interval
		}
	}
}

// NewWebhookNotifier creates a notifier that posts to cfg.WebhookURL.
func NewWebhookNotifier(cfg Config, opts ...WebhookOption) (*WebhookNotifier, error) {
	if cfg.WebhookURL == "" {
		return nil, fmt.Errorf("%w: missing webhook URL", ErrInvalidConfiguration)
	}
	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("%w: missing signing secret", ErrInvalidConfiguration)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}

	n := &WebhookNotifier{
		cfg:           cfg,
		sender:        webhook.NewSender(),
		breaker:       webhook.NewCircuitBreaker(5, 2, 30*time.Second),
		maxRetries:    2,
		retryInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

func (n *WebhookNotifier) Send(ctx context.Context, channel, title, body string) error {
	msg := pushMessage{
		Channel: channel,
		Title:   title,
		Body:    body,
		SentAt:  time.Now().UTC(),
	}

	err := n.sender.Send(ctx, n.cfg.WebhookURL, msg,
		webhook.WithSignature(n.cfg.SigningSecret),
		webhook.WithTimeout(n.cfg.SendTimeout),
		webhook.WithMaxRetries(n.maxRetries),
		webhook.WithRetryInterval(n.retryInterval, 2*n.retryInterval),
		webhook.WithCircuitBreaker(n.breaker),
	)
	if err != nil {
		return fmt.Errorf("notifier: delivery failed: %w", err)
	}
	return nil
}

type pushMessage struct {
	Channel string    `json:"channel"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sentAt"`
}
