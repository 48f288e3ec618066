package webhook

import (
	"net/http"
	"time"
)

// DeliveryResult describes a single delivery attempt.
type DeliveryResult struct {
	Success    bool
	StatusCode int
	Attempt    int
	Duration   time.Duration
	Error      error
}

// DeliveryHook is called after each delivery attempt.
type DeliveryHook func(result DeliveryResult)

type sendOptions struct {
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client

	maxRetries       int
	retryInterval    time.Duration
	maxRetryInterval time.Duration

	signatureSecret string

	circuitBreaker *CircuitBreaker

	onDelivery DeliveryHook
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:          10 * time.Second,
		headers:          make(map[string]string),
		maxRetries:       3,
		retryInterval:    time.Second,
		maxRetryInterval: 30 * time.Second,
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendOptions)

// WithTimeout sets the per-attempt HTTP timeout. Default is 10s.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom header to the request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithHeaders adds multiple custom headers to the request.
func WithHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) {
		for k, v := range headers {
			if k != "" && v != "" {
				o.headers[k] = v
			}
		}
	}
}

// WithMaxRetries sets the retry attempt cap. Zero disables retries.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryInterval tunes the exponential backoff between attempts.
func WithRetryInterval(initial, max time.Duration) SendOption {
	return func(o *sendOptions) {
		if initial > 0 {
			o.retryInterval = initial
		}
		if max > 0 {
			o.maxRetryInterval = max
		}
	}
}

// WithSignature enables HMAC-SHA256 request signing with the given
// secret, adding X-Webhook-Signature, X-Webhook-Timestamp and
// X-Webhook-ID headers.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the HTTP client for this send.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker protects the endpoint with a breaker. Reuse the
// same instance per endpoint so failure state accumulates.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuitBreaker = cb
	}
}

// WithOnDelivery registers a callback invoked after each attempt,
// useful for logging and metrics.
func WithOnDelivery(hook DeliveryHook) SendOption {
	return func(o *sendOptions) {
		o.onDelivery = hook
	}
}
