package market

import (
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
)

const maxQuoteResponseBytes = 16 << 10

// Quote is one price observation for a signal target.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Fetcher resolves current quotes. Implementations must be safe for
// concurrent use.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (*Quote, error)
}

// FetcherOption configures the HTTP fetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying HTTP client. A nil client is
// ignored.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// HTTPFetcher queries the external price API.
type HTTPFetcher struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPFetcher validates the config and builds the API client.
func NewHTTPFetcher(cfg Config, opts ...FetcherOption) (*HTTPFetcher, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: base URL must be a valid http(s) URL", ErrInvalidConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfiguration)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	f := &HTTPFetcher{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.RequestTimeout,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FetchQuote asks the price API for the symbol's current quote.
func (f *HTTPFetcher) FetchQuote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	endpoint := f.baseURL + "/v1/quotes/" + url.PathEscape(sym)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("market: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("%w: request timed out", ErrMarketUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrMarketUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, sym)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrMarketUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("market: unexpected status %d", resp.StatusCode)
	}

	var wire quoteResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuote, err)
	}
	if wire.Price <= 0 || wire.Currency == "" {
		return nil, fmt.Errorf("%w: missing price or currency", ErrMalformedQuote)
	}

	return &Quote{
		Symbol:    sym,
		Price:     wire.Price,
		Currency:  wire.Currency,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// NormalizeSymbol upper-cases a ticker and rejects anything that is not
// 2 to 12 characters of A-Z and digits.
func NormalizeSymbol(symbol string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if len(sym) < 2 || len(sym) > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	for _, r := range sym {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
		}
	}
	return sym, nil
}

type quoteResponse struct {
	Symbol   string  `json:"symbol"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}
