// Package quotes exposes market quotes to subscribers. Every route sits
// behind the access-token check and the subscription gate; batch lookups
// are capped by the plan's visible-target limit.
package quotes

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tradesignal/backend/pkg/response"
	"github.com/tradesignal/backend/svc/auth"
	"github.com/tradesignal/backend/svc/ledger"
	"github.com/tradesignal/backend/svc/market"
)

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

// Handler serves the quote routes.
type Handler struct {
	quotes    *market.Service
	snapshots ledger.SnapshotSource
	tokens    *auth.Service
	log       *slog.Logger
}

// NewHandler wires the quotes module.
func NewHandler(
	quotes *market.Service,
	snapshots ledger.SnapshotSource,
	tokens *auth.Service,
	opts ...Option,
) *Handler {
	h := &Handler{
		quotes:    quotes,
		snapshots: snapshots,
		tokens:    tokens,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts the quote routes behind the subscription gate.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(auth.Middleware(h.tokens))
	r.Use(ledger.RequireActiveSubscription(h.snapshots))

	r.Get("/", h.batch)
	r.Get("/{symbol}", h.single)

	return r
}

func (h *Handler) single(w http.ResponseWriter, r *http.Request) {
	quote, err := h.quotes.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeQuoteError(w, r, "symbol", err)
		return
	}
	response.JSON(w, http.StatusOK, quote)
}

type batchResponse struct {
	Quotes    []market.Quote `json:"quotes"`
	Truncated bool           `json:"truncated,omitempty"`
}

// batch resolves the symbols in the comma-separated "symbols" parameter.
// Requests beyond the plan's visible-target cap are truncated to the cap;
// admins carry no snapshot and are not capped.
func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		response.Error(w, response.ValidationError{"symbols": {"at least one symbol is required"}})
		return
	}

	truncated := false
	if snap, ok := ledger.GetSnapshotFromContext(r.Context()); ok {
		if limit := snap.MaxVisibleTargets; limit > 0 && len(symbols) > limit {
			symbols = symbols[:limit]
			truncated = true
		}
	}

	quotes, err := h.quotes.Quotes(r.Context(), symbols)
	if err != nil && len(quotes) == 0 {
		h.writeQuoteError(w, r, "symbols", err)
		return
	}

	response.JSON(w, http.StatusOK, batchResponse{Quotes: quotes, Truncated: truncated})
}

func (h *Handler) writeQuoteError(w http.ResponseWriter, r *http.Request, field string, err error) {
	switch {
	case errors.Is(err, market.ErrInvalidSymbol):
		response.Error(w, response.ValidationError{field: {"must be 2 to 12 letters or digits"}})
	case errors.Is(err, market.ErrUnknownSymbol):
		response.Error(w, response.ErrNotFound.WithMessage("unknown symbol"))
	case errors.Is(err, market.ErrMarketUnavailable), errors.Is(err, market.ErrMalformedQuote):
		response.Error(w, response.ErrServiceUnavailable.WithMessage("market data is unavailable, try again shortly"))
	default:
		h.log.ErrorContext(r.Context(), "quote lookup failed", slog.Any("error", err))
		response.Error(w, err)
	}
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			symbols = append(symbols, trimmed)
		}
	}
	return symbols
}
