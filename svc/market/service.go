package market

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

// Option configures the service.
type Option func(*Service)

// WithLogger sets a structured logger. A nil logger is ignored.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCache puts a Redis cache with the given TTL in front of the price
// API. A nil client or non-positive TTL leaves caching disabled.
func WithCache(cache redis.UniversalClient, ttl time.Duration) Option {
	return func(s *Service) {
		if cache != nil && ttl > 0 {
			s.cache = cache
			s.ttl = ttl
		}
	}
}

// Service serves quotes for signal targets. When a cache is configured,
// fresh quotes are kept in Redis for the configured TTL; cache failures
// degrade to a direct fetch instead of failing the call.
type Service struct {
	fetcher Fetcher
	cache   redis.UniversalClient
	ttl     time.Duration
	log     *slog.Logger
}

// NewService wires the quote service around a fetcher.
func NewService(fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		ttl:     defaultCacheTTL,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote returns the current price for a symbol, served from cache when a
// fresh entry exists.
func (s *Service) Quote(ctx context.Context, symbol string) (*Quote, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	key := cacheKey(sym)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached Quote
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
			s.log.WarnContext(ctx, "dropping corrupt cached quote", slog.String("symbol", sym))
		case !errors.Is(err, redis.Nil):
			s.log.WarnContext(ctx, "quote cache read failed",
				slog.String("symbol", sym),
				slog.Any("error", err))
		}
	}

	quote, err := s.fetcher.FetchQuote(ctx, sym)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(quote); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
				s.log.WarnContext(ctx, "quote cache write failed",
					slog.String("symbol", sym),
					slog.Any("error", err))
			}
		}
	}
	return quote, nil
}

// Quotes resolves several symbols in one call. Symbols that fail to
// resolve are skipped; the error of the first failure is returned
// alongside the quotes that succeeded.
func (s *Service) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	var (
		quotes   = make([]Quote, 0, len(symbols))
		firstErr error
	)
	for _, symbol := range symbols {
		quote, err := s.Quote(ctx, symbol)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		quotes = append(quotes, *quote)
	}
	return quotes, firstErr
}

func cacheKey(sym string) string {
	return "market:quote:" + sym
}
