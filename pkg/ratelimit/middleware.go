package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
)

// KeyFunc derives the bucket key for a request. Returning an empty key
// skips limiting for that request.
type KeyFunc func(r *http.Request) string

type middlewareOptions struct {
	deny http.HandlerFunc
	log  *slog.Logger
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*middlewareOptions)

// WithDenyHandler replaces the plain-text 429 written when a request is
// rejected.
func WithDenyHandler(h http.HandlerFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if h != nil {
			o.deny = h
		}
	}
}

// WithLogger sets the logger for limiter failures.
func WithLogger(log *slog.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// Middleware admits requests through the limiter, keyed by keyFn. Every
// keyed response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset; rejections add Retry-After. A failing store lets
// requests pass so the limiter cannot take the guarded routes down with
// it.
func Middleware(limiter *Limiter, keyFn KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	options := middlewareOptions{
		deny: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				options.log.ErrorContext(r.Context(), "rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				if wait := int(res.RetryAfter().Seconds()) + 1; wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(wait))
				}
				options.deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
