// Package requestid assigns a correlation identifier to every HTTP
// request so log records from one request can be tied together.
//
// Middleware reuses a valid client-supplied X-Request-ID or mints a
// fresh UUID, stores it in the request context, and echoes it back in
// the response header. LogExtractor feeds the stored identifier to the
// logger so every record carries a request_id attribute.
package requestid

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
)

// Header is the request and response header carrying the identifier.
const Header = "X-Request-ID"

// maxIDLength bounds client-supplied identifiers; anything longer is
// replaced rather than truncated.
const maxIDLength = 64

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type requestIDContextKey struct{}

// SetToContext stores a request identifier in the context.
func SetToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// GetFromContext returns the identifier stored by the middleware, or
// empty when the middleware did not run.
func GetFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// LogExtractor returns a context extractor that surfaces the request
// identifier as a request_id log attribute.
func LogExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := GetFromContext(ctx); id != "" {
			return slog.String("request_id", id), true
		}
		return slog.Attr{}, false
	}
}

// newID mints a fresh identifier.
func newID() string {
	return uuid.New().String()
}

// acceptable reports whether a client-supplied identifier may be reused.
func acceptable(id string) bool {
	return id != "" && len(id) <= maxIDLength && validID.MatchString(id)
}
