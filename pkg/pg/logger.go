package pg

import "context"

// logger is the slice of *slog.Logger the migration runner needs.
// Declared locally so callers can pass any structured logger.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
