package httpserver

import "log/slog"

// newNoopLogger returns a slog.Logger that discards all records, used
// when no logger option is supplied.
func newNoopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
