// Package logger builds configured *slog.Logger instances through
// functional options and supplies attribute constructors that keep log
// field names consistent across the codebase.
//
// New selects a text or JSON slog handler from the configured Format,
// applies the minimum level and any static attributes, and returns the
// assembled logger. Environment presets cover the common cases:
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "tradesignal-api"))
//	logger.SetAsDefault(log)
//
// Attribute helpers such as Error, UserID and TransactionID return
// ready-made slog.Attr values so call sites never spell field names by
// hand:
//
//	log.Info("payment settled",
//	    logger.TransactionID(p.TransactionID),
//	    logger.UserID(p.UserID),
//	)
//
// Error returns an empty attribute for nil errors, so it can be passed
// unconditionally.
package logger
