// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, lifecycle hooks and a health-check handler.
//
// Run starts the listener in its own goroutine and blocks until the
// context is cancelled, an interrupt or TERM signal arrives, or the
// listener fails; it then shuts the server down within the configured
// deadline.
//
// # Usage
//
//	srv := httpserver.NewFromConfig(cfg,
//	    httpserver.WithLogger(log),
//	    httpserver.WithStartHook(func(l *slog.Logger) {
//	        l.Info("http server started", "addr", cfg.Addr)
//	    }),
//	)
//
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Run wraps listen errors with ErrStart; Shutdown wraps shutdown errors
// with ErrShutdown. Both can be matched with errors.Is.
package httpserver
