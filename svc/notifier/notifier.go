package notifier

import (
	"context"
	"log/slog"
)

// Notifier sends a notification to the given channel reference. The
// channel format is owned by the dispatcher behind the implementation; the
// core treats it as opaque.
type Notifier interface {
	Send(ctx context.Context, channel, title, body string) error
}

// LogNotifier writes notifications to the structured log instead of
// delivering them anywhere. It never fails.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that records sends in the log.
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, channel, title, body string) error {
	n.log.InfoContext(ctx, "notification sent",
		slog.String("channel", channel),
		slog.String("title", title),
		slog.String("body", body))
	return nil
}
