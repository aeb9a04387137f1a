package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the
// always-on sink; Kafka and Redis are layered on top when configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notification sink.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n Notification) error {
	attrs := []any{
		"kind", n.Kind,
		"id", n.ID,
		"severity", n.Severity,
		"description", n.Description,
	}
	if n.Action != "" {
		attrs = append(attrs, "action", n.Action)
	}
	if n.AlertType != "" {
		attrs = append(attrs, "alert_type", n.AlertType)
	}
	if n.ActorID != "" {
		attrs = append(attrs, "actor_id", n.ActorID)
	}
	if n.IPAddress != "" {
		attrs = append(attrs, "ip", n.IPAddress)
	}

	l.logger.WarnContext(ctx, "security notification", attrs...)
	return nil
}
