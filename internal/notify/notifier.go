package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogNotifier implements booking.Notifier by emitting structured log lines.
// Deployments swap in an SMS/email provider behind the same interface.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any) {
	n.log.Info().
		Str("user_id", userID.String()).
		Str("event_type", eventType).
		Fields(payload).
		Msg("notification")
}
