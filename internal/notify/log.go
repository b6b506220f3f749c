package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LogNotifier writes each message to the log instead of delivering it. Used
// in development and when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	event := n.logger.Info().
		Str("message_id", id).
		Str("recipient", recipient).
		Str("kind", string(kind))
	for k, v := range data {
		event = event.Str("data."+k, v)
	}
	event.Msg("notification")
	return id, nil
}
