package notify

import (
	"context"
	"log/slog"
)

// Noop satisfies the emitter ports services declare. It discards every event
// and backs constructions that opt out of notifications.
type Noop struct{}

func (Noop) Emit(context.Context, EventType, string, any) {}

// LogPublisher writes events to the log instead of a broker. It backs
// single-node deployments where no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "notification event",
		slog.String("event_type", event.Type.String()),
		slog.String("event_id", event.ID),
		slog.String("event_key", event.Key),
		slog.String("payload", string(event.Payload)))
	return nil
}
