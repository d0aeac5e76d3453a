package events

import (
	"context"
	"log/slog"
)

// LoggingPublisher stands in for the broker in local development.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error {
	p.logger.InfoContext(ctx, "published event",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload", string(payload),
	)
	return nil
}
