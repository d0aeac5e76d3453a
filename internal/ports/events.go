package ports

import "context"

// EventPublisher is the outbound terminal-event publish port.
// The partition key keeps all events of one correlation id on one partition
// so downstream consumers see them in order.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, partitionKey string, payload []byte) error
}
