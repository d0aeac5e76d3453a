package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher delivers settled-payment events to the platform broker.
// Messages are keyed by correlation id so every event for one intent lands
// on one partition and consumers observe them in order.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
	defaultTopic string
}

func NewKafkaPublisher(brokers []string, defaultTopic string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if strings.TrimSpace(defaultTopic) == "" {
		defaultTopic = "payments.events"
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topicByEvent: topicByEvent,
		defaultTopic: defaultTopic,
	}, nil
}

// topicFor resolves the destination topic for an event type, falling back to
// the default events topic when no dedicated topic is configured.
func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return p.defaultTopic
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, partitionKey string, payload []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicFor(eventType),
		Key:   []byte(partitionKey),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
