package events

import (
	"testing"

	"github.com/nyumbani/payments-service/internal/contracts"
)

func TestKafkaPublisherRoutesAlertsToAlertTopic(t *testing.T) {
	t.Parallel()

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "payments.events", map[string]string{
		contracts.EventReconciliationPartialFailure: "payments.alerts",
	})
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	if got := pub.topicFor(contracts.EventReconciliationPartialFailure); got != "payments.alerts" {
		t.Fatalf("alert topic = %q, want payments.alerts", got)
	}
	for _, eventType := range []string{
		contracts.EventPaymentConfirmed,
		contracts.EventRefundFailed,
		contracts.EventPayoutProcessed,
	} {
		if got := pub.topicFor(eventType); got != "payments.events" {
			t.Fatalf("topic for %s = %q, want payments.events", eventType, got)
		}
	}
}

func TestKafkaPublisherEmptyTopicMappingFallsBack(t *testing.T) {
	t.Parallel()

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, "payments.events", map[string]string{
		contracts.EventReconciliationPartialFailure: "",
	})
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	if got := pub.topicFor(contracts.EventReconciliationPartialFailure); got != "payments.events" {
		t.Fatalf("topic = %q, want payments.events fallback", got)
	}
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(nil, "payments.events", nil); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}
