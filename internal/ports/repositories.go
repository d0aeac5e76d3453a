package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/domain"
)

// ReconciliationRepository owns the idempotency guard of the engine.
// Insert must be check-and-act atomic: it returns domain.ErrAlreadyReconciled
// when a record for the correlation id already exists, backed by a unique
// constraint so concurrent inserts cannot both win.
type ReconciliationRepository interface {
	Insert(ctx context.Context, record domain.ReconciliationRecord) error
	GetByCorrelationID(ctx context.Context, correlationID string) (domain.ReconciliationRecord, error)
}

// IntentQuery filters the operator listing of durable intent rows.
type IntentQuery struct {
	Status domain.PollStatus
	Kind   domain.IntentKind
	Limit  int
	Offset int
}

// IntentRecord is the durable trace of a PaymentIntent. The in-memory
// PollState is authoritative while the poll runs; the row is synced on
// terminal transitions so operators can list unresolved intents.
type IntentRecord struct {
	CorrelationID     string
	Kind              domain.IntentKind
	SubjectID         string
	Amount            float64
	CounterpartyPhone string
	Tier              string
	Status            domain.PollStatus
	Attempts          int
	StartedAt         time.Time
	Deadline          time.Time
	SettledAt         *time.Time
	FailureReason     string
}

// IntentRepository persists intent rows across their lifecycle.
type IntentRepository interface {
	Create(ctx context.Context, record IntentRecord) error
	MarkSettled(ctx context.Context, correlationID string, status domain.PollStatus, attempts int, failureReason string, settledAt time.Time) error
	GetByCorrelationID(ctx context.Context, correlationID string) (IntentRecord, error)
	List(ctx context.Context, query IntentQuery) ([]IntentRecord, int, error)
	ListUnresolvedBefore(ctx context.Context, deadlineBefore time.Time, limit int) ([]IntentRecord, error)
}

// BookingRepository exposes the refund slice of the booking aggregate.
type BookingRepository interface {
	GetByID(ctx context.Context, bookingID string) (domain.Booking, error)
	MarkRefundConfirmed(ctx context.Context, bookingID string, amount float64, processedAt time.Time) error
	MarkRefundFailed(ctx context.Context, bookingID string, at time.Time) error
}

// SubscriptionRepository creates subscription entities on confirmed checkout.
type SubscriptionRepository interface {
	Create(ctx context.Context, subscription domain.Subscription) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (domain.Subscription, error)
}

// PayoutRepository exposes the settlement slice of the payout aggregate.
type PayoutRepository interface {
	GetByID(ctx context.Context, payoutID string) (domain.Payout, error)
	MarkProcessed(ctx context.Context, payoutID, gatewayRef string, processedAt time.Time) error
	MarkFailed(ctx context.Context, payoutID string, at time.Time) error
}

// OutboxEvent is the write-side event payload prior to storage.
// It is adapter-neutral to keep application code independent of broker specifics.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord represents durable outbox state, including retry/error metadata.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	FirstSeenAt    time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository controls publish-retry workflow for domain events.
// This explicit contract enables transactional outbox patterns without leaking DB details.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
