package postgres

import (
	"time"

	"github.com/google/uuid"
)

type paymentIntentModel struct {
	CorrelationID     string     `gorm:"column:correlation_id;primaryKey"`
	Kind              string     `gorm:"column:kind"`
	SubjectID         string     `gorm:"column:subject_id"`
	Amount            float64    `gorm:"column:amount"`
	CounterpartyPhone string     `gorm:"column:counterparty_phone"`
	Tier              string     `gorm:"column:tier"`
	Status            string     `gorm:"column:status"`
	Attempts          int        `gorm:"column:attempts"`
	StartedAt         time.Time  `gorm:"column:started_at"`
	Deadline          time.Time  `gorm:"column:deadline"`
	SettledAt         *time.Time `gorm:"column:settled_at"`
	FailureReason     string     `gorm:"column:failure_reason"`
}

func (paymentIntentModel) TableName() string { return "payment_intents" }

type reconciliationModel struct {
	CorrelationID string     `gorm:"column:correlation_id;primaryKey"`
	Kind          string     `gorm:"column:kind"`
	SubjectID     string     `gorm:"column:subject_id"`
	Outcome       string     `gorm:"column:outcome"`
	Amount        float64    `gorm:"column:amount"`
	GatewayRef    string     `gorm:"column:gateway_ref"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
	FailureReason string     `gorm:"column:failure_reason"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
}

func (reconciliationModel) TableName() string { return "reconciliation_records" }

type bookingModel struct {
	BookingID         string     `gorm:"column:booking_id;primaryKey"`
	RefundStatus      string     `gorm:"column:refund_status"`
	RefundAmount      float64    `gorm:"column:refund_amount"`
	RefundProcessedAt *time.Time `gorm:"column:refund_processed_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

type subscriptionModel struct {
	SubscriptionID string    `gorm:"column:subscription_id;type:uuid;primaryKey"`
	CheckoutID     string    `gorm:"column:checkout_id"`
	Tier           string    `gorm:"column:tier"`
	AmountPaid     float64   `gorm:"column:amount_paid"`
	StartedAt      time.Time `gorm:"column:started_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (subscriptionModel) TableName() string { return "subscriptions" }

type payoutModel struct {
	PayoutID    string     `gorm:"column:payout_id;primaryKey"`
	Status      string     `gorm:"column:status"`
	GatewayRef  string     `gorm:"column:gateway_ref"`
	ProcessedAt *time.Time `gorm:"column:processed_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string { return "payouts" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "payments_outbox" }
