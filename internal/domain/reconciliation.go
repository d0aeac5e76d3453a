package domain

import "time"

// ReconciliationRecord is the append-only marker that the domain mutation for
// a correlation id has been applied. Its presence is the idempotency guard:
// insert is check-and-act atomic (unique constraint), so a terminal event
// delivered twice never double-applies.
type ReconciliationRecord struct {
	CorrelationID string
	Kind          IntentKind
	SubjectID     string
	Outcome       PollStatus
	Amount        float64
	GatewayRef    string
	ProcessedAt   *time.Time
	FailureReason string
	CreatedAt     time.Time
}

// Booking is the slice of the booking aggregate the reconciler reads/writes.
// The full booking model is owned elsewhere in the platform.
type Booking struct {
	BookingID         string
	RefundStatus      string
	RefundAmount      float64
	RefundProcessedAt *time.Time
	UpdatedAt         time.Time
}

const (
	RefundStatusRequested = "requested"
	RefundStatusConfirmed = "confirmed"
	RefundStatusFailed    = "failed"
)

// Subscription is created exactly once when a subscription push payment
// confirms. SubjectID of the intent is the checkout request this fulfils.
type Subscription struct {
	SubscriptionID string
	CheckoutID     string
	Tier           string
	AmountPaid     float64
	StartedAt      time.Time
	CreatedAt      time.Time
}

// Payout is the slice of the payout-request aggregate owned by reconciliation.
type Payout struct {
	PayoutID    string
	Status      string
	GatewayRef  string
	ProcessedAt *time.Time
	UpdatedAt   time.Time
}

const (
	PayoutStatusRequested = "requested"
	PayoutStatusProcessed = "processed"
	PayoutStatusFailed    = "failed"
)
