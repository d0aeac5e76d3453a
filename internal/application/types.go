package application

import "github.com/nyumbani/payments-service/internal/domain"

// CheckoutInput initiates a subscription push payment. SubjectID is the
// checkout request this payment fulfils; the gateway prompts the phone.
type CheckoutInput struct {
	CheckoutID        string
	Tier              string
	Amount            float64
	CounterpartyPhone string
}

// RefundInput initiates a booking-cancellation refund.
type RefundInput struct {
	BookingID         string
	Amount            float64
	CounterpartyPhone string
}

// PayoutInput initiates an owner payout disbursement.
type PayoutInput struct {
	PayoutID          string
	Amount            float64
	CounterpartyPhone string
}

// InitiateOutput returns the correlation id the presentation layer polls on.
type InitiateOutput struct {
	CorrelationID string
	Snapshot      domain.IntentSnapshot
}

// CallbackInput is an out-of-band gateway resolution for a correlation id.
type CallbackInput struct {
	CorrelationID string
	Status        domain.PollStatus
	Details       domain.Outcome
}

// ListIntentsOutput pages the operator listing of durable intent rows.
type ListIntentsOutput struct {
	Intents []IntentView
	Total   int
}

// IntentView is the operator-facing projection of one durable intent row.
type IntentView struct {
	CorrelationID string
	Kind          domain.IntentKind
	SubjectID     string
	Amount        float64
	Status        domain.PollStatus
	Attempts      int
	StartedAt     string
	SettledAt     string
	FailureReason string
}
