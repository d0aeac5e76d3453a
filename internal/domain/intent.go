package domain

import (
	"fmt"
	"strings"
	"time"
)

// IntentKind identifies which business flow initiated a payment intent.
// The reconciliation engine is parametrized by kind so checkout, refund and
// payout share one scheduler instead of three drifting copies.
type IntentKind string

const (
	KindSubscriptionPayment IntentKind = "subscription_payment"
	KindBookingRefund       IntentKind = "booking_refund"
	KindOwnerPayout         IntentKind = "owner_payout"
)

// ValidKind reports whether k is one of the supported intent kinds.
func ValidKind(k IntentKind) bool {
	switch k {
	case KindSubscriptionPayment, KindBookingRefund, KindOwnerPayout:
		return true
	}
	return false
}

// PaymentIntent is one in-flight financial operation against the mobile-money
// gateway. It lives exactly as long as its poll is non-terminal; the durable
// trace of the operation is the intent row plus the reconciliation record.
type PaymentIntent struct {
	CorrelationID     string
	Kind              IntentKind
	SubjectID         string
	Amount            float64
	CounterpartyPhone string
	// Tier is only set for subscription checkouts; it is informational and
	// carried through to reconciliation like amount and phone.
	Tier      string
	CreatedAt time.Time
}

func ValidateIntent(intent PaymentIntent) error {
	if strings.TrimSpace(intent.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation_id is required", ErrInvalidInput)
	}
	if !ValidKind(intent.Kind) {
		return fmt.Errorf("%w: unknown intent kind %q", ErrInvalidInput, intent.Kind)
	}
	if strings.TrimSpace(intent.SubjectID) == "" {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidInput)
	}
	if intent.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return nil
}

// PollStatus is the lifecycle state of a poll. It is monotonic: once the
// status leaves Pending it never changes again.
type PollStatus string

const (
	PollStatusPending   PollStatus = "pending"
	PollStatusConfirmed PollStatus = "confirmed"
	PollStatusFailed    PollStatus = "failed"
	PollStatusTimedOut  PollStatus = "timed_out"
)

// Terminal reports whether s admits no further transition.
func (s PollStatus) Terminal() bool {
	return s == PollStatusConfirmed || s == PollStatusFailed || s == PollStatusTimedOut
}

// PollState is the mutable state of one active PaymentIntent poll.
// All transitions go through Transition so the monotonicity invariant is
// enforced in a single place.
type PollState struct {
	Status               PollStatus
	Attempts             int
	StartedAt            time.Time
	Deadline             time.Time
	LastFailureReason    string
	TransportErrorStreak int
}

// NewPollState begins a poll at Pending with deadline = startedAt + budget.
func NewPollState(startedAt time.Time, budget time.Duration) PollState {
	return PollState{
		Status:    PollStatusPending,
		StartedAt: startedAt,
		Deadline:  startedAt.Add(budget),
	}
}

// Transition moves the state to next. Only Pending -> terminal moves are
// legal; any attempt to leave a terminal state returns ErrTerminalState.
func (s *PollState) Transition(next PollStatus) error {
	if s.Status != PollStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrTerminalState, s.Status, next)
	}
	if !next.Terminal() {
		return fmt.Errorf("%w: cannot transition to %s", ErrInvalidInput, next)
	}
	s.Status = next
	return nil
}

// RecordAttempt counts one completed status query and resets the transport
// error streak, since the gateway answered.
func (s *PollState) RecordAttempt() {
	s.Attempts++
	s.TransportErrorStreak = 0
}

// RecordTransportError counts one completed query that failed at the
// transport layer. The attempt still counts; the streak decides early escalation.
func (s *PollState) RecordTransportError(reason string) {
	s.Attempts++
	s.TransportErrorStreak++
	s.LastFailureReason = reason
}

// OutcomeStatus is the normalized per-tick answer from the status prober.
type OutcomeStatus string

const (
	OutcomeStillPending OutcomeStatus = "still_pending"
	OutcomeConfirmed    OutcomeStatus = "confirmed"
	OutcomeFailed       OutcomeStatus = "failed"
)

// Outcome is one normalized status-query response. Transport errors are not
// outcomes; they surface as errors from the prober and never move the poll
// to Failed.
type Outcome struct {
	Status           OutcomeStatus
	Amount           float64
	CounterpartyName string
	GatewayRef       string
	ProcessedAt      time.Time
	FailureReason    string
}

// TerminalOutcome is the single event a poll emits when it settles. It
// carries the originating intent so the reconciler does not need to look the
// poll back up.
type TerminalOutcome struct {
	Intent   PaymentIntent
	Status   PollStatus
	Details  Outcome
	Attempts int
}

// IntentSnapshot is the read-only projection handed to presentation
// consumers on every state change and served by the snapshot endpoint.
type IntentSnapshot struct {
	CorrelationID     string     `json:"correlation_id"`
	Kind              IntentKind `json:"kind"`
	Status            PollStatus `json:"status"`
	AttemptsMade      int        `json:"attempts_made"`
	SecondsRemaining  int        `json:"seconds_remaining"`
	LastFailureReason string     `json:"last_failure_reason,omitempty"`
}
