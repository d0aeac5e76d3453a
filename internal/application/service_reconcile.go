package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/contracts"
	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Reconcile applies a terminal outcome to local business state exactly once
// per correlation id. The reconciliation record insert is the atomic
// check-and-act: a replay (duplicate delivery, late webhook after timeout)
// hits domain.ErrAlreadyReconciled and returns success without mutating.
//
// If the record lands but the domain mutation fails, the record is NOT
// removed; the call surfaces domain.ErrReconciliationPartial and an alert
// event is enqueued so an operator can reconcile manually. Silently retrying
// would risk double-application if the first write partially succeeded.
func (s *Service) Reconcile(ctx context.Context, outcome domain.TerminalOutcome) error {
	intent := outcome.Intent
	now := s.nowFn()

	record := domain.ReconciliationRecord{
		CorrelationID: intent.CorrelationID,
		Kind:          intent.Kind,
		SubjectID:     intent.SubjectID,
		Outcome:       outcome.Status,
		Amount:        reconciledAmount(outcome),
		GatewayRef:    outcome.Details.GatewayRef,
		FailureReason: outcome.Details.FailureReason,
		CreatedAt:     now,
	}
	if !outcome.Details.ProcessedAt.IsZero() {
		processedAt := outcome.Details.ProcessedAt
		record.ProcessedAt = &processedAt
	}

	if err := s.records.Insert(ctx, record); err != nil {
		if errors.Is(err, domain.ErrAlreadyReconciled) {
			s.logger.InfoContext(ctx, "reconciliation replay ignored",
				"module", "application",
				"layer", "service",
				"operation", "reconcile",
				"outcome", "success",
				"correlation_id", intent.CorrelationID,
				"kind", string(intent.Kind),
				"status", string(outcome.Status),
			)
			return nil
		}
		return fmt.Errorf("insert reconciliation record: %w", err)
	}

	if err := s.applyOutcome(ctx, outcome, now); err != nil {
		partial := fmt.Errorf("%w: %s/%s: %v", domain.ErrReconciliationPartial, intent.Kind, intent.CorrelationID, err)
		s.logger.ErrorContext(ctx, "reconciliation mutation failed after record insert",
			"module", "application",
			"layer", "service",
			"operation", "reconcile",
			"outcome", "failure",
			"correlation_id", intent.CorrelationID,
			"kind", string(intent.Kind),
			"status", string(outcome.Status),
			"error", err,
		)
		s.enqueueAlert(ctx, outcome, err, now)
		return partial
	}

	s.markIntentSettled(ctx, outcome, now)
	s.enqueueSettledEvent(ctx, outcome, now)
	return nil
}

// applyOutcome performs the kind-specific mutation. Failed and TimedOut
// outcomes only mark status fields; no financial mutation happens.
func (s *Service) applyOutcome(ctx context.Context, outcome domain.TerminalOutcome, now time.Time) error {
	intent := outcome.Intent

	if outcome.Status != domain.PollStatusConfirmed {
		switch intent.Kind {
		case domain.KindBookingRefund:
			return s.bookings.MarkRefundFailed(ctx, intent.SubjectID, now)
		case domain.KindOwnerPayout:
			return s.payouts.MarkFailed(ctx, intent.SubjectID, now)
		default:
			// A failed subscription checkout leaves nothing to mark beyond
			// the intent row; no subscription exists yet.
			return nil
		}
	}

	processedAt := outcome.Details.ProcessedAt
	if processedAt.IsZero() {
		processedAt = now
	}

	switch intent.Kind {
	case domain.KindSubscriptionPayment:
		return s.subscriptions.Create(ctx, domain.Subscription{
			SubscriptionID: uuid.NewString(),
			CheckoutID:     intent.SubjectID,
			Tier:           intent.Tier,
			AmountPaid:     reconciledAmount(outcome),
			StartedAt:      processedAt,
			CreatedAt:      now,
		})
	case domain.KindBookingRefund:
		return s.bookings.MarkRefundConfirmed(ctx, intent.SubjectID, reconciledAmount(outcome), processedAt)
	case domain.KindOwnerPayout:
		return s.payouts.MarkProcessed(ctx, intent.SubjectID, outcome.Details.GatewayRef, processedAt)
	default:
		return fmt.Errorf("%w: unknown intent kind %q", domain.ErrInvalidInput, intent.Kind)
	}
}

// reconciledAmount prefers the gateway-reported amount over the initiated
// one; the gateway's figure is what actually moved.
func reconciledAmount(outcome domain.TerminalOutcome) float64 {
	if outcome.Details.Amount > 0 {
		return outcome.Details.Amount
	}
	return outcome.Intent.Amount
}

func (s *Service) markIntentSettled(ctx context.Context, outcome domain.TerminalOutcome, now time.Time) {
	err := s.intents.MarkSettled(ctx,
		outcome.Intent.CorrelationID,
		outcome.Status,
		outcome.Attempts,
		outcome.Details.FailureReason,
		now,
	)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "intent row settle update failed",
			"module", "application",
			"layer", "service",
			"operation", "reconcile",
			"outcome", "failure",
			"correlation_id", outcome.Intent.CorrelationID,
			"error", err,
		)
	}
}

func (s *Service) enqueueSettledEvent(ctx context.Context, outcome domain.TerminalOutcome, now time.Time) {
	payload, err := json.Marshal(contracts.PaymentSettledPayload{
		CorrelationID: outcome.Intent.CorrelationID,
		Kind:          string(outcome.Intent.Kind),
		SubjectID:     outcome.Intent.SubjectID,
		Status:        string(outcome.Status),
		Amount:        reconciledAmount(outcome),
		GatewayRef:    outcome.Details.GatewayRef,
		Attempts:      outcome.Attempts,
		ProcessedAt:   formatEventTime(outcome.Details.ProcessedAt),
		FailureReason: outcome.Details.FailureReason,
	})
	if err != nil {
		return
	}
	event := ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    settledEventType(outcome.Intent.Kind, outcome.Status),
		PartitionKey: outcome.Intent.CorrelationID,
		Payload:      payload,
		OccurredAt:   now,
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "outbox enqueue failed",
			"module", "application",
			"layer", "service",
			"operation", "reconcile",
			"outcome", "failure",
			"correlation_id", outcome.Intent.CorrelationID,
			"event_type", event.EventType,
			"error", err,
		)
	}
}

func (s *Service) enqueueAlert(ctx context.Context, outcome domain.TerminalOutcome, cause error, now time.Time) {
	payload, err := json.Marshal(contracts.ReconciliationAlertPayload{
		CorrelationID: outcome.Intent.CorrelationID,
		Kind:          string(outcome.Intent.Kind),
		SubjectID:     outcome.Intent.SubjectID,
		Outcome:       string(outcome.Status),
		ErrorSummary:  cause.Error(),
		OccurredAt:    now.Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	enqueueErr := s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    contracts.EventReconciliationPartialFailure,
		PartitionKey: outcome.Intent.CorrelationID,
		Payload:      payload,
		OccurredAt:   now,
	})
	if enqueueErr != nil {
		// Both the mutation and the alert path failed; the Error log above
		// is the last line of defense for the operator.
		s.logger.ErrorContext(ctx, "reconciliation alert enqueue failed",
			"module", "application",
			"layer", "service",
			"operation", "reconcile",
			"outcome", "failure",
			"correlation_id", outcome.Intent.CorrelationID,
			"error", enqueueErr,
		)
	}
}

func settledEventType(kind domain.IntentKind, status domain.PollStatus) string {
	confirmed := status == domain.PollStatusConfirmed
	switch kind {
	case domain.KindBookingRefund:
		if confirmed {
			return contracts.EventRefundConfirmed
		}
		return contracts.EventRefundFailed
	case domain.KindOwnerPayout:
		if confirmed {
			return contracts.EventPayoutProcessed
		}
		return contracts.EventPayoutFailed
	default:
		if confirmed {
			return contracts.EventPaymentConfirmed
		}
		return contracts.EventPaymentFailed
	}
}

func formatEventTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
