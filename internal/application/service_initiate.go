package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/engine"
	"github.com/nyumbani/payments-service/internal/ports"
)

// StartSubscriptionCheckout initiates a push payment for a subscription
// checkout and begins polling for its outcome.
func (s *Service) StartSubscriptionCheckout(ctx context.Context, input CheckoutInput) (InitiateOutput, error) {
	if strings.TrimSpace(input.CheckoutID) == "" {
		return InitiateOutput{}, fmt.Errorf("%w: checkout_id is required", domain.ErrInvalidInput)
	}
	return s.initiate(ctx, domain.PaymentIntent{
		Kind:              domain.KindSubscriptionPayment,
		SubjectID:         input.CheckoutID,
		Amount:            input.Amount,
		CounterpartyPhone: input.CounterpartyPhone,
		Tier:              input.Tier,
	})
}

// StartBookingRefund initiates a booking-cancellation refund. The booking
// must exist before any money moves toward the guest.
func (s *Service) StartBookingRefund(ctx context.Context, input RefundInput) (InitiateOutput, error) {
	if strings.TrimSpace(input.BookingID) == "" {
		return InitiateOutput{}, fmt.Errorf("%w: booking_id is required", domain.ErrInvalidInput)
	}
	if _, err := s.bookings.GetByID(ctx, input.BookingID); err != nil {
		return InitiateOutput{}, fmt.Errorf("resolve booking: %w", err)
	}
	return s.initiate(ctx, domain.PaymentIntent{
		Kind:              domain.KindBookingRefund,
		SubjectID:         input.BookingID,
		Amount:            input.Amount,
		CounterpartyPhone: input.CounterpartyPhone,
	})
}

// StartOwnerPayout initiates an owner payout disbursement.
func (s *Service) StartOwnerPayout(ctx context.Context, input PayoutInput) (InitiateOutput, error) {
	if strings.TrimSpace(input.PayoutID) == "" {
		return InitiateOutput{}, fmt.Errorf("%w: payout_id is required", domain.ErrInvalidInput)
	}
	if _, err := s.payouts.GetByID(ctx, input.PayoutID); err != nil {
		return InitiateOutput{}, fmt.Errorf("resolve payout: %w", err)
	}
	return s.initiate(ctx, domain.PaymentIntent{
		Kind:              domain.KindOwnerPayout,
		SubjectID:         input.PayoutID,
		Amount:            input.Amount,
		CounterpartyPhone: input.CounterpartyPhone,
	})
}

// initiate is the single parametrized path behind all three call sites:
// gateway initiation, durable intent row, poll start with the reconciler
// attached to the terminal event.
func (s *Service) initiate(ctx context.Context, intent domain.PaymentIntent) (InitiateOutput, error) {
	if intent.Amount <= 0 {
		return InitiateOutput{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(intent.CounterpartyPhone) == "" {
		return InitiateOutput{}, fmt.Errorf("%w: counterparty_phone is required", domain.ErrInvalidInput)
	}

	correlationID, err := s.gateway.Initiate(ctx, ports.InitiateRequest{
		Kind:              intent.Kind,
		SubjectID:         intent.SubjectID,
		Amount:            intent.Amount,
		CounterpartyPhone: intent.CounterpartyPhone,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "gateway initiation failed",
			"module", "application",
			"layer", "service",
			"operation", "initiate",
			"outcome", "failure",
			"kind", string(intent.Kind),
			"subject_id", intent.SubjectID,
			"error", err,
		)
		return InitiateOutput{}, err
	}

	now := s.nowFn()
	intent.CorrelationID = correlationID
	intent.CreatedAt = now

	poller, err := s.engine.Start(ctx, intent, engine.Hooks{
		OnSettled: s.settleHandler,
	})
	if err != nil {
		return InitiateOutput{}, err
	}

	if err := s.intents.Create(ctx, ports.IntentRecord{
		CorrelationID:     intent.CorrelationID,
		Kind:              intent.Kind,
		SubjectID:         intent.SubjectID,
		Amount:            intent.Amount,
		CounterpartyPhone: intent.CounterpartyPhone,
		Tier:              intent.Tier,
		Status:            domain.PollStatusPending,
		StartedAt:         now,
		Deadline:          now.Add(s.engine.Config().BudgetFor(intent.Kind)),
	}); err != nil {
		// The poll is already running; a missing durable row degrades the
		// operator listing but must not abort the live operation.
		s.logger.ErrorContext(ctx, "intent row create failed",
			"module", "application",
			"layer", "service",
			"operation", "initiate",
			"outcome", "failure",
			"correlation_id", intent.CorrelationID,
			"error", err,
		)
	}

	return InitiateOutput{
		CorrelationID: correlationID,
		Snapshot:      poller.Snapshot(now),
	}, nil
}

// settleHandler bridges the poll goroutine's one terminal event into
// reconciliation. It runs on its own bounded context: the poll is done, so
// there is no request context to inherit.
func (s *Service) settleHandler(outcome domain.TerminalOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SettleTimeout)
	defer cancel()

	if err := s.Reconcile(ctx, outcome); err != nil {
		s.logger.ErrorContext(ctx, "terminal reconciliation failed",
			"module", "application",
			"layer", "service",
			"operation", "settle",
			"outcome", "failure",
			"correlation_id", outcome.Intent.CorrelationID,
			"kind", string(outcome.Intent.Kind),
			"status", string(outcome.Status),
			"error", err,
		)
	}
}
