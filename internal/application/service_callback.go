package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyumbani/payments-service/internal/domain"
)

// HandleGatewayCallback applies an out-of-band resolution pushed by the
// gateway. It is the second delivery channel the idempotency guard exists
// for: if the poller already reconciled the correlation id (including a
// local TimedOut before a late Confirmed arrived), Reconcile is a no-op.
func (s *Service) HandleGatewayCallback(ctx context.Context, input CallbackInput) error {
	if strings.TrimSpace(input.CorrelationID) == "" {
		return fmt.Errorf("%w: correlation_id is required", domain.ErrInvalidInput)
	}
	if !input.Status.Terminal() {
		// A pending callback carries no resolution; nothing to reconcile.
		return nil
	}

	row, err := s.intents.GetByCorrelationID(ctx, input.CorrelationID)
	if err != nil {
		return fmt.Errorf("resolve intent: %w", err)
	}

	if row.Status.Terminal() && row.Status != input.Status {
		s.logger.WarnContext(ctx, "callback outcome disagrees with settled intent",
			"module", "application",
			"layer", "service",
			"operation", "gateway_callback",
			"outcome", "failure",
			"correlation_id", input.CorrelationID,
			"settled_status", string(row.Status),
			"callback_status", string(input.Status),
		)
	}

	// A live poller becomes redundant once the gateway resolved out-of-band.
	s.engine.Cancel(input.CorrelationID)

	return s.Reconcile(ctx, domain.TerminalOutcome{
		Intent: domain.PaymentIntent{
			CorrelationID:     row.CorrelationID,
			Kind:              row.Kind,
			SubjectID:         row.SubjectID,
			Amount:            row.Amount,
			CounterpartyPhone: row.CounterpartyPhone,
			Tier:              row.Tier,
			CreatedAt:         row.StartedAt,
		},
		Status:   input.Status,
		Details:  input.Details,
		Attempts: row.Attempts,
	})
}
