package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
)

// IntentSnapshot serves the pull-based presentation poll. A live poller wins;
// otherwise the durable intent row answers for settled or detached intents.
func (s *Service) IntentSnapshot(ctx context.Context, correlationID string) (domain.IntentSnapshot, error) {
	if strings.TrimSpace(correlationID) == "" {
		return domain.IntentSnapshot{}, fmt.Errorf("%w: correlation_id is required", domain.ErrInvalidInput)
	}
	if snapshot, ok := s.engine.Snapshot(correlationID); ok {
		return snapshot, nil
	}

	row, err := s.intents.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		return domain.IntentSnapshot{}, err
	}
	remaining := 0
	if row.Status == domain.PollStatusPending {
		if left := row.Deadline.Sub(s.nowFn()); left > 0 {
			remaining = int(left.Seconds())
		}
	}
	return domain.IntentSnapshot{
		CorrelationID:     row.CorrelationID,
		Kind:              row.Kind,
		Status:            row.Status,
		AttemptsMade:      row.Attempts,
		SecondsRemaining:  remaining,
		LastFailureReason: row.FailureReason,
	}, nil
}

// CancelIntent detaches the consumer from an active poll. Cancelling an
// intent with no live poller is not an error: the poll may have settled or
// the process restarted; either way there is nothing left ticking.
func (s *Service) CancelIntent(ctx context.Context, correlationID string) error {
	if strings.TrimSpace(correlationID) == "" {
		return fmt.Errorf("%w: correlation_id is required", domain.ErrInvalidInput)
	}
	cancelled := s.engine.Cancel(correlationID)
	s.logger.InfoContext(ctx, "intent cancel requested",
		"module", "application",
		"layer", "service",
		"operation", "cancel_intent",
		"outcome", "success",
		"correlation_id", correlationID,
		"poll_was_active", cancelled,
	)
	return nil
}

// ListIntents is the operator view over durable intent rows; unresolved rows
// (pending past deadline, cancelled mid-flight) surface here.
func (s *Service) ListIntents(ctx context.Context, query ports.IntentQuery) (ListIntentsOutput, error) {
	if query.Limit <= 0 || query.Limit > 200 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	rows, total, err := s.intents.List(ctx, query)
	if err != nil {
		return ListIntentsOutput{}, err
	}
	views := make([]IntentView, 0, len(rows))
	for _, row := range rows {
		views = append(views, intentView(row))
	}
	return ListIntentsOutput{Intents: views, Total: total}, nil
}

// SweepUnresolvedIntents settles intent rows stuck pending past their
// deadline plus grace. This covers polls lost to a crash or a cancel: no
// poller will ever settle them, so the sweeper times them out durably and
// routes the timeout through the same reconciler.
func (s *Service) SweepUnresolvedIntents(ctx context.Context, grace time.Duration, batchSize int) error {
	cutoff := s.nowFn().Add(-grace)
	rows, err := s.intents.ListUnresolvedBefore(ctx, cutoff, batchSize)
	if err != nil {
		return fmt.Errorf("list unresolved intents: %w", err)
	}
	for _, row := range rows {
		outcome := domain.TerminalOutcome{
			Intent: domain.PaymentIntent{
				CorrelationID:     row.CorrelationID,
				Kind:              row.Kind,
				SubjectID:         row.SubjectID,
				Amount:            row.Amount,
				CounterpartyPhone: row.CounterpartyPhone,
				Tier:              row.Tier,
				CreatedAt:         row.StartedAt,
			},
			Status:   domain.PollStatusTimedOut,
			Attempts: row.Attempts,
			Details:  domain.Outcome{FailureReason: "no resolution before deadline"},
		}
		if err := s.Reconcile(ctx, outcome); err != nil && !errors.Is(err, domain.ErrAlreadyReconciled) {
			s.logger.ErrorContext(ctx, "unresolved intent sweep failed",
				"module", "application",
				"layer", "service",
				"operation", "sweep_unresolved",
				"outcome", "failure",
				"correlation_id", row.CorrelationID,
				"error", err,
			)
			continue
		}
		s.logger.InfoContext(ctx, "unresolved intent timed out by sweeper",
			"module", "application",
			"layer", "service",
			"operation", "sweep_unresolved",
			"outcome", "success",
			"correlation_id", row.CorrelationID,
			"kind", string(row.Kind),
		)
	}
	return nil
}

func intentView(row ports.IntentRecord) IntentView {
	view := IntentView{
		CorrelationID: row.CorrelationID,
		Kind:          row.Kind,
		SubjectID:     row.SubjectID,
		Amount:        row.Amount,
		Status:        row.Status,
		Attempts:      row.Attempts,
		StartedAt:     row.StartedAt.Format(time.RFC3339),
		FailureReason: row.FailureReason,
	}
	if row.SettledAt != nil {
		view.SettledAt = row.SettledAt.Format(time.RFC3339)
	}
	return view
}
