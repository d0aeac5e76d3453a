package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/nyumbani/payments-service/internal/application"
)

// IntentSweeper periodically times out intent rows left pending past their
// deadline. A crashed instance loses its in-memory pollers; the sweeper is
// what settles those intents once their budget plus grace has elapsed.
type IntentSweeper struct {
	logger    *slog.Logger
	service   *application.Service
	interval  time.Duration
	grace     time.Duration
	batchSize int
}

func NewIntentSweeper(
	logger *slog.Logger,
	service *application.Service,
	interval time.Duration,
	grace time.Duration,
	batchSize int,
) *IntentSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IntentSweeper{
		logger:    logger,
		service:   service,
		interval:  interval,
		grace:     grace,
		batchSize: batchSize,
	}
}

func (w *IntentSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.service.SweepUnresolvedIntents(ctx, w.grace, w.batchSize); err != nil {
			w.logger.ErrorContext(ctx, "intent sweep iteration failed",
				"module", "events.intent_sweeper",
				"layer", "adapter",
				"operation", "sweep_unresolved_intents",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
