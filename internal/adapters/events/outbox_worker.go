package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/ports"
)

// OutboxWorker drains unpublished settlement events to the broker. Each
// iteration claims a batch under a fresh token with a TTL, so a second worker
// instance (or a crashed predecessor's abandoned claim) never double-publishes.
// Records that keep failing move to the dead letter state instead of blocking
// the queue head.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     ports.OutboxRepository
	publisher  ports.EventPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic drain loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox drain iteration failed",
				"module", "events.outbox_worker",
				"layer", "adapter",
				"operation", "outbox_drain",
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

type drainStats struct {
	published    int
	retried      int
	deadLettered int
}

func (w *OutboxWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	var stats drainStats
	for _, rec := range records {
		w.drainOne(ctx, rec, claimToken, now, &stats)
	}

	w.logger.InfoContext(ctx, "outbox batch drained",
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "outbox_drain",
		"outcome", "success",
		"batch_size", len(records),
		"published_count", stats.published,
		"retried_count", stats.retried,
		"dead_lettered_count", stats.deadLettered,
	)
	return nil
}

func (w *OutboxWorker) drainOne(ctx context.Context, rec ports.OutboxRecord, claimToken string, now time.Time, stats *drainStats) {
	// A record whose retries were exhausted before this claim never reaches
	// the broker again; it is parked for manual replay.
	if rec.RetryCount >= w.maxRetries {
		stats.deadLettered++
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
		return
	}

	err := w.publisher.Publish(ctx, rec.EventType, rec.PartitionKey, rec.Payload)
	if err == nil {
		stats.published++
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
		return
	}

	retries := rec.RetryCount + 1
	fields := []any{
		"module", "events.outbox_worker",
		"layer", "adapter",
		"operation", "publish_event",
		"outcome", "failure",
		"outbox_id", rec.OutboxID,
		"event_type", rec.EventType,
		"partition_key", rec.PartitionKey,
		"retry_count", retries,
		"error", err,
	}
	if retries >= w.maxRetries {
		stats.deadLettered++
		w.logger.ErrorContext(ctx, "settlement event moved to dead letter", fields...)
		_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
		return
	}
	stats.retried++
	w.logger.WarnContext(ctx, "settlement event publish failed; retry scheduled", fields...)
	_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
}
