package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nyumbani/payments-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// outboxRepository persists settlement events in the same database as the
// reconciliation records they describe, so enqueueing rides the settle
// transaction's durability. The claim token scoping on every mutation keeps a
// stale worker (one whose claim TTL lapsed mid-batch) from clobbering a row
// the next claimant already took over.
type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	row := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt,
		FirstSeenAt:  event.OccurredAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var rows []outboxModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SKIP LOCKED lets concurrent workers carve up the backlog without
		// serializing on the oldest row. claim_until < now re-admits rows
		// whose previous claimant died before finishing.
		eligible := tx.Model(&outboxModel{}).
			Select("outbox_id").
			Where("published_at IS NULL AND dead_lettered_at IS NULL").
			Where("claim_until IS NULL OR claim_until < ?", now).
			Order("created_at ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})

		if err := tx.Model(&outboxModel{}).
			Where("outbox_id IN (?)", eligible).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL AND dead_lettered_at IS NULL").
			Order("created_at ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	batch := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, outboxRecordFromModel(row))
	}
	return batch, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.settleClaim(ctx, outboxID, claimToken, map[string]any{
		"published_at": at,
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.settleClaim(ctx, outboxID, claimToken, map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	})
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.settleClaim(ctx, outboxID, claimToken, map[string]any{
		"retry_count":      gorm.Expr("retry_count + 1"),
		"last_error":       errMsg,
		"last_error_at":    at,
		"dead_lettered_at": at,
	})
}

// settleClaim applies updates to a row still held under claimToken and
// releases the claim in the same statement. A lapsed claim matches zero rows,
// which is the intended no-op.
func (r *outboxRepository) settleClaim(ctx context.Context, outboxID uuid.UUID, claimToken string, updates map[string]any) error {
	updates["claim_token"] = nil
	updates["claim_until"] = nil
	return r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ? AND claim_token = ?", outboxID, claimToken).
		Updates(updates).Error
}

func outboxRecordFromModel(row outboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		FirstSeenAt:    row.FirstSeenAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}
