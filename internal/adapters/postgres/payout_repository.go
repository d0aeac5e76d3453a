package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"gorm.io/gorm"
)

type payoutRepository struct {
	db *gorm.DB
}

func (r *payoutRepository) GetByID(ctx context.Context, payoutID string) (domain.Payout, error) {
	var rec payoutModel
	if err := r.db.WithContext(ctx).Where("payout_id = ?", payoutID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payout{}, domain.ErrNotFound
		}
		return domain.Payout{}, err
	}
	return domain.Payout{
		PayoutID:    rec.PayoutID,
		Status:      rec.Status,
		GatewayRef:  rec.GatewayRef,
		ProcessedAt: rec.ProcessedAt,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

func (r *payoutRepository) MarkProcessed(ctx context.Context, payoutID, gatewayRef string, processedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"status":       domain.PayoutStatusProcessed,
			"gateway_ref":  gatewayRef,
			"processed_at": processedAt,
			"updated_at":   processedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *payoutRepository) MarkFailed(ctx context.Context, payoutID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&payoutModel{}).
		Where("payout_id = ?", payoutID).
		Updates(map[string]any{
			"status":     domain.PayoutStatusFailed,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
