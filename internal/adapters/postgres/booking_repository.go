package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"gorm.io/gorm"
)

type bookingRepository struct {
	db *gorm.DB
}

func (r *bookingRepository) GetByID(ctx context.Context, bookingID string) (domain.Booking, error) {
	var rec bookingModel
	if err := r.db.WithContext(ctx).Where("booking_id = ?", bookingID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return domain.Booking{
		BookingID:         rec.BookingID,
		RefundStatus:      rec.RefundStatus,
		RefundAmount:      rec.RefundAmount,
		RefundProcessedAt: rec.RefundProcessedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func (r *bookingRepository) MarkRefundConfirmed(ctx context.Context, bookingID string, amount float64, processedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&bookingModel{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]any{
			"refund_status":       domain.RefundStatusConfirmed,
			"refund_amount":       amount,
			"refund_processed_at": processedAt,
			"updated_at":          processedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *bookingRepository) MarkRefundFailed(ctx context.Context, bookingID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&bookingModel{}).
		Where("booking_id = ?", bookingID).
		Updates(map[string]any{
			"refund_status": domain.RefundStatusFailed,
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
