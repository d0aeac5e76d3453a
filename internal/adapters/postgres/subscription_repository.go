package postgres

import (
	"context"
	"errors"

	"github.com/nyumbani/payments-service/internal/domain"
	"gorm.io/gorm"
)

type subscriptionRepository struct {
	db *gorm.DB
}

func (r *subscriptionRepository) Create(ctx context.Context, subscription domain.Subscription) error {
	rec := subscriptionModel{
		SubscriptionID: subscription.SubscriptionID,
		CheckoutID:     subscription.CheckoutID,
		Tier:           subscription.Tier,
		AmountPaid:     subscription.AmountPaid,
		StartedAt:      subscription.StartedAt,
		CreatedAt:      subscription.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *subscriptionRepository) GetByCheckoutID(ctx context.Context, checkoutID string) (domain.Subscription, error) {
	var rec subscriptionModel
	if err := r.db.WithContext(ctx).Where("checkout_id = ?", checkoutID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, err
	}
	return domain.Subscription{
		SubscriptionID: rec.SubscriptionID,
		CheckoutID:     rec.CheckoutID,
		Tier:           rec.Tier,
		AmountPaid:     rec.AmountPaid,
		StartedAt:      rec.StartedAt,
		CreatedAt:      rec.CreatedAt,
	}, nil
}
