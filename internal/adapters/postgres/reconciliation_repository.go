package postgres

import (
	"context"
	"errors"

	"github.com/nyumbani/payments-service/internal/domain"
	"gorm.io/gorm"
)

type reconciliationRepository struct {
	db *gorm.DB
}

// Insert relies on the primary key on correlation_id for the exactly-once
// guarantee: two racing inserts for the same correlation id cannot both
// succeed, and the loser sees domain.ErrAlreadyReconciled.
func (r *reconciliationRepository) Insert(ctx context.Context, record domain.ReconciliationRecord) error {
	rec := reconciliationModel{
		CorrelationID: record.CorrelationID,
		Kind:          string(record.Kind),
		SubjectID:     record.SubjectID,
		Outcome:       string(record.Outcome),
		Amount:        record.Amount,
		GatewayRef:    record.GatewayRef,
		ProcessedAt:   record.ProcessedAt,
		FailureReason: record.FailureReason,
		CreatedAt:     record.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyReconciled
		}
		return err
	}
	return nil
}

func (r *reconciliationRepository) GetByCorrelationID(ctx context.Context, correlationID string) (domain.ReconciliationRecord, error) {
	var rec reconciliationModel
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ReconciliationRecord{}, domain.ErrNotFound
		}
		return domain.ReconciliationRecord{}, err
	}
	return domain.ReconciliationRecord{
		CorrelationID: rec.CorrelationID,
		Kind:          domain.IntentKind(rec.Kind),
		SubjectID:     rec.SubjectID,
		Outcome:       domain.PollStatus(rec.Outcome),
		Amount:        rec.Amount,
		GatewayRef:    rec.GatewayRef,
		ProcessedAt:   rec.ProcessedAt,
		FailureReason: rec.FailureReason,
		CreatedAt:     rec.CreatedAt,
	}, nil
}
