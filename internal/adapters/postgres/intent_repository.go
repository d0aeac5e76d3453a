package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"github.com/nyumbani/payments-service/internal/ports"
	"gorm.io/gorm"
)

type intentRepository struct {
	db *gorm.DB
}

func (r *intentRepository) Create(ctx context.Context, record ports.IntentRecord) error {
	rec := toIntentModel(record)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *intentRepository) MarkSettled(ctx context.Context, correlationID string, status domain.PollStatus, attempts int, failureReason string, settledAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&paymentIntentModel{}).
		Where("correlation_id = ?", correlationID).
		Updates(map[string]any{
			"status":         string(status),
			"attempts":       attempts,
			"failure_reason": failureReason,
			"settled_at":     settledAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *intentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (ports.IntentRecord, error) {
	var rec paymentIntentModel
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IntentRecord{}, domain.ErrNotFound
		}
		return ports.IntentRecord{}, err
	}
	return toIntentRecord(rec), nil
}

func (r *intentRepository) List(ctx context.Context, query ports.IntentQuery) ([]ports.IntentRecord, int, error) {
	base := r.db.WithContext(ctx).Model(&paymentIntentModel{})
	if query.Status != "" {
		base = base.Where("status = ?", string(query.Status))
	}
	if query.Kind != "" {
		base = base.Where("kind = ?", string(query.Kind))
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []paymentIntentModel
	if err := base.
		Order("started_at DESC").
		Limit(query.Limit).
		Offset(query.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	result := make([]ports.IntentRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, toIntentRecord(row))
	}
	return result, int(total), nil
}

func (r *intentRepository) ListUnresolvedBefore(ctx context.Context, deadlineBefore time.Time, limit int) ([]ports.IntentRecord, error) {
	var rows []paymentIntentModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.PollStatusPending)).
		Where("deadline < ?", deadlineBefore).
		Order("deadline ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]ports.IntentRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, toIntentRecord(row))
	}
	return result, nil
}

func toIntentModel(record ports.IntentRecord) paymentIntentModel {
	return paymentIntentModel{
		CorrelationID:     record.CorrelationID,
		Kind:              string(record.Kind),
		SubjectID:         record.SubjectID,
		Amount:            record.Amount,
		CounterpartyPhone: record.CounterpartyPhone,
		Tier:              record.Tier,
		Status:            string(record.Status),
		Attempts:          record.Attempts,
		StartedAt:         record.StartedAt,
		Deadline:          record.Deadline,
		SettledAt:         record.SettledAt,
		FailureReason:     record.FailureReason,
	}
}

func toIntentRecord(row paymentIntentModel) ports.IntentRecord {
	return ports.IntentRecord{
		CorrelationID:     row.CorrelationID,
		Kind:              domain.IntentKind(row.Kind),
		SubjectID:         row.SubjectID,
		Amount:            row.Amount,
		CounterpartyPhone: row.CounterpartyPhone,
		Tier:              row.Tier,
		Status:            domain.PollStatus(row.Status),
		Attempts:          row.Attempts,
		StartedAt:         row.StartedAt,
		Deadline:          row.Deadline,
		SettledAt:         row.SettledAt,
		FailureReason:     row.FailureReason,
	}
}
