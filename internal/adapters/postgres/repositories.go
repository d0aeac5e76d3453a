package postgres

import (
	"errors"

	"github.com/nyumbani/payments-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Reconciliations ports.ReconciliationRepository
	Intents         ports.IntentRepository
	Bookings        ports.BookingRepository
	Subscriptions   ports.SubscriptionRepository
	Payouts         ports.PayoutRepository
	Outbox          ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Reconciliations: &reconciliationRepository{db: db},
		Intents:         &intentRepository{db: db},
		Bookings:        &bookingRepository{db: db},
		Subscriptions:   &subscriptionRepository{db: db},
		Payouts:         &payoutRepository{db: db},
		Outbox:          &outboxRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
