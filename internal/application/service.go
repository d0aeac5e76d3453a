package application

import (
	"log/slog"
	"time"

	"github.com/nyumbani/payments-service/internal/engine"
	"github.com/nyumbani/payments-service/internal/ports"
)

// Service orchestrates the reconciliation engine: it initiates gateway
// operations, attaches the reconciler to each poll's terminal event, and
// serves snapshot/cancel/listing for the presentation layer.
type Service struct {
	cfg           Config
	logger        *slog.Logger
	gateway       ports.GatewayClient
	engine        *engine.Engine
	records       ports.ReconciliationRepository
	intents       ports.IntentRepository
	bookings      ports.BookingRepository
	subscriptions ports.SubscriptionRepository
	payouts       ports.PayoutRepository
	outbox        ports.OutboxRepository
	nowFn         func() time.Time
}

type Config struct {
	// SettleTimeout bounds the reconciliation work triggered from a poll
	// goroutine when it settles.
	SettleTimeout time.Duration
}

type Dependencies struct {
	Config        Config
	Logger        *slog.Logger
	Gateway       ports.GatewayClient
	Engine        *engine.Engine
	Records       ports.ReconciliationRepository
	Intents       ports.IntentRepository
	Bookings      ports.BookingRepository
	Subscriptions ports.SubscriptionRepository
	Payouts       ports.PayoutRepository
	Outbox        ports.OutboxRepository
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:           cfg,
		logger:        logger,
		gateway:       deps.Gateway,
		engine:        deps.Engine,
		records:       deps.Records,
		intents:       deps.Intents,
		bookings:      deps.Bookings,
		subscriptions: deps.Subscriptions,
		payouts:       deps.Payouts,
		outbox:        deps.Outbox,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// WithNowFn overrides the clock, used by tests for deterministic timestamps.
func (s *Service) WithNowFn(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}
