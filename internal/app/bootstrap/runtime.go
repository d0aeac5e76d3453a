package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/nyumbani/payments-service/internal/adapters/cache"
	eventadapter "github.com/nyumbani/payments-service/internal/adapters/events"
	gatewayadapter "github.com/nyumbani/payments-service/internal/adapters/gateway"
	grpcadapter "github.com/nyumbani/payments-service/internal/adapters/grpc"
	httpadapter "github.com/nyumbani/payments-service/internal/adapters/http"
	"github.com/nyumbani/payments-service/internal/adapters/postgres"
	"github.com/nyumbani/payments-service/internal/adapters/security"
	"github.com/nyumbani/payments-service/internal/application"
	"github.com/nyumbani/payments-service/internal/contracts"
	"github.com/nyumbani/payments-service/internal/engine"
	"github.com/nyumbani/payments-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	engine     *engine.Engine
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	sweeper    *eventadapter.IntentSweeper
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping payments service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := pool.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	repos := postgres.NewRepositories(pool)

	gatewayClient, err := gatewayadapter.NewClient(gatewayadapter.Config{
		BaseURL: cfg.GatewayBaseURL,
		APIKey:  cfg.GatewayAPIKey,
		Timeout: cfg.GatewayTimeout,
	})
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init gateway client: %w", err)
	}

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, err
	}

	locks := cacheadapter.NewRedisIntentLockStore(redisClient)
	eng := engine.New(logger, gatewayadapter.NewProber(gatewayClient), locks, engine.Config{
		PollInterval:              cfg.PollInterval,
		DefaultBudget:             cfg.TimeoutBudget,
		BudgetByKind:              cfg.TimeoutBudgetByKind,
		TransportErrorStreakLimit: cfg.TransportErrorStreakLimit,
		LockGrace:                 cfg.LockGrace,
	}, nil)

	svc := application.NewService(application.Dependencies{
		Logger:        logger,
		Gateway:       gatewayClient,
		Engine:        eng,
		Records:       repos.Reconciliations,
		Intents:       repos.Intents,
		Bookings:      repos.Bookings,
		Subscriptions: repos.Subscriptions,
		Payouts:       repos.Payouts,
		Outbox:        repos.Outbox,
	})

	handler := httpadapter.NewHandler(svc, verifier, cfg.GatewayCallbackSecret)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewPaymentsInternalServer(svc))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		_ = lis.Close()
		return nil, err
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		publisher,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)
	sweeper := eventadapter.NewIntentSweeper(
		logger,
		svc,
		cfg.SweepInterval,
		cfg.SweepGrace,
		cfg.SweepBatchSize,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		engine:     eng,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		sweeper:    sweeper,
		cleanupFn: func(ctx context.Context) {
			closePublisher()
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// newVerifier prefers the configured platform public key; ephemeral keys are
// a dev convenience so the service starts without the auth service deployed.
func newVerifier(cfg Config, logger *slog.Logger) (ports.TokenVerifier, error) {
	if cfg.JWTPublicKeyPEM != "" {
		return security.NewJWTVerifier(cfg.JWTPublicKeyPEM)
	}
	if !cfg.AllowEphemeralJWT {
		return nil, fmt.Errorf("missing JWT public key")
	}
	logger.Warn("using ephemeral JWT keys for local/dev runtime")
	verifier, _, err := security.NewEphemeralVerifier()
	if err != nil {
		return nil, fmt.Errorf("init ephemeral jwt verifier: %w", err)
	}
	return verifier, nil
}

func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured; events go to the log publisher")
		return eventadapter.NewLoggingPublisher(logger), func() {}, nil
	}
	kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, map[string]string{
		contracts.EventReconciliationPartialFailure: cfg.KafkaTopicAlert,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return kafkaPublisher, func() { _ = kafkaPublisher.Close() }, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	// Outstanding polls keep running until they settle or the deadline hits.
	r.engine.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("outbox worker started")
		if err := r.outbox.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("outbox worker: %w", err)
		}
	}()
	go func() {
		r.logger.Info("intent sweeper started")
		if err := r.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("intent sweeper: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("worker failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
