package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nyumbani/payments-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the payments service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers    []string
	KafkaTopic      string
	KafkaTopicAlert string

	GatewayBaseURL        string
	GatewayAPIKey         string
	GatewayCallbackSecret string
	GatewayTimeout        time.Duration

	JWTPublicKeyPEM   string
	AllowEphemeralJWT bool

	PollInterval              time.Duration
	TimeoutBudget             time.Duration
	TimeoutBudgetByKind       map[domain.IntentKind]time.Duration
	TransportErrorStreakLimit int
	LockGrace                 time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
	SweepInterval      time.Duration
	SweepGrace         time.Duration
	SweepBatchSize     int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Gateway struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		CallbackSecret string `yaml:"callback_secret"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"gateway"`
	Polling struct {
		IntervalSeconds           int `yaml:"interval_seconds"`
		TimeoutBudgetSeconds      int `yaml:"timeout_budget_seconds"`
		TransportErrorStreakLimit int `yaml:"transport_error_streak_limit"`
		BudgetByKindSeconds       map[string]int `yaml:"budget_by_kind_seconds"`
	} `yaml:"polling"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                 "payments-service",
		HTTPPort:                  8080,
		GRPCPort:                  9090,
		KafkaTopic:                "payments.events",
		KafkaTopicAlert:           "payments.alerts",
		GatewayTimeout:            8 * time.Second,
		AllowEphemeralJWT:         true,
		PollInterval:              10 * time.Second,
		TimeoutBudget:             300 * time.Second,
		TimeoutBudgetByKind:       map[domain.IntentKind]time.Duration{},
		TransportErrorStreakLimit: 30,
		LockGrace:                 time.Minute,
		MaxDBConns:                20,
		OutboxPollInterval:        2 * time.Second,
		OutboxBatchSize:           100,
		OutboxClaimTTL:            30 * time.Second,
		OutboxMaxRetries:          5,
		SweepInterval:             time.Minute,
		SweepGrace:                2 * time.Minute,
		SweepBatchSize:            100,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Gateway.BaseURL != "" {
			cfg.GatewayBaseURL = f.Gateway.BaseURL
		}
		if f.Gateway.APIKey != "" {
			cfg.GatewayAPIKey = f.Gateway.APIKey
		}
		if f.Gateway.CallbackSecret != "" {
			cfg.GatewayCallbackSecret = f.Gateway.CallbackSecret
		}
		if f.Gateway.TimeoutSeconds > 0 {
			cfg.GatewayTimeout = time.Duration(f.Gateway.TimeoutSeconds) * time.Second
		}
		if f.Polling.IntervalSeconds > 0 {
			cfg.PollInterval = time.Duration(f.Polling.IntervalSeconds) * time.Second
		}
		if f.Polling.TimeoutBudgetSeconds > 0 {
			cfg.TimeoutBudget = time.Duration(f.Polling.TimeoutBudgetSeconds) * time.Second
		}
		if f.Polling.TransportErrorStreakLimit > 0 {
			cfg.TransportErrorStreakLimit = f.Polling.TransportErrorStreakLimit
		}
		for kind, seconds := range f.Polling.BudgetByKindSeconds {
			if seconds > 0 {
				cfg.TimeoutBudgetByKind[domain.IntentKind(kind)] = time.Duration(seconds) * time.Second
			}
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_TOPIC_EVENTS", cfg.KafkaTopic)
	cfg.KafkaTopicAlert = envOrDefault("KAFKA_TOPIC_ALERTS", cfg.KafkaTopicAlert)
	cfg.GatewayBaseURL = envOrDefault("GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayAPIKey = envOrDefault("GATEWAY_API_KEY", cfg.GatewayAPIKey)
	cfg.GatewayCallbackSecret = envOrDefault("GATEWAY_CALLBACK_SECRET", cfg.GatewayCallbackSecret)
	// The gateway shares one credential pair by default; a dedicated callback
	// secret only needs configuring when the gateway rotates them separately.
	if cfg.GatewayCallbackSecret == "" {
		cfg.GatewayCallbackSecret = cfg.GatewayAPIKey
	}
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.GatewayTimeout = time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", int(cfg.GatewayTimeout.Seconds()))) * time.Second
	cfg.PollInterval = time.Duration(envInt("POLL_INTERVAL_SECONDS", int(cfg.PollInterval.Seconds()))) * time.Second
	cfg.TimeoutBudget = time.Duration(envInt("POLL_TIMEOUT_BUDGET_SECONDS", int(cfg.TimeoutBudget.Seconds()))) * time.Second
	cfg.TransportErrorStreakLimit = envInt("TRANSPORT_ERROR_STREAK_LIMIT", cfg.TransportErrorStreakLimit)
	cfg.LockGrace = time.Duration(envInt("POLL_LOCK_GRACE_SECONDS", int(cfg.LockGrace.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.SweepGrace = time.Duration(envInt("SWEEP_GRACE_SECONDS", int(cfg.SweepGrace.Seconds()))) * time.Second
	cfg.SweepBatchSize = envInt("SWEEP_BATCH_SIZE", cfg.SweepBatchSize)

	for _, kind := range []domain.IntentKind{domain.KindSubscriptionPayment, domain.KindBookingRefund, domain.KindOwnerPayout} {
		env := "POLL_TIMEOUT_BUDGET_SECONDS_" + strings.ToUpper(string(kind))
		if seconds := envInt(env, 0); seconds > 0 {
			cfg.TimeoutBudgetByKind[kind] = time.Duration(seconds) * time.Second
		}
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.GatewayBaseURL == "" {
		return Config{}, fmt.Errorf("missing GATEWAY_BASE_URL")
	}
	if cfg.JWTPublicKeyPEM == "" && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
