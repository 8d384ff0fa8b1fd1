package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	MaxItemsPerBatch int
	MaxQueuedPerUser int
	CreditsPerJob    int64

	WorkerCount        int
	WorkerPollInterval time.Duration
	StaleJobAfter      time.Duration
	ReaperInterval     time.Duration
	ReaperBatchLimit   int
	SettlementInterval time.Duration

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration

	GeneratorURL        string
	GeneratorTimeout    time.Duration
	PaymentProviderURL  string
	PaymentPollTimeout  time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		MaxItemsPerBatch: getEnvInt("MAX_ITEMS_PER_BATCH", 200),
		MaxQueuedPerUser: getEnvInt("MAX_QUEUED_PER_USER", 300),
		CreditsPerJob:    int64(getEnvInt("CREDITS_PER_JOB", 1)),

		WorkerCount:        getEnvInt("WORKER_COUNT", 4),
		WorkerPollInterval: time.Second * time.Duration(getEnvInt("WORKER_POLL_INTERVAL_SECONDS", 2)),
		StaleJobAfter:      time.Minute * time.Duration(getEnvInt("STALE_JOB_AFTER_MINUTES", 10)),
		ReaperInterval:     time.Minute * time.Duration(getEnvInt("REAPER_INTERVAL_MINUTES", 1)),
		ReaperBatchLimit:   getEnvInt("REAPER_BATCH_LIMIT", 100),
		SettlementInterval: time.Minute * time.Duration(getEnvInt("SETTLEMENT_INTERVAL_MINUTES", 5)),

		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: time.Millisecond * time.Duration(getEnvInt("RETRY_INITIAL_DELAY_MS", 500)),

		GeneratorURL:       os.Getenv("GENERATOR_URL"),
		GeneratorTimeout:   time.Second * time.Duration(getEnvInt("GENERATOR_TIMEOUT_SECONDS", 60)),
		PaymentProviderURL: os.Getenv("PAYMENT_PROVIDER_URL"),
		PaymentPollTimeout: time.Second * time.Duration(getEnvInt("PAYMENT_POLL_TIMEOUT_SECONDS", 15)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.MaxItemsPerBatch <= 0 || cfg.MaxQueuedPerUser <= 0 {
		return nil, fmt.Errorf("batch limits must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
