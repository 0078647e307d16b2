package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all environment-driven application configuration. Trading
// parameters live in the JSON execution config (see execution.go); env vars
// cover the ambient knobs: endpoints, credentials, tuning, storage.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Kalshi (streaming venue)
	KalshiWSURL  string
	KalshiAPIURL string
	KalshiAPIKey string

	// IBKR Client Portal gateway (polled venue)
	IBKRGatewayURL   string
	IBKRAccountID    string
	IBKRPollInterval time.Duration

	// WebSocket
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64

	// Feed queues
	FeedQueueCapacity    int
	PersistQueueCapacity int

	// Execution tuning
	OrderPollInterval time.Duration
	LegTimeout        time.Duration
	HedgeWait         time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Kalshi defaults
		KalshiWSURL:  getEnvOrDefault("KALSHI_WS_URL", "wss://api.elections.kalshi.com/trade-api/ws/v2"),
		KalshiAPIURL: getEnvOrDefault("KALSHI_API_URL", "https://api.elections.kalshi.com/trade-api/v2"),
		KalshiAPIKey: os.Getenv("KALSHI_API_KEY"),

		// IBKR defaults
		IBKRGatewayURL:   getEnvOrDefault("IBKR_GATEWAY_URL", "https://localhost:5000/v1/api"),
		IBKRAccountID:    os.Getenv("IBKR_ACCOUNT_ID"),
		IBKRPollInterval: getDurationOrDefault("IBKR_POLL_INTERVAL", 250*time.Millisecond),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),

		// Feed queue defaults
		FeedQueueCapacity:    getIntOrDefault("FEED_QUEUE_CAPACITY", 1000),
		PersistQueueCapacity: getIntOrDefault("PERSIST_QUEUE_CAPACITY", 500),

		// Execution tuning defaults
		OrderPollInterval: getDurationOrDefault("ORDER_POLL_INTERVAL", 200*time.Millisecond),
		LegTimeout:        getDurationOrDefault("LEG_TIMEOUT", 10*time.Second),
		HedgeWait:         getDurationOrDefault("HEDGE_WAIT", 15*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "eventarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "eventarb123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "event_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.KalshiWSURL == "" {
		return fmt.Errorf("KALSHI_WS_URL cannot be empty")
	}

	if c.IBKRGatewayURL == "" {
		return fmt.Errorf("IBKR_GATEWAY_URL cannot be empty")
	}

	if c.IBKRPollInterval <= 0 {
		return fmt.Errorf("IBKR_POLL_INTERVAL must be positive, got %s", c.IBKRPollInterval)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.FeedQueueCapacity <= 0 || c.PersistQueueCapacity <= 0 {
		return fmt.Errorf("queue capacities must be positive")
	}

	if c.OrderPollInterval <= 0 || c.LegTimeout <= 0 || c.HedgeWait <= 0 {
		return fmt.Errorf("execution timeouts must be positive")
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
