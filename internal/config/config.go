// Package config loads engine configuration from environment variables,
// mirroring how the rest of the stack reads its settings: a .env file if
// present, plain os.Getenv lookups with typed fallbacks, and a Validate
// pass that turns an out-of-range value into a fatal ConfigError.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/enginecore/internal/domain"
)

// FeedMode selects how the Engine is driven: pulled from an Iterator
// (backtest) or received over channels (live).
type FeedMode string

const (
	FeedModeIterator FeedMode = "iterator"
	FeedModeChannel  FeedMode = "channel"
)

// Config holds every environment-tunable knob of the engine (§A.3).
type Config struct {
	FeedMode             FeedMode
	TradingStateInitial  domain.TradingState
	OrderReconcileTimeout time.Duration
	ExecBackpressureHighWater int
	AuditChannelCapacity int
	CommandPriority      bool
	RiskFreeReturn       float64
	GhostSweepInterval   time.Duration

	LogLevel  string
	LogPretty bool

	HTTPPort int
}

// Load reads configuration from the environment (loading .env first, if
// present) and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	trading, err := domain.ParseTradingState(getEnv("ENGINE_TRADING_STATE_INITIAL", "disabled"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
	}

	cfg := &Config{
		FeedMode:                  FeedMode(getEnv("ENGINE_FEED_MODE", string(FeedModeChannel))),
		TradingStateInitial:       trading,
		OrderReconcileTimeout:     time.Duration(getEnvAsInt("ENGINE_ORDER_RECONCILE_TIMEOUT_MS", 30_000)) * time.Millisecond,
		ExecBackpressureHighWater: getEnvAsInt("ENGINE_EXEC_BACKPRESSURE_HIGH_WATER", 10_000),
		AuditChannelCapacity:      getEnvAsInt("ENGINE_AUDIT_CHANNEL_CAPACITY", 1024),
		CommandPriority:           getEnvAsBool("ENGINE_COMMAND_PRIORITY", false),
		RiskFreeReturn:            getEnvAsFloat("ENGINE_RISK_FREE_RETURN", 0.0),
		GhostSweepInterval:        time.Duration(getEnvAsInt("ENGINE_GHOST_SWEEP_INTERVAL_MS", 5_000)) * time.Millisecond,
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogPretty:                 getEnvAsBool("LOG_PRETTY", false),
		HTTPPort:                  getEnvAsInt("HTTP_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration combinations the Engine cannot run with.
func (c *Config) Validate() error {
	if c.FeedMode != FeedModeIterator && c.FeedMode != FeedModeChannel {
		return fmt.Errorf("%w: ENGINE_FEED_MODE must be %q or %q, got %q", domain.ErrConfig, FeedModeIterator, FeedModeChannel, c.FeedMode)
	}
	if c.OrderReconcileTimeout <= 0 {
		return fmt.Errorf("%w: ENGINE_ORDER_RECONCILE_TIMEOUT_MS must be positive", domain.ErrConfig)
	}
	if c.ExecBackpressureHighWater <= 0 {
		return fmt.Errorf("%w: ENGINE_EXEC_BACKPRESSURE_HIGH_WATER must be positive", domain.ErrConfig)
	}
	if c.AuditChannelCapacity <= 0 {
		return fmt.Errorf("%w: ENGINE_AUDIT_CHANNEL_CAPACITY must be positive", domain.ErrConfig)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: HTTP_PORT out of range", domain.ErrConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
