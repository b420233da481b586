package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Storage        StorageConfig        `yaml:"storage"`
	Bank           BankConfig           `yaml:"bank"`
	Notifier       NotifierConfig       `yaml:"notifier"`
	Reaper         ReaperConfig         `yaml:"reaper"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Merchants      []SeedMerchant       `yaml:"merchants"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	BaseURL            string   `yaml:"base_url"` // used to build hosted-form paymentURL
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	RoutePrefix        string   `yaml:"route_prefix"`
	AdminToken         string   `yaml:"admin_token"` // protects /metrics and maintenance endpoints
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"` // json | console
	Service     string `yaml:"service"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// StorageConfig selects and configures the payment store backend.
type StorageConfig struct {
	Backend      string             `yaml:"backend"` // "memory", "postgres", or "mongodb"
	PostgresURL  string             `yaml:"postgres_url"`
	MongoDBURL   string             `yaml:"mongodb_url"`
	MongoDB      string             `yaml:"mongodb_database"`
	PostgresPool PostgresPoolConfig `yaml:"postgres_pool"`
}

// PostgresPoolConfig controls connection pool sizing for database/sql.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
}

// BankConfig configures the deterministic bank simulator (C8).
type BankConfig struct {
	Timeout Duration `yaml:"timeout"` // per-call deadline before NetworkError
}

// NotifierConfig configures outbound webhook delivery (C10).
type NotifierConfig struct {
	Timeout     Duration          `yaml:"timeout"`      // per-attempt HTTP timeout
	MaxAttempts int               `yaml:"max_attempts"` // default 7
	BaseBackoff Duration          `yaml:"base_backoff"` // default 30s
	MaxBackoff  Duration          `yaml:"max_backoff"`
	DLQEnabled  bool              `yaml:"dlq_enabled"`
	DLQPath     string            `yaml:"dlq_path"`
	Headers     map[string]string `yaml:"headers"`
}

// ReaperConfig configures the expiry sweep (C9).
type ReaperConfig struct {
	Interval  Duration `yaml:"interval"`   // default 30s
	BatchSize int      `yaml:"batch_size"` // default 1000
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	GlobalEnabled      bool     `yaml:"global_enabled"`
	GlobalLimit        int      `yaml:"global_limit"`
	GlobalWindow       Duration `yaml:"global_window"`
	PerMerchantEnabled bool     `yaml:"per_merchant_enabled"`
	PerMerchantLimit   int      `yaml:"per_merchant_limit"`
	PerMerchantWindow  Duration `yaml:"per_merchant_window"`
	PerIPEnabled       bool     `yaml:"per_ip_enabled"`
	PerIPLimit         int      `yaml:"per_ip_limit"`
	PerIPWindow        Duration `yaml:"per_ip_window"`
}

// CircuitBreakerConfig controls bulkhead isolation for external calls.
type CircuitBreakerConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Bank    BreakerServiceConfig `yaml:"bank"`
	Webhook BreakerServiceConfig `yaml:"webhook"`
}

// BreakerServiceConfig configures a single gobreaker instance.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`
	Interval            Duration `yaml:"interval"`
	Timeout             Duration `yaml:"timeout"`
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"`
	FailureRatio        float64  `yaml:"failure_ratio"`
	MinRequests         uint32   `yaml:"min_requests"`
}

// SeedMerchant bootstraps a merchant record at startup (demo/dev convenience,
// equivalent to the teacher's YAML-seeded paywall resources).
type SeedMerchant struct {
	TeamSlug             string   `yaml:"team_slug"`
	Password              string   `yaml:"password"`
	IsActive              bool     `yaml:"is_active"`
	SupportedCurrencies   []string `yaml:"supported_currencies"`
	MinPerPayment         int64    `yaml:"min_per_payment"`
	MaxPerPayment         int64    `yaml:"max_per_payment"`
	DailyTotal            int64    `yaml:"daily_total"`
	DailyCount            int      `yaml:"daily_count"`
	MinPaymentExpiry      int      `yaml:"min_payment_expiry"`
	MaxPaymentExpiry      int      `yaml:"max_payment_expiry"`
	DefaultSuccessURL     string   `yaml:"default_success_url"`
	DefaultFailURL        string   `yaml:"default_fail_url"`
	DefaultNotificationURL string  `yaml:"default_notification_url"`
}
