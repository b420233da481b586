package config

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			BaseURL:      "http://localhost:8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Service:     "payment-gateway",
			Environment: "development",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Bank: BankConfig{
			Timeout: Duration{Duration: 5 * time.Second},
		},
		Notifier: NotifierConfig{
			Timeout:     Duration{Duration: 10 * time.Second},
			MaxAttempts: 7,
			BaseBackoff: Duration{Duration: 30 * time.Second},
			MaxBackoff:  Duration{Duration: 1 * time.Hour},
			DLQPath:     "./data/webhook-dlq.json",
			Headers:     make(map[string]string),
		},
		Reaper: ReaperConfig{
			Interval:  Duration{Duration: 30 * time.Second},
			BatchSize: 1000,
		},
		RateLimit: RateLimitConfig{
			GlobalEnabled:      true,
			GlobalLimit:        2000,
			GlobalWindow:       Duration{Duration: 1 * time.Minute},
			PerMerchantEnabled: true,
			PerMerchantLimit:   300,
			PerMerchantWindow:  Duration{Duration: 1 * time.Minute},
			PerIPEnabled:       true,
			PerIPLimit:         120,
			PerIPWindow:        Duration{Duration: 1 * time.Minute},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			Bank: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Webhook: BreakerServiceConfig{
				MaxRequests:         5,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 60 * time.Second},
				ConsecutiveFailures: 10,
				FailureRatio:        0.7,
				MinRequests:         20,
			},
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

// ApplyPostgresPoolSettings configures a *sql.DB's connection pool from config.
func ApplyPostgresPoolSettings(db *sql.DB, cfg PostgresPoolConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)

	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime.Duration > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime.Duration)
	}
}
