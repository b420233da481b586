package config

import "fmt"

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Storage.Backend == "" {
		switch {
		case c.Storage.PostgresURL != "":
			c.Storage.Backend = "postgres"
		case c.Storage.MongoDBURL != "":
			c.Storage.Backend = "mongodb"
		default:
			c.Storage.Backend = "memory"
		}
	}

	switch c.Storage.Backend {
	case "memory", "postgres", "mongodb":
	default:
		return fmt.Errorf("config: unsupported storage backend %q", c.Storage.Backend)
	}

	if c.Storage.Backend == "postgres" && c.Storage.PostgresURL == "" {
		return fmt.Errorf("config: storage.postgres_url is required for backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "mongodb" && c.Storage.MongoDBURL == "" {
		return fmt.Errorf("config: storage.mongodb_url is required for backend %q", c.Storage.Backend)
	}

	if c.Notifier.MaxAttempts <= 0 {
		c.Notifier.MaxAttempts = 7
	}
	if c.Reaper.BatchSize <= 0 {
		c.Reaper.BatchSize = 1000
	}

	for i := range c.Merchants {
		m := &c.Merchants[i]
		if m.TeamSlug == "" {
			return fmt.Errorf("config: merchants[%d] missing team_slug", i)
		}
		if m.MinPaymentExpiry <= 0 {
			m.MinPaymentExpiry = 1
		}
		if m.MaxPaymentExpiry <= 0 || m.MaxPaymentExpiry > 43200 {
			m.MaxPaymentExpiry = 43200
		}
		if len(m.SupportedCurrencies) == 0 {
			m.SupportedCurrencies = []string{"RUB"}
		}
	}

	return nil
}
