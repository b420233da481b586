package config

import (
	"os"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use GATEWAY_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	setIfEnv(&c.Server.Address, "GATEWAY_SERVER_ADDRESS")
	setIfEnv(&c.Server.BaseURL, "GATEWAY_SERVER_BASE_URL")
	setIfEnv(&c.Server.RoutePrefix, "GATEWAY_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminToken, "GATEWAY_ADMIN_TOKEN")

	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	setIfEnv(&c.Logging.Level, "GATEWAY_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "GATEWAY_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "GATEWAY_ENVIRONMENT")

	setIfEnv(&c.Storage.Backend, "GATEWAY_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "GATEWAY_POSTGRES_URL")
	setIfEnv(&c.Storage.MongoDBURL, "GATEWAY_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDB, "GATEWAY_MONGODB_DATABASE")

	setDurationIfEnv(&c.Bank.Timeout, "GATEWAY_BANK_TIMEOUT")

	setDurationIfEnv(&c.Notifier.Timeout, "GATEWAY_NOTIFIER_TIMEOUT")
	setDurationIfEnv(&c.Notifier.BaseBackoff, "GATEWAY_NOTIFIER_BASE_BACKOFF")
	setDurationIfEnv(&c.Notifier.MaxBackoff, "GATEWAY_NOTIFIER_MAX_BACKOFF")
	setBoolIfEnv(&c.Notifier.DLQEnabled, "GATEWAY_NOTIFIER_DLQ_ENABLED")
	setIfEnv(&c.Notifier.DLQPath, "GATEWAY_NOTIFIER_DLQ_PATH")

	setDurationIfEnv(&c.Reaper.Interval, "GATEWAY_REAPER_INTERVAL")

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "GATEWAY_WEBHOOK_HEADER_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimPrefix(parts[0], "GATEWAY_WEBHOOK_HEADER_")
		if name == "" {
			continue
		}
		if c.Notifier.Headers == nil {
			c.Notifier.Headers = make(map[string]string)
		}
		c.Notifier.Headers[strings.ReplaceAll(name, "_", "-")] = parts[1]
	}
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimSuffix(prefix, "/")
}
