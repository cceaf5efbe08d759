package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "TIMEKEEPER_DEBUG", validateEnvBool},
		{"main.name", "TIMEKEEPER_NAME", nil},

		// Database
		{"database.type", "TIMEKEEPER_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "TIMEKEEPER_SQLITE_PATH", nil},
		{"database.mysql.host", "TIMEKEEPER_MYSQL_HOST", nil},
		{"database.mysql.port", "TIMEKEEPER_MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "TIMEKEEPER_MYSQL_USERNAME", nil},
		{"database.mysql.password", "TIMEKEEPER_MYSQL_PASSWORD", nil},
		{"database.mysql.database", "TIMEKEEPER_MYSQL_DATABASE", nil},

		// HTTP API
		{"webserver.listen", "TIMEKEEPER_LISTEN", validateEnvListen},
		{"security.jwtsecret", "TIMEKEEPER_JWT_SECRET", nil},

		// Policy and reconcile
		{"policy.dailyminimumminutes", "TIMEKEEPER_DAILY_MINIMUM_MINUTES", validateEnvPositiveInt},
		{"policy.defaulttimezone", "TIMEKEEPER_DEFAULT_TIMEZONE", validateEnvTimezone},
		{"reconcile.workers", "TIMEKEEPER_RECONCILE_WORKERS", validateEnvPositiveInt},

		// Audit
		{"audit.store", "TIMEKEEPER_AUDIT_STORE", validateEnvBool},
		{"audit.mqtt.enabled", "TIMEKEEPER_MQTT_ENABLED", validateEnvBool},
		{"audit.mqtt.broker", "TIMEKEEPER_MQTT_BROKER", nil},
		{"audit.mqtt.topic", "TIMEKEEPER_MQTT_TOPIC", nil},
		{"audit.mqtt.username", "TIMEKEEPER_MQTT_USERNAME", nil},
		{"audit.mqtt.password", "TIMEKEEPER_MQTT_PASSWORD", nil},

		// Observability
		{"logging.defaultlevel", "TIMEKEEPER_LOG_LEVEL", validateEnvLogLevel},
		{"metrics.enabled", "TIMEKEEPER_METRICS_ENABLED", validateEnvBool},
		{"telemetry.sentry.enabled", "TIMEKEEPER_SENTRY_ENABLED", validateEnvBool},
		{"telemetry.sentry.dsn", "TIMEKEEPER_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// validateEnvBool validates boolean environment variables
func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value: %s", value)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer value: %s", value)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %s", value)
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sqlite", "mysql":
		return nil
	}
	return fmt.Errorf("must be sqlite or mysql")
}

func validateEnvTimezone(value string) error {
	return validateTimezone(strings.TrimSpace(value))
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level")
}

// validateTimezone accepts IANA names only; the server's local zone is
// never a valid choice.
func validateTimezone(name string) error {
	if name == "" || name == "Local" {
		return fmt.Errorf("an IANA timezone name is required")
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown timezone %q", name)
	}
	return nil
}
