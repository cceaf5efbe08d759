package conf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateDatabaseSettings,
		validateWebServerSettings,
		validateSecuritySettings,
		validatePolicySettings,
		validateReconcileSettings,
		validateAuditSettings,
		validateLoggingSettings,
		validateTelemetrySettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *Settings) error {
	db := &s.Database
	db.Type = strings.ToLower(strings.TrimSpace(db.Type))

	switch db.Type {
	case "sqlite":
		if strings.TrimSpace(db.SQLite.Path) == "" {
			return fmt.Errorf("database.sqlite.path is required for sqlite")
		}
	case "mysql":
		var missing []string
		if db.MySQL.Host == "" {
			missing = append(missing, "host")
		}
		if db.MySQL.Username == "" {
			missing = append(missing, "username")
		}
		if db.MySQL.Database == "" {
			missing = append(missing, "database")
		}
		if len(missing) > 0 {
			return fmt.Errorf("database.mysql is missing %s", strings.Join(missing, ", "))
		}
		if port, err := strconv.Atoi(db.MySQL.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("database.mysql.port %q is not a valid port", db.MySQL.Port)
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got %q", db.Type)
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if _, port, err := net.SplitHostPort(s.WebServer.Listen); err != nil || port == "" {
		return fmt.Errorf("webserver.listen %q must be host:port", s.WebServer.Listen)
	}
	return nil
}

func validateSecuritySettings(s *Settings) error {
	// An empty secret is allowed here; serve refuses to start without one.
	if secret := s.Security.JWTSecret; secret != "" && len(secret) < 32 {
		return fmt.Errorf("security.jwtsecret must be at least 32 characters")
	}
	return nil
}

func validatePolicySettings(s *Settings) error {
	var errs []string
	if m := s.Policy.DailyMinimumMinutes; m < 1 || m > 24*60 {
		errs = append(errs, fmt.Sprintf("policy.dailyminimumminutes must be between 1 and 1440, got %d", m))
	}
	if err := validateTimezone(s.Policy.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Sprintf("policy.defaulttimezone: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("policy settings errors: %v", errs)
	}
	return nil
}

func validateReconcileSettings(s *Settings) error {
	if w := s.Reconcile.Workers; w < 1 || w > 64 {
		return fmt.Errorf("reconcile.workers must be between 1 and 64, got %d", w)
	}
	return nil
}

func validateAuditSettings(s *Settings) error {
	var errs []string
	a := &s.Audit
	if a.BufferSize < 1 {
		errs = append(errs, "audit.buffersize must be positive")
	}
	if a.Workers < 1 {
		errs = append(errs, "audit.workers must be positive")
	}
	if a.MQTT.Enabled {
		if a.MQTT.Broker == "" {
			errs = append(errs, "audit.mqtt.broker is required when MQTT is enabled")
		}
		if strings.Trim(a.MQTT.Topic, "/ ") == "" {
			errs = append(errs, "audit.mqtt.topic is required when MQTT is enabled")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("audit settings errors: %v", errs)
	}
	return nil
}

func validateLoggingSettings(s *Settings) error {
	if s.Logging.DefaultLevel != "" {
		if err := validateEnvLogLevel(s.Logging.DefaultLevel); err != nil {
			return fmt.Errorf("logging.defaultlevel: %w", err)
		}
	}
	if tz := s.Logging.Timezone; tz != "" && tz != "UTC" {
		if err := validateTimezone(tz); err != nil {
			return fmt.Errorf("logging.timezone: %w", err)
		}
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Sentry.Enabled && strings.TrimSpace(s.Telemetry.Sentry.DSN) == "" {
		return fmt.Errorf("telemetry.sentry.dsn is required when sentry is enabled")
	}
	return nil
}
