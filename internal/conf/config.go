// Package conf loads timekeeper settings from config.yaml, defaults and
// TIMEKEEPER_* environment variables.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/geoclock/timekeeper/internal/logger"
)

// DatabaseSettings selects and configures the store.
type DatabaseSettings struct {
	Type   string // "sqlite" or "mysql"
	SQLite struct {
		Path string // database file
	}
	MySQL struct {
		Host     string
		Port     string
		Username string
		Password string
		Database string
	}
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Listen string // host:port to listen on
	Debug  bool   // true to log every request at DEBUG
}

// SecuritySettings holds bearer token verification settings.
type SecuritySettings struct {
	JWTSecret string // HS256 signing secret
}

// PolicySettings holds the work day policy.
type PolicySettings struct {
	DailyMinimumMinutes int    // minutes required to meet the policy
	DefaultTimezone     string // zone used when neither request nor organization names one
}

// ReconcileSettings bounds reconcile parallelism.
type ReconcileSettings struct {
	Workers int
}

// MQTTSettings configures the MQTT audit backend.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // e.g. tcp://localhost:1883
	Topic    string // base topic, events go to <topic>/<org>/<action>
	Username string
	Password string
}

// AuditSettings configures audit delivery.
type AuditSettings struct {
	BufferSize int  // queued events before new ones are dropped
	Workers    int  // delivery goroutines
	Store      bool // persist events to audit_logs
	MQTT       MQTTSettings
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// TelemetrySettings groups external error reporting.
type TelemetrySettings struct {
	Sentry SentrySettings
}

// Settings is the root of the configuration.
type Settings struct {
	Debug bool

	Main struct {
		Name string // instance name, used as MQTT client id and in telemetry
	}

	Database  DatabaseSettings
	WebServer WebServerSettings
	Security  SecuritySettings
	Policy    PolicySettings
	Reconcile ReconcileSettings
	Audit     AuditSettings
	Logging   logger.LoggingConfig
	Metrics   MetricsSettings
	Telemetry TelemetrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile, or config.yaml from the default paths when
// configFile is empty, applies defaults and environment overrides, and
// validates the result. A missing default config file is not an error.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig(viper.GetViper())

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// Defaults returns the settings used when nothing is configured.
func Defaults() *Settings {
	v := viper.New()
	setDefaultConfig(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		panic(fmt.Sprintf("conf: default settings do not unmarshal: %v", err))
	}
	return settings
}

// GetSettings returns the settings of the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing
// file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write to a temporary file first so readers never see a partial file.
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Chmod(tempFileName, 0o600); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error moving config file into place: %w", err)
	}
	return nil
}

// GenerateRandomSecret generates a URL-safe base64 encoded random string
// suitable for use as a signing secret. The output is 43 characters long,
// providing 256 bits of entropy.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
