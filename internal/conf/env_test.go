package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"true", "true", false},
		{"false", "false", false},
		{"1", "1", false},
		{"TRUE", "TRUE", false},
		{"true with spaces", " true ", false},
		{"invalid", "maybe", true},
		{"yes", "yes", true}, // strconv.ParseBool doesn't accept yes/no
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvBool(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid boolean value")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(string) error
		value   string
		wantErr bool
	}{
		{"positive int", validateEnvPositiveInt, "4", false},
		{"zero int", validateEnvPositiveInt, "0", true},
		{"not an int", validateEnvPositiveInt, "four", true},
		{"port", validateEnvPort, "3306", false},
		{"port out of range", validateEnvPort, "70000", true},
		{"listen", validateEnvListen, ":8080", false},
		{"listen without port", validateEnvListen, "localhost", true},
		{"sqlite", validateEnvDatabaseType, "SQLite", false},
		{"postgres", validateEnvDatabaseType, "postgres", true},
		{"zone", validateEnvTimezone, "America/New_York", false},
		{"local zone", validateEnvTimezone, "Local", true},
		{"log level", validateEnvLogLevel, "DEBUG", false},
		{"bad log level", validateEnvLogLevel, "verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvBindingsAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, b := range getEnvBindings() {
		assert.False(t, seen[b.EnvVar], "duplicate %s", b.EnvVar)
		seen[b.EnvVar] = true
		assert.Regexp(t, `^TIMEKEEPER_[A-Z_]+$`, b.EnvVar)
	}
}
