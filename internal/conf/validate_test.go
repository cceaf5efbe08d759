package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"unknown database", func(s *Settings) { s.Database.Type = "postgres" }, "database.type"},
		{"empty sqlite path", func(s *Settings) { s.Database.SQLite.Path = " " }, "database.sqlite.path"},
		{"incomplete mysql", func(s *Settings) {
			s.Database.Type = "mysql"
			s.Database.MySQL.Username = ""
		}, "database.mysql is missing username"},
		{"bad mysql port", func(s *Settings) {
			s.Database.Type = "mysql"
			s.Database.MySQL.Username = "tk"
			s.Database.MySQL.Port = "http"
		}, "database.mysql.port"},
		{"bad listen", func(s *Settings) { s.WebServer.Listen = "8080" }, "webserver.listen"},
		{"short secret", func(s *Settings) { s.Security.JWTSecret = "short" }, "security.jwtsecret"},
		{"zero minimum", func(s *Settings) { s.Policy.DailyMinimumMinutes = 0 }, "policy.dailyminimumminutes"},
		{"local zone", func(s *Settings) { s.Policy.DefaultTimezone = "Local" }, "policy.defaulttimezone"},
		{"unknown zone", func(s *Settings) { s.Policy.DefaultTimezone = "Mars/Olympus" }, "policy.defaulttimezone"},
		{"too many workers", func(s *Settings) { s.Reconcile.Workers = 65 }, "reconcile.workers"},
		{"mqtt without broker", func(s *Settings) {
			s.Audit.MQTT.Enabled = true
			s.Audit.MQTT.Broker = ""
		}, "audit.mqtt.broker"},
		{"zero buffer", func(s *Settings) { s.Audit.BufferSize = 0 }, "audit.buffersize"},
		{"bad log level", func(s *Settings) { s.Logging.DefaultLevel = "loud" }, "logging.defaultlevel"},
		{"sentry without dsn", func(s *Settings) { s.Telemetry.Sentry.Enabled = true }, "telemetry.sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Defaults()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Len(t, ve.Errors, 1)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSettings_CollectsAll(t *testing.T) {
	s := Defaults()
	s.Database.Type = "oracle"
	s.Reconcile.Workers = 0
	s.Audit.Workers = 0

	var ve ValidationError
	require.ErrorAs(t, ValidateSettings(s), &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestValidateSettings_NormalizesDatabaseType(t *testing.T) {
	s := Defaults()
	s.Database.Type = " SQLite "
	require.NoError(t, ValidateSettings(s))
	assert.Equal(t, "sqlite", s.Database.Type)
}
