package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaults(t *testing.T) {
	s := Defaults()
	require.NoError(t, ValidateSettings(s))

	assert.Equal(t, "sqlite", s.Database.Type)
	assert.Equal(t, "data/timekeeper.db", s.Database.SQLite.Path)
	assert.Equal(t, 480, s.Policy.DailyMinimumMinutes)
	assert.Equal(t, "UTC", s.Policy.DefaultTimezone)
	assert.Equal(t, 4, s.Reconcile.Workers)
	assert.Equal(t, 1024, s.Audit.BufferSize)
	assert.True(t, s.Audit.Store)
	assert.False(t, s.Audit.MQTT.Enabled)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
main:
  name: branch-office
database:
  type: mysql
  mysql:
    host: db.internal
    port: "3307"
    username: tk
    password: secret
    database: tk
policy:
  dailyminimumminutes: 420
  defaulttimezone: Europe/Helsinki
`), 0o600))

	t.Setenv("TIMEKEEPER_RECONCILE_WORKERS", "8")
	t.Setenv("TIMEKEEPER_MYSQL_PASSWORD", "from-env")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "branch-office", s.Main.Name)
	assert.Equal(t, "mysql", s.Database.Type)
	assert.Equal(t, "db.internal", s.Database.MySQL.Host)
	assert.Equal(t, "3307", s.Database.MySQL.Port)
	assert.Equal(t, "from-env", s.Database.MySQL.Password)
	assert.Equal(t, 420, s.Policy.DailyMinimumMinutes)
	assert.Equal(t, "Europe/Helsinki", s.Policy.DefaultTimezone)
	assert.Equal(t, 8, s.Reconcile.Workers)
	assert.Equal(t, "0.0.0.0:8080", s.WebServer.Listen, "defaults fill unset keys")
	assert.Same(t, s, GetSettings())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		resetViper(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid env value", func(t *testing.T) {
		resetViper(t)
		t.Setenv("TIMEKEEPER_DEBUG", "maybe")
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("debug: false\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TIMEKEEPER_DEBUG")
	})

	t.Run("invalid settings", func(t *testing.T) {
		resetViper(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("policy:\n  defaulttimezone: Local\n"), 0o600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "policy.defaulttimezone")
	})
}

func TestSaveYAMLConfig_RoundTrip(t *testing.T) {
	resetViper(t)

	s := Defaults()
	s.Main.Name = "round-trip"
	s.Security.JWTSecret = GenerateRandomSecret()
	s.Audit.MQTT.Enabled = true
	s.Logging.ModuleLevels = map[string]string{"datastore": "debug"}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, s))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip", loaded.Main.Name)
	assert.Equal(t, s.Security.JWTSecret, loaded.Security.JWTSecret)
	assert.True(t, loaded.Audit.MQTT.Enabled)
	assert.Equal(t, "debug", loaded.Logging.ModuleLevels["datastore"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file is cleaned up")
}

func TestGenerateRandomSecret(t *testing.T) {
	a, b := GenerateRandomSecret(), GenerateRandomSecret()
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
