package conf

import (
	"github.com/spf13/viper"

	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/model"
)

// Sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "timekeeper")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "data/timekeeper.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "timekeeper")

	v.SetDefault("webserver.listen", "0.0.0.0:8080")
	v.SetDefault("webserver.debug", false)

	v.SetDefault("security.jwtsecret", "")

	v.SetDefault("policy.dailyminimumminutes", model.DefaultDailyMinimumMinutes)
	v.SetDefault("policy.defaulttimezone", "UTC")

	v.SetDefault("reconcile.workers", 4)

	v.SetDefault("audit.buffersize", 1024)
	v.SetDefault("audit.workers", 2)
	v.SetDefault("audit.store", true)
	v.SetDefault("audit.mqtt.enabled", false)
	v.SetDefault("audit.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("audit.mqtt.topic", "timekeeper/audit")
	v.SetDefault("audit.mqtt.username", "")
	v.SetDefault("audit.mqtt.password", "")

	v.SetDefault("logging.defaultlevel", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "UTC")
	v.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.fileoutput.enabled", logger.DefaultFileEnabled)
	v.SetDefault("logging.fileoutput.path", logger.DefaultLogPath)
	v.SetDefault("logging.fileoutput.level", logger.DefaultLogLevel)
	v.SetDefault("logging.modulelevels", map[string]string{})

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
}
