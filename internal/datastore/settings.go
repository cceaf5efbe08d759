package datastore

import (
	"github.com/geoclock/timekeeper/internal/conf"
	"github.com/geoclock/timekeeper/internal/logger"
)

// OptionsFromSettings maps the database section of settings to OpenOptions.
func OptionsFromSettings(settings *conf.Settings, log logger.Logger) OpenOptions {
	db := settings.Database
	return OpenOptions{
		Type:   db.Type,
		SQLite: Config{Path: db.SQLite.Path},
		MySQL: MySQLConfig{
			Host:     db.MySQL.Host,
			Port:     db.MySQL.Port,
			Username: db.MySQL.Username,
			Password: db.MySQL.Password,
			Database: db.MySQL.Database,
		},
		Logger: log,
	}
}
