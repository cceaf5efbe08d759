package datastore

import (
	"fmt"
	"strings"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
)

// Supported database types.
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Type   string
	SQLite Config
	MySQL  MySQLConfig
	Logger logger.Logger
}

// Open creates the configured manager and runs migrations.
func Open(opts OpenOptions) (Manager, error) {
	var (
		mgr Manager
		err error
	)

	switch strings.ToLower(opts.Type) {
	case "", TypeSQLite:
		cfg := opts.SQLite
		if cfg.Logger == nil {
			cfg.Logger = opts.Logger
		}
		mgr, err = NewSQLiteManager(cfg)
	case TypeMySQL:
		cfg := opts.MySQL
		if cfg.Logger == nil {
			cfg.Logger = opts.Logger
		}
		mgr, err = NewMySQLManager(&cfg)
	default:
		return nil, errors.Newf("unsupported database type %q", opts.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Build()
	}

	if err := mgr.Initialize(); err != nil {
		_ = mgr.Close()
		return nil, errors.New(fmt.Errorf("initialize %s: %w", mgr.Path(), err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}

	return mgr, nil
}
