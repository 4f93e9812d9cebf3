package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
)

// Config selects and configures the document backend.
type Config struct {
	Driver     string       `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	Dir        string       `yaml:"dir" envconfig:"STORAGE_DIR"`
	SQLitePath string       `yaml:"sqlite_path" envconfig:"STORAGE_SQLITE_PATH"`
	Redis      RedisOptions `yaml:"redis"`
}

// DriverName returns the normalised driver, defaulting to file.
func (c Config) DriverName() string {
	d := strings.ToLower(strings.TrimSpace(c.Driver))
	if d == "" {
		return DriverFile
	}
	return d
}

// UsesSQL reports whether the driver needs a database connection.
func (c Config) UsesSQL() bool {
	d := c.DriverName()
	return d == DriverPostgres || d == DriverSQLite
}

// Validate checks the driver name and its required settings.
func (c Config) Validate() error {
	switch c.DriverName() {
	case DriverFile, DriverPostgres:
		return nil
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
		return nil
	case DriverRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis driver")
		}
		return nil
	}
	return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres, sqlite, redis", c.Driver)
}

// Open builds the backend for cfg. db must be non-nil for SQL drivers.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (Backend, error) {
	switch cfg.DriverName() {
	case DriverFile:
		return NewFileBackend(cfg.Dir)
	case DriverPostgres, DriverSQLite:
		if db == nil {
			return nil, fmt.Errorf("storage: %s driver needs a database connection", cfg.DriverName())
		}
		return NewSQLBackend(db), nil
	case DriverRedis:
		return NewRedisBackend(ctx, cfg.Redis)
	}
	return nil, cfg.Validate()
}
