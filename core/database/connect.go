package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/quizbot/core/logger"
)

// Connect opens the database, configures the pool and verifies connectivity.
// Postgres is retried until ready or ctx expires; SQLite is opened once.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	driver := cfg.DriverName()
	log := logger.DB.With(slog.String("driver", driver))

	start := time.Now()
	db, err := openWithRetry(ctx, driver, cfg.DSN())
	took := logger.Took(start)
	if err != nil {
		log.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("host", cfg.Host),
			slog.String("db", cfg.Name),
			slog.Duration("duration", took),
			slog.Any("err", err),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	switch {
	case driver == DriverSQLite:
		// a single writer avoids SQLITE_BUSY under concurrent updates
		db.SetMaxOpenConns(1)
	case cfg.MaxConnections > 0:
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections)
	}

	log.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("host", cfg.Host),
		slog.String("db", cfg.Name),
		slog.String("path", cfg.Path),
		slog.Int("pool_open", db.Stats().MaxOpenConnections),
		slog.Duration("duration", took),
	)
	return db, nil
}

func openWithRetry(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	for attempt := 1; ; attempt++ {
		db, err := sqlx.ConnectContext(ctx, driver, dsn)
		if err == nil {
			return db, nil
		}
		if driver == DriverSQLite {
			return nil, err
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.wait"),
			slog.Int("attempts", attempt),
			slog.Any("err", err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for database: %w", err)
		case <-time.After(2 * time.Second):
		}
	}
}
