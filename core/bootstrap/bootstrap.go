package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot keeps no SQL state.
	Database   *coredatabase.Config
	Migrations fs.FS
	Seeders    []Seeder

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when Options.Database was nil.
	DB *sqlx.DB
}

// Close releases the resources held by r.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger, connects to the database, applies migrations
// and finally runs seeders in order.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if opts.Database != nil {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		db, err := connect(ctx, *opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db

		if opts.Migrations != nil {
			migrate := opts.Migrate
			if migrate == nil {
				migrate = coredatabase.RunMigrations
			}
			if err := migrate(*opts.Database, opts.Migrations); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
			}
		}
	}

	if err := Seed(ctx, opts.Seeders...); err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

// Seed runs seeders in order and stops at the first failure. Bots whose
// storage is opened after Run call it directly.
func Seed(ctx context.Context, seeders ...Seeder) error {
	for _, s := range seeders {
		if err := s.Seed(ctx); err != nil {
			return fmt.Errorf("bootstrap: seeder %s failed: %w", SeederName(s), err)
		}
		logger.L.Debug("seeder done",
			slog.String("component", "app"),
			slog.String("event", "bootstrap.seed"),
			slog.String("op", SeederName(s)),
		)
	}
	return nil
}
