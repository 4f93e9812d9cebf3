// Package app wires configuration, storage and the quiz engine into a
// runnable Telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/quizbot/core/bootstrap"
	corecmd "github.com/m3rciful/quizbot/core/cmd"
	"github.com/m3rciful/quizbot/core/httpserver"
	"github.com/m3rciful/quizbot/core/logger"
	coretelegram "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/router"
	"github.com/m3rciful/quizbot/core/telegram/sender"
	"github.com/m3rciful/quizbot/internal/bot"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/quiz/countdown"
	"github.com/m3rciful/quizbot/internal/quiz/ranking"
	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"
	"github.com/m3rciful/quizbot/internal/storage"
	"github.com/m3rciful/quizbot/migrations"
)

// App holds the long-lived pieces of a running bot.
type App struct {
	cfg     *Config
	infra   *bootstrap.Result
	store   *storage.Store
	records *records.Records
	bank    *bank.Bank

	mu     sync.Mutex
	timer  *countdown.Scheduler
	engine *session.Engine
}

// LoadConfig adapts Load to cmd.Options.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	return Load(path)
}

// BootstrapApp adapts Bootstrap to cmd.Options.
func BootstrapApp(ctx context.Context, cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	c, ok := cfg.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", cfg)
	}
	return Bootstrap(ctx, c, bootstrap.Options{})
}

// Bootstrap initialises logging, the database when the storage driver needs
// one, the document store and the question bank. base may override the
// bootstrap hooks; its Config, Database and Migrations are set here.
func Bootstrap(ctx context.Context, cfg *Config, base bootstrap.Options) (*App, error) {
	base.Config = &cfg.Config
	base.Database = cfg.DatabaseConfig()
	if base.Database != nil {
		base.Migrations = migrations.FS
	}
	infra, err := bootstrap.Run(ctx, base)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(ctx, cfg.Storage, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	store := storage.New(backend)
	a := &App{cfg: cfg, infra: infra, store: store, records: records.New(store)}

	seed := bootstrap.Named("bank", bankSeeder{store: store, file: cfg.Quiz.BankFile})
	if err := bootstrap.Seed(ctx, seed); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.bank, err = loadBank(ctx, store); err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info(ctx, "app", "bootstrap.done",
		slog.String("backend", store.Backend()),
		slog.Int("subjects", len(a.bank.Subjects())),
		slog.Int("total", a.bank.Len()),
	)
	return a, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Config
	s := core.Sender
	return coretelegram.RunOptions{
		Config:   core,
		Registry: coretelegram.NewRegistry(),
		DispatcherOptions: sender.FromConfig(
			s.QueueSize, s.Workers, s.MaxRetries, s.RetryBackoffMS, s.MaxDurationMS, s.MaxFloodRetries,
		),
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Setup:       a.setup,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) setup(_ context.Context, rt coretelegram.Runtime) ([]coretelegram.Route, error) {
	timer := countdown.New(countdown.Options{
		Window: a.cfg.Quiz.QuestionWindow,
		Tick:   a.cfg.Quiz.TickInterval,
	})
	engine := session.NewEngine(session.Config{
		Topics:     a.bank,
		Records:    a.records,
		Gateway:    bot.NewGateway(rt.Bot, rt.Dispatcher),
		Timer:      timer,
		MaxActive:  a.cfg.Quiz.MaxActive,
		GradeScale: a.cfg.Quiz.GradeScale,
	})
	a.mu.Lock()
	a.timer, a.engine = timer, engine
	a.mu.Unlock()

	rank := ranking.NewService(ranking.Config{
		Scores:     a.records,
		Active:     engine,
		AdminID:    a.cfg.Telegram.AdminID,
		Excellent:  decimal.NewFromFloat(a.cfg.Ranking.Excellent),
		Good:       decimal.NewFromFloat(a.cfg.Ranking.Good),
		GradeScale: a.cfg.Quiz.GradeScale,
	})
	h := bot.NewHandlers(bot.Options{
		Engine:      engine,
		Ranking:     rank,
		Catalog:     a.bank,
		Course:      a.records,
		TopN:        a.cfg.Ranking.TopN,
		OverviewTop: a.cfg.Ranking.Overview,
		Location:    a.cfg.Location(),
	})
	if err := h.Register(rt.Registry); err != nil {
		return nil, err
	}

	routes := router.CommandRoutes(rt.Registry, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: bot.RejectAdmin,
	})
	routes = append(routes,
		router.CallbackRoute(rt.Registry),
		router.TextRoute(rt.Registry, router.TextOptions{}),
	)
	return routes, nil
}

// onStop pauses every running quiz so it can be resumed after a restart.
func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	a.mu.Lock()
	engine, timer := a.engine, a.timer
	a.mu.Unlock()
	if engine == nil {
		return nil
	}
	n := engine.PauseAll(ctx)
	timer.Stop()
	logger.Info(ctx, "app", "shutdown.pause", slog.Int("total", n))
	return nil
}

// BackgroundTasks implements cmd.TelegramApp.
func (a *App) BackgroundTasks() []corecmd.Task {
	if a.cfg.HTTP.Listen == "" {
		return nil
	}
	srv := httpserver.New(a.cfg.HTTP, a.health)
	return []corecmd.Task{{Name: "http", Run: srv.Run}}
}

func (a *App) health(ctx context.Context) map[string]any {
	out := map[string]any{
		"storage":       a.store.Backend(),
		"course_active": a.records.CourseActive(ctx),
		"topics":        len(a.bank.Keys()),
	}
	a.mu.Lock()
	engine := a.engine
	a.mu.Unlock()
	if engine != nil {
		out["active_sessions"] = len(engine.Active())
	}
	return out
}

// Close implements cmd.TelegramApp.
func (a *App) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.infra != nil {
		errs = append(errs, a.infra.Close())
	}
	return errors.Join(errs...)
}
