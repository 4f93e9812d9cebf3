package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/storage"
)

// bankSeeder imports a bank file into the store when no bank document exists.
type bankSeeder struct {
	store *storage.Store
	file  string
}

func (s bankSeeder) Seed(ctx context.Context) error {
	if strings.TrimSpace(s.file) == "" {
		return nil
	}
	ok, err := s.store.Exists(ctx, storage.KeyBank)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	qb, err := bank.Load(s.file)
	if err != nil {
		return fmt.Errorf("load %s: %w", s.file, err)
	}
	if err := storage.Write(ctx, s.store, storage.KeyBank, qb.Document()); err != nil {
		return err
	}
	logger.Info(ctx, "app", "bank.seed",
		slog.String("file", s.file),
		slog.String("backend", s.store.Backend()),
		slog.Int("total", qb.Len()),
	)
	return nil
}

// loadBank reads the bank document and rejects banks with hard errors.
func loadBank(ctx context.Context, store *storage.Store) (*bank.Bank, error) {
	qb := bank.New(storage.Read[bank.Document](ctx, store, storage.KeyBank))
	issues := qb.Validate()
	for _, is := range issues {
		level := slog.LevelError
		if is.Warning {
			level = slog.LevelWarn
		}
		logger.Event(ctx, "app", level, "bank.issue", slog.String("err", is.String()))
	}
	if bank.HasErrors(issues) {
		return nil, fmt.Errorf("question bank has %d issue(s); run `quizbot bank check`", len(issues))
	}
	if qb.Len() == 0 {
		logger.Warn(ctx, "app", "bank.empty")
	}
	return qb, nil
}
