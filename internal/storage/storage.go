// Package storage keeps JSON documents by logical key on a pluggable backend
// and serialises read-modify-write cycles per key.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/metrics"
)

// ErrNotFound is returned by backends when no document exists under a key.
var ErrNotFound = errors.New("storage: document not found")

// Logical document keys.
const (
	KeyScores  = "puntajes"
	KeyBank    = "preguntas"
	KeyHistory = "historial"
	KeyCourse  = "estado_curso"
	KeyPaused  = "pausados"
)

// Backend persists raw document bytes.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Name() string
	Close() error
}

// Store wraps a Backend with per-key locking and JSON coding.
type Store struct {
	backend Backend

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a Store over backend.
func New(backend Backend) *Store {
	return &Store{backend: backend, locks: make(map[string]*sync.Mutex)}
}

// Backend returns the underlying backend name.
func (s *Store) Backend() string { return s.backend.Name() }

// Close closes the backend.
func (s *Store) Close() error { return s.backend.Close() }

func (s *Store) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Exists reports whether a document is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.backend.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	}
	return false, err
}

// Read decodes the document under key into a T. Missing, unreadable or
// corrupt documents yield the zero T; failures are logged, never returned.
func Read[T any](ctx context.Context, s *Store, key string) T {
	unlock := s.lock(key)
	defer unlock()
	return read[T](ctx, s, key)
}

func read[T any](ctx context.Context, s *Store, key string) T {
	var out T
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		observe(s, "read", nil)
		return out
	}
	if err == nil {
		err = json.Unmarshal(data, &out)
		if err != nil {
			var zero T
			out = zero
			err = fmt.Errorf("decode %s: %w", key, err)
		}
	}
	observe(s, "read", err)
	if err != nil {
		logger.Warn(ctx, "store", "store.read.fail",
			slog.String("key", key),
			slog.String("backend", s.backend.Name()),
			slog.Any("err", err),
		)
	}
	return out
}

// Write replaces the document under key with v.
func Write[T any](ctx context.Context, s *Store, key string, v T) error {
	unlock := s.lock(key)
	defer unlock()
	return write(ctx, s, key, v)
}

func write[T any](ctx context.Context, s *Store, key string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		err = s.backend.Put(ctx, key, data)
	}
	observe(s, "write", err)
	if err != nil {
		logger.Error(ctx, "store", "store.write.fail",
			slog.String("key", key),
			slog.String("backend", s.backend.Name()),
			slog.Any("err", err),
		)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return nil
}

// Update reads the document under key, applies fn and writes the result back
// while holding the key's lock. A missing document starts from the zero T.
// Unlike Read, a backend or decode failure aborts without writing, as does a
// non-nil error from fn.
func Update[T any](ctx context.Context, s *Store, key string, fn func(*T) error) error {
	unlock := s.lock(key)
	defer unlock()

	doc, err := load[T](ctx, s, key)
	if err != nil {
		logger.Error(ctx, "store", "store.update.fail",
			slog.String("key", key),
			slog.String("backend", s.backend.Name()),
			slog.Any("err", err),
		)
		return fmt.Errorf("storage: update %s: %w", key, err)
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return write(ctx, s, key, doc)
}

// load is the strict read behind Update: only ErrNotFound yields the zero T.
func load[T any](ctx context.Context, s *Store, key string) (T, error) {
	var out T
	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		observe(s, "read", nil)
		return out, nil
	}
	if err == nil {
		if err = json.Unmarshal(data, &out); err != nil {
			err = fmt.Errorf("decode: %w", err)
		}
	}
	observe(s, "read", err)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func observe(s *Store, op string, err error) {
	metrics.StoreOps.WithLabelValues(s.backend.Name(), op, metrics.Status(err)).Inc()
}
