package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SQLBackend keeps documents in the "documents" table created by the
// migrations. It works on both postgres and sqlite connections.
type SQLBackend struct {
	db *sqlx.DB

	getQuery string
	putQuery string
}

// NewSQLBackend binds the queries to db's placeholder style.
func NewSQLBackend(db *sqlx.DB) *SQLBackend {
	return &SQLBackend{
		db:       db,
		getQuery: db.Rebind(`SELECT value FROM documents WHERE key = ?`),
		putQuery: db.Rebind(`INSERT INTO documents (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`),
	}
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := b.db.GetContext(ctx, &value, b.getQuery, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return []byte(value), nil
}

// Put upserts the document. The value is sent as text so postgres can cast it
// to JSONB.
func (b *SQLBackend) Put(ctx context.Context, key string, value []byte) error {
	if _, err := b.db.ExecContext(ctx, b.putQuery, key, string(value)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (b *SQLBackend) Name() string { return b.db.DriverName() }

// Close is a no-op; the connection belongs to bootstrap.
func (b *SQLBackend) Close() error { return nil }
