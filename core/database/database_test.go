package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m3rciful/quizbot/migrations"
)

func TestConfigDSN(t *testing.T) {
	pg := Config{Host: "db", Port: "5432", User: "quiz", Password: "p@ss", Name: "quiz"}
	if got := pg.MigrateURL(); got != "postgres://quiz:p%40ss@db:5432/quiz?sslmode=disable" {
		t.Fatalf("unexpected migrate url %s", got)
	}
	if got := pg.DSN(); got != "user=quiz password=p@ss host=db port=5432 dbname=quiz sslmode=disable" {
		t.Fatalf("unexpected dsn %s", got)
	}

	lite := Config{Driver: DriverSQLite, Path: "/tmp/q.db"}
	if got := lite.MigrateURL(); got != "sqlite:///tmp/q.db" {
		t.Fatalf("unexpected sqlite url %s", got)
	}
}

func TestCountApplied(t *testing.T) {
	files := []string{"sqlite/0001_documents.up.sql", "sqlite/0002_index.up.sql", "sqlite/0003_x.up.sql"}
	if n := countApplied(files, 1, 3); n != 2 {
		t.Fatalf("countApplied = %d, want 2", n)
	}
	if n := countApplied(files, 3, 3); n != 0 {
		t.Fatalf("countApplied = %d, want 0", n)
	}
}

func TestSQLiteConnectAndMigrate(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "quiz.db")}

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := RunMigrations(cfg, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// second run is a no-op
	if err := RunMigrations(cfg, migrations.FS); err != nil {
		t.Fatalf("migrate again: %v", err)
	}

	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM documents`); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
}
