// Package migrate applies the embedded SQL migrations.
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"keygate.backend/migrations"
)

// Up runs all pending migrations.
func Up(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error { return UpDB(ctx, db) })
}

// UpDB runs all pending migrations on an open connection.
func UpDB(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		if err := prepare(); err != nil {
			return err
		}
		return goose.DownContext(ctx, db, ".")
	})
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, dsn string) error {
	return withDB(dsn, func(db *sql.DB) error {
		if err := prepare(); err != nil {
			return err
		}
		return goose.StatusContext(ctx, db, ".")
	})
}

func prepare() error {
	goose.SetBaseFS(migrations.FS)
	return goose.SetDialect("postgres")
}

func withDB(dsn string, fn func(db *sql.DB) error) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}
