package repository

import (
	"context"
	"database/sql"
	"embed"
	"log/slog"

	"github.com/lewtec/imagesprite/internal/sqlitedb"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenDatabase opens the classification log database at path, creating it
// and applying migrations as needed.
func OpenDatabase(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Options{})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the classification log schema to db.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	return sqlitedb.Migrate(db, migrationsFS, "migrations", logger)
}
