package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lewtec/imagesprite/internal/domain"
)

// SetupTestDB creates an in-memory SQLite database with the logs schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := Migrate(db, slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

// MustInsert stores log entries and fails the test if it errors
func MustInsert(t *testing.T, db *sql.DB, entries ...domain.LogEntry) {
	t.Helper()
	if err := NewMetadataRepository(db).Insert(context.Background(), entries); err != nil {
		t.Fatalf("failed to insert log entries: %v", err)
	}
}
