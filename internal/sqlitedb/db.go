// Package sqlitedb opens SQLite databases with the pragmas every store in
// this module relies on and applies embedded schema migrations.
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultPageSize is the SQLite page size used to turn a byte budget into a
// page budget.
const DefaultPageSize = 4096

// Options controls how a database file is opened.
type Options struct {
	// ReadOnly opens the file with mode=ro. The file must already exist.
	ReadOnly bool

	// MaxSize caps the database size in bytes through max_page_count.
	// Zero means no cap.
	MaxSize int64

	// ImmediateTx starts write transactions with BEGIN IMMEDIATE so the
	// write lock is taken up front.
	ImmediateTx bool
}

// DSN builds the modernc.org/sqlite data source name for path.
func DSN(path string, opts Options) string {
	params := url.Values{}
	pragmas := []string{"busy_timeout(5000)"}
	if opts.ReadOnly {
		params.Set("mode", "ro")
	} else {
		pragmas = append(pragmas, "journal_mode(wal)", "synchronous(normal)")
	}
	if opts.MaxSize > 0 {
		pragmas = append(pragmas, fmt.Sprintf("max_page_count(%d)", MaxPages(opts.MaxSize)))
	}
	for _, p := range pragmas {
		params.Add("_pragma", p)
	}
	if opts.ImmediateTx {
		params.Set("_txlock", "immediate")
	}
	return "file:" + escapePath(path) + "?" + params.Encode()
}

// MaxPages converts a byte budget to a page budget, rounding up.
func MaxPages(maxSize int64) int64 {
	return (maxSize + DefaultPageSize - 1) / DefaultPageSize
}

// Open opens and pings the database at path.
func Open(ctx context.Context, path string, opts Options) (*sql.DB, error) {
	db, err := sql.Open("sqlite", DSN(path, opts))
	if err != nil {
		return nil, fmt.Errorf("while opening database %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("while connecting to database %s: %w", path, err)
	}
	return db, nil
}

// escapePath keeps characters that have a meaning in SQLite URIs out of the
// file name part.
func escapePath(path string) string {
	r := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")
	return r.Replace(path)
}
