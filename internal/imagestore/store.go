// Package imagestore is a persistent, ordered key to image bytes map backed
// by a single SQLite file.
//
// Keys are the fixed-width strings produced by keyscheme and values are raw
// channel-last pixel buffers. A store is opened once per process: writable
// by the ingestion command, read-only by the sprite server. Reads are safe
// from any number of goroutines; writes go through one WriteTxn at a time.
package imagestore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/sqlitedb"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Options controls how a store is opened.
type Options struct {
	// Writable opens the store for ingestion, creating it when missing.
	Writable bool

	// MaxSize is the capacity reserved for the store in bytes. Writes that
	// would grow the store past it fail with domain.ErrCapacityExceeded.
	// Zero means unlimited.
	MaxSize int64

	Logger *slog.Logger
}

// Store is an open image store.
type Store struct {
	db       *sql.DB
	path     string
	writable bool
	logger   *slog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ domain.ImageReader = (*Store)(nil)

// Open opens or creates the store at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !opts.Writable {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("while opening image store %s: %w", path, err)
		}
	}

	db, err := sqlitedb.Open(ctx, path, sqlitedb.Options{
		ReadOnly:    !opts.Writable,
		MaxSize:     opts.MaxSize,
		ImmediateTx: opts.Writable,
	})
	if err != nil {
		return nil, translateError(err)
	}
	if opts.Writable {
		if err := sqlitedb.Migrate(db, migrationsFS, "migrations", logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("while preparing image store %s: %w", path, translateError(err))
		}
	}

	logger.Info("imagestore: opened",
		"path", path,
		"writable", opts.Writable,
		"max_size", humanize.IBytes(uint64(max(opts.MaxSize, 0))),
	)
	return &Store{
		db:       db,
		path:     path,
		writable: opts.Writable,
		logger:   logger,
	}, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, domain.ErrClosed
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM images WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("while reading key %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("while reading key %s: %w", key, err)
	}
	return value, nil
}

// Len returns the number of stored images.
func (s *Store) Len(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, domain.ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&n); err != nil {
		return 0, fmt.Errorf("while counting images: %w", err)
	}
	return n, nil
}

// Keys calls fn for every stored key in ascending order, stopping at the
// first error.
func (s *Store) Keys(ctx context.Context, fn func(key string) error) error {
	if s.closed.Load() {
		return domain.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM images ORDER BY key")
	if err != nil {
		return fmt.Errorf("while listing keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("while listing keys: %w", err)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return rows.Err()
}

// BeginWrite starts the store's single write transaction. It blocks while
// another WriteTxn of this store is open.
func (s *Store) BeginWrite(ctx context.Context) (*WriteTxn, error) {
	if s.closed.Load() {
		return nil, domain.ErrClosed
	}
	if !s.writable {
		return nil, domain.ErrReadOnly
	}
	s.writeMu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("while starting write transaction: %w", translateError(err))
	}
	put, err := tx.PrepareContext(ctx, `
insert into images (key, value) values (?, ?) on conflict(key) do update set value=excluded.value
`)
	if err != nil {
		tx.Rollback()
		s.writeMu.Unlock()
		return nil, fmt.Errorf("while preparing insert statement: %w", err)
	}
	return &WriteTxn{store: s, tx: tx, put: put}, nil
}

// Close releases the store. Later operations fail with domain.ErrClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return domain.ErrClosed
	}
	s.logger.Debug("imagestore: closed", "path", s.path)
	return s.db.Close()
}

// Exists reports whether a store holding at least one image is present at
// path.
func Exists(ctx context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("image store path %s is a directory", path)
	}
	if info.Size() == 0 {
		return false, nil
	}
	s, err := Open(ctx, path, Options{})
	if err != nil {
		return false, err
	}
	defer s.Close()
	n, err := s.Len(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// translateError maps storage engine failures onto the domain errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if sqlitedb.IsFull(err) {
		return fmt.Errorf("%w: %w", domain.ErrCapacityExceeded, err)
	}
	return err
}
