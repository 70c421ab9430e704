package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/imagestore"
)

// DefaultMaxSize is the capacity reserved for a CIFAR-10 training store:
// ten times the 30720000 bytes of raw pixels it holds.
const DefaultMaxSize int64 = 10 * 30720000

// Config describes a complete ingestion run.
type Config struct {
	// Path is where the finished store is placed.
	Path string

	// MaxSize is the store capacity in bytes, DefaultMaxSize when zero.
	MaxSize int64

	Sources []BatchSource
	Format  Format
	Workers int
	Logger  *slog.Logger
}

// Result reports the outcome of Run.
type Result struct {
	// Skipped is set when a populated store already existed at Path.
	Skipped  bool
	Manifest *domain.IngestManifest
	Duration time.Duration
}

// Run builds the store at cfg.Path unless a populated one already exists.
//
// The store is built in a temporary file next to Path and renamed into
// place once every batch is committed, so a failed run never leaves a
// partially filled store where the server would pick it up.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	exists, err := imagestore.Exists(ctx, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("while checking for existing store %s: %w", cfg.Path, err)
	}
	if exists {
		logger.Info("ingest: store already populated, skipping", "path", cfg.Path)
		return &Result{Skipped: true}, nil
	}

	started := time.Now()
	tempPath := fmt.Sprintf("%s.%s.partial", cfg.Path, uuid.NewString())
	logger.Info("ingest: starting",
		"path", cfg.Path,
		"temp_path", tempPath,
		"batches", len(cfg.Sources),
		"format", cfg.Format.String(),
		"max_size", humanize.IBytes(uint64(maxSize)),
	)

	store, err := imagestore.Open(ctx, tempPath, imagestore.Options{
		Writable: true,
		MaxSize:  maxSize,
		Logger:   logger,
	})
	if err != nil {
		removeStoreFiles(tempPath)
		return nil, err
	}

	ingestor := &Ingestor{Format: cfg.Format, Workers: cfg.Workers, Logger: logger}
	manifest, err := ingestor.Ingest(ctx, store, cfg.Sources)
	closeErr := store.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		removeStoreFiles(tempPath)
		if errors.Is(err, domain.ErrCapacityExceeded) {
			logger.Error("ingest: store capacity exceeded, rerun with a larger max size",
				"max_size", humanize.IBytes(uint64(maxSize)))
		}
		return nil, err
	}

	if err := os.Rename(tempPath, cfg.Path); err != nil {
		removeStoreFiles(tempPath)
		return nil, fmt.Errorf("while moving store into place: %w", err)
	}
	removeStoreFiles(tempPath)

	result := &Result{Manifest: manifest, Duration: time.Since(started)}
	logger.Info("ingest: done",
		"path", cfg.Path,
		"images", manifest.Total,
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// removeStoreFiles deletes a store file and its SQLite side files.
func removeStoreFiles(path string) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(path + suffix)
	}
}
