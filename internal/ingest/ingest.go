// Package ingest loads batched channel-first image data into an image store
// under sequential identifiers.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/imagecodec"
	"github.com/lewtec/imagesprite/internal/imagestore"
	"github.com/lewtec/imagesprite/internal/keyscheme"
)

// Ingestor writes batches into a store. Identifiers start at 0 and follow
// the order of the sources, so the same sources in another order produce a
// different mapping.
type Ingestor struct {
	Format  Format
	Workers int
	Logger  *slog.Logger
}

func (in *Ingestor) logger() *slog.Logger {
	if in.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return in.Logger
}

func (in *Ingestor) workers() int {
	if in.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return in.Workers
}

// Ingest writes every image of sources into store, one write transaction per
// batch. A failing batch is aborted as a whole; batches committed before it
// stay in place. The returned manifest describes the committed batches and
// is also stored with them.
func (in *Ingestor) Ingest(ctx context.Context, store *imagestore.Store, sources []BatchSource) (*domain.IngestManifest, error) {
	logger := in.logger()
	manifest := &domain.IngestManifest{IngestedAt: time.Now().UTC()}
	nextID := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return manifest, err
		}
		pixels, err := in.readBatch(src)
		if err != nil {
			return manifest, err
		}
		count := len(pixels) / domain.ImageSize
		if nextID+count-1 > keyscheme.MaxID {
			return manifest, fmt.Errorf("while ingesting batch %s: %d images do not fit after id %d: %w",
				src.Name(), count, nextID, domain.ErrOutOfRange)
		}

		batch := domain.IngestBatch{Name: src.Name(), FirstID: nextID, Count: count}
		next := *manifest
		next.Batches = append(append([]domain.IngestBatch(nil), manifest.Batches...), batch)
		next.Total = manifest.Total + count

		if err := in.writeBatch(ctx, store, pixels, nextID, &next); err != nil {
			logger.Error("ingest: batch aborted", "batch", src.Name(), "error", err)
			return manifest, fmt.Errorf("while ingesting batch %s: %w", src.Name(), err)
		}
		*manifest = next
		nextID += count
		logger.Info("ingest: batch committed",
			"batch", src.Name(),
			"first_id", batch.FirstID,
			"count", count,
			"total", manifest.Total,
		)
	}
	return manifest, nil
}

// readBatch reads src and returns its images transposed to channel-last
// order, concatenated.
func (in *Ingestor) readBatch(src BatchSource) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("while reading batch %s: %w", src.Name(), err)
	}

	recordSize := in.Format.RecordSize()
	if len(data)%recordSize != 0 {
		return nil, fmt.Errorf("while reading batch %s: %d bytes is not a multiple of %d: %w",
			src.Name(), len(data), recordSize, domain.ErrTruncatedBatch)
	}
	count := len(data) / recordSize
	out := make([]byte, count*domain.ImageSize)

	header := in.Format.headerSize()
	chunk := (count + in.workers() - 1) / in.workers()
	var g errgroup.Group
	g.SetLimit(in.workers())
	for start := 0; start < count; start += chunk {
		end := min(start+chunk, count)
		g.Go(func() error {
			for i := start; i < end; i++ {
				rec := data[i*recordSize+header : (i+1)*recordSize]
				dst := out[i*domain.ImageSize : (i+1)*domain.ImageSize]
				err := imagecodec.PlanarToInterleaved(dst, rec,
					domain.ImageWidth, domain.ImageHeight, domain.ImageChannels)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("while transposing batch %s: %w", src.Name(), err)
	}
	return out, nil
}

// writeBatch stores pixels under ids firstID... together with manifest in a
// single transaction.
func (in *Ingestor) writeBatch(ctx context.Context, store *imagestore.Store, pixels []byte, firstID domain.ImageID, manifest *domain.IngestManifest) error {
	txn, err := store.BeginWrite(ctx)
	if err != nil {
		return err
	}
	for off, id := 0, firstID; off < len(pixels); off, id = off+domain.ImageSize, id+1 {
		err := txn.Put(ctx, keyscheme.MustEncode(id), pixels[off:off+domain.ImageSize])
		if err != nil {
			txn.Abort()
			return err
		}
	}
	if err := txn.PutManifest(ctx, manifest); err != nil {
		txn.Abort()
		return err
	}
	return txn.Commit()
}
