// Package sprite tiles stored images into a single grid image.
package sprite

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lewtec/imagesprite/internal/domain"
	"github.com/lewtec/imagesprite/internal/imagecodec"
	"github.com/lewtec/imagesprite/internal/keyscheme"
)

// Columns is the fixed width of the sprite grid in tiles.
const Columns = 10

// DefaultFetchers bounds the concurrent store reads of one sprite build.
const DefaultFetchers = 8

// Grid is the layout of a sprite of Count tiles.
type Grid struct {
	Count   int
	Columns int
	Rows    int
}

// NewGrid computes the layout for n tiles.
func NewGrid(n int) Grid {
	return Grid{Count: n, Columns: Columns, Rows: (n + Columns - 1) / Columns}
}

// Size returns the sprite dimensions in pixels.
func (g Grid) Size() (width, height int) {
	return g.Columns * domain.ImageWidth, g.Rows * domain.ImageHeight
}

// Origin returns the pixel position of tile k.
func (g Grid) Origin(k int) (x, y int) {
	return (k % g.Columns) * domain.ImageWidth, (k / g.Columns) * domain.ImageHeight
}

// Compositor builds sprites from an image store.
type Compositor struct {
	store    domain.ImageReader
	fetchers int
	logger   *slog.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithFetchers sets how many images are read concurrently per sprite.
func WithFetchers(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.fetchers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompositor returns a compositor reading from store.
func NewCompositor(store domain.ImageReader, opts ...Option) *Compositor {
	c := &Compositor{
		store:    store,
		fetchers: DefaultFetchers,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose lays out the images of ids row by row on a black canvas. Cells
// after the last image stay black. Any image that cannot be read fails the
// whole sprite.
func (c *Compositor) Compose(ctx context.Context, ids []domain.ImageID) (*imagecodec.Raster, error) {
	if len(ids) == 0 {
		return nil, domain.ErrEmptyRequest
	}
	grid := NewGrid(len(ids))
	width, height := grid.Size()
	canvas := imagecodec.NewRaster(width, height, domain.ImageChannels)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchers)
	for k, id := range ids {
		g.Go(func() error {
			tile, err := c.fetch(ctx, id)
			if err != nil {
				return err
			}
			// tiles never overlap, so concurrent pastes touch disjoint bytes
			x, y := grid.Origin(k)
			return canvas.Paste(tile, x, y)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("sprite: compose failed", "count", len(ids), "error", err)
		return nil, err
	}
	return canvas, nil
}

func (c *Compositor) fetch(ctx context.Context, id domain.ImageID) (*imagecodec.Raster, error) {
	key, err := keyscheme.Encode(id)
	if err != nil {
		return nil, err
	}
	value, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("while fetching image %d: %w", id, err)
	}
	tile, err := imagecodec.FromStored(value)
	if err != nil {
		return nil, fmt.Errorf("while decoding image %d: %w", id, err)
	}
	return tile, nil
}

// Render composes ids and encodes the sprite as PNG.
func (c *Compositor) Render(ctx context.Context, ids []domain.ImageID) ([]byte, error) {
	canvas, err := c.Compose(ctx, ids)
	if err != nil {
		return nil, err
	}
	return imagecodec.PNG(canvas)
}
