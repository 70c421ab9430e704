package domain

import (
	"context"
	"time"
)

// Geometry of every stored image. The store format depends on these values,
// changing them invalidates existing stores.
const (
	ImageWidth    = 32
	ImageHeight   = 32
	ImageChannels = 3

	// ImageSize is the exact byte length of a stored image value.
	ImageSize = ImageWidth * ImageHeight * ImageChannels

	// PlaneSize is the length of a single colour plane in channel-first input.
	PlaneSize = ImageWidth * ImageHeight
)

// ImageID addresses one stored image. Ids are dense, start at 0 and follow
// ingestion order.
type ImageID = int

// ImageReader is the read side of an image store. Implementations must be
// safe for concurrent use.
type ImageReader interface {
	// Get returns the raw value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}

// ImageWriter is a single write transaction against an image store.
type ImageWriter interface {
	Put(ctx context.Context, key string, value []byte) error
	Commit() error
	Abort() error
}

// IngestManifest records how a store was populated. Batch order determines
// identifier assignment, so it is kept next to the images.
type IngestManifest struct {
	Batches    []IngestBatch `cbor:"1,keyasint"`
	Total      int           `cbor:"2,keyasint"`
	IngestedAt time.Time     `cbor:"3,keyasint"`
}

// IngestBatch is one entry of an IngestManifest.
type IngestBatch struct {
	Name    string  `cbor:"1,keyasint"`
	FirstID ImageID `cbor:"2,keyasint"`
	Count   int     `cbor:"3,keyasint"`
}
