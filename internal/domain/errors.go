package domain

import "errors"

var (
	// ErrOutOfRange is returned when an identifier cannot be encoded as a key.
	ErrOutOfRange = errors.New("image id out of range")

	// ErrMalformedKey is returned when a storage key is not a fixed-width
	// decimal string.
	ErrMalformedKey = errors.New("malformed storage key")

	// ErrSizeMismatch is returned when image bytes do not have the expected
	// length. Stored values with this problem are corrupt.
	ErrSizeMismatch = errors.New("image size mismatch")

	// ErrNotFound is returned when no image is stored under a key.
	ErrNotFound = errors.New("image not found")

	// ErrEmptyRequest is returned when a sprite is requested for no images.
	ErrEmptyRequest = errors.New("empty sprite request")

	// ErrCapacityExceeded is returned when the store reached its configured
	// maximum size. It is not retryable: the store must be recreated with a
	// larger size.
	ErrCapacityExceeded = errors.New("image store capacity exceeded")

	// ErrEncode is returned when PNG encoding fails.
	ErrEncode = errors.New("image encoding failed")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("image store closed")

	// ErrReadOnly is returned when writing to a store opened read-only.
	ErrReadOnly = errors.New("image store is read-only")

	// ErrTxDone is returned when using a committed or aborted transaction.
	ErrTxDone = errors.New("write transaction already finished")

	// ErrTruncatedBatch is returned when a batch ends in the middle of a record.
	ErrTruncatedBatch = errors.New("truncated batch")
)
