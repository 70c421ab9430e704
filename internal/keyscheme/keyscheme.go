// Package keyscheme maps image identifiers to fixed-width store keys.
//
// Keys are 8-digit zero-padded decimal strings, so byte order of keys and
// numeric order of identifiers agree over the whole valid range.
package keyscheme

import (
	"fmt"
	"strconv"

	"github.com/lewtec/imagesprite/internal/domain"
)

const (
	// Width is the number of digits in a key.
	Width = 8

	// MaxID is the largest identifier that can be encoded.
	MaxID = 99_999_999
)

// Encode returns the storage key of id.
func Encode(id domain.ImageID) (string, error) {
	if id < 0 || id > MaxID {
		return "", fmt.Errorf("while encoding key for id %d: %w", id, domain.ErrOutOfRange)
	}
	var buf [Width]byte
	for i := Width - 1; i >= 0; i-- {
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[:]), nil
}

// MustEncode is like Encode but panics on an out of range id.
func MustEncode(id domain.ImageID) string {
	key, err := Encode(id)
	if err != nil {
		panic(err)
	}
	return key
}

// Decode parses a storage key back into its identifier.
func Decode(key string) (domain.ImageID, error) {
	if len(key) != Width {
		return 0, fmt.Errorf("while decoding key %q: %w", key, domain.ErrMalformedKey)
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '0' || key[i] > '9' {
			return 0, fmt.Errorf("while decoding key %q: %w", key, domain.ErrMalformedKey)
		}
	}
	id, err := strconv.Atoi(key)
	if err != nil {
		return 0, fmt.Errorf("while decoding key %q: %w", key, domain.ErrMalformedKey)
	}
	return id, nil
}
