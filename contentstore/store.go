// Package contentstore hosts dataset payloads in a content-addressed blob
// store. Hashes are opaque identifiers to the settlement protocol and are
// never reinterpreted.
package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	// ErrNotFound signals no content exists for the given hash.
	ErrNotFound = errors.New("contentstore: content not found")
	// ErrEmptyContent rejects zero-length payloads before any side effect.
	ErrEmptyContent = errors.New("contentstore: empty content")
)

// Store is a content-addressed blob store. Put is idempotent: storing the
// same bytes twice yields the same hash and is safe.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
}

// HashBytes derives the content-addressed identifier for a payload.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
