// Package content archives raw form bytes and computes the canonical digest
// used by duplicate detection. The registry persists only the returned handle
// and digest; content bytes never enter the relational schema.
package content

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Handle locates stored form content in the backing blob store.
type Handle string

func (h Handle) String() string { return string(h) }

// Store is interface-driven so an in-memory implementation can back tests and
// single-node deployments while the host swaps in object storage.
type Store interface {
	Put(ctx context.Context, data []byte) (Handle, error)
	Get(ctx context.Context, handle Handle) ([]byte, error)
}

// Hash computes the canonical content digest for duplicate detection:
// BLAKE2b-256 over the raw bytes, hex-encoded.
func Hash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
