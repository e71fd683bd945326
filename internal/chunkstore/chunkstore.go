// Package chunkstore defines the opaque content-addressed blob store
// contract the core requires (spec §4.D) and the sentinel errors its
// implementations return. The core makes no assumption about locality,
// replication, or durability beyond Put/Get/Delete.
package chunkstore

import (
	"context"
	"errors"

	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
)

// KeySize is the width of a ChunkStore key: the SHA-512 post-hash of the
// encrypted chunk.
const KeySize = hashengine.Size

// ErrAlreadyExists is returned by Put when the same key already holds a
// different blob; Put is otherwise idempotent for identical (key, blob)
// pairs (same key + same blob is success, per spec §4.D).
var ErrAlreadyExists = errors.New("chunkstore: key already exists with different content")

// ErrNotFound is returned by Get and Delete when the key is absent.
var ErrNotFound = errors.New("chunkstore: key not found")

// Store is the sole external I/O boundary of the core. Implementations must
// be safe for concurrent invocation of all three methods from multiple
// goroutines; the core provides no synchronisation of its own beyond
// ensuring at most one Put is in flight per key from a single Engine.
type Store interface {
	// Put writes blob under key. Idempotent: putting the same key with the
	// same blob twice succeeds both times. Putting the same key with a
	// different blob returns ErrAlreadyExists.
	Put(ctx context.Context, key [KeySize]byte, blob []byte) error

	// Get returns the blob stored under key, or ErrNotFound.
	Get(ctx context.Context, key [KeySize]byte) ([]byte, error)

	// Delete removes key. Returns ErrNotFound if the key was already absent.
	Delete(ctx context.Context, key [KeySize]byte) error
}
