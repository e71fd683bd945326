// Package hashengine wraps SHA-512 digesting for chunk and stream hashing.
package hashengine

import (
	"crypto/sha512"
	"hash"
	"io"
)

// Size is the length in bytes of a digest produced by this package.
const Size = sha512.Size

// Sum returns the SHA-512 digest of data. Safe for concurrent use across
// independent calls, since each call gets its own hash.Hash.
func Sum(data []byte) [Size]byte {
	return sha512.Sum512(data)
}

// SumBytes is a convenience wrapper returning a slice instead of an array,
// for call sites that store digests as []byte (e.g. ChunkDescriptor fields).
func SumBytes(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// StreamHasher incrementally hashes a plaintext stream so the caller can
// derive DataMap.FileHash without buffering the whole stream twice.
type StreamHasher struct {
	h hash.Hash
}

// NewStreamHasher creates a StreamHasher ready to accept Write calls.
func NewStreamHasher() *StreamHasher {
	return &StreamHasher{h: sha512.New()}
}

// Write implements io.Writer, feeding bytes into the running digest.
func (s *StreamHasher) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum returns the digest of all bytes written so far without resetting it.
func (s *StreamHasher) Sum() []byte {
	return s.h.Sum(nil)
}

var _ io.Writer = (*StreamHasher)(nil)
