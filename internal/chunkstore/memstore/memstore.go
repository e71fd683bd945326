// Package memstore is an in-memory ChunkStore, used as the reference
// backend for tests and as the default for the CLI when no networked
// backend is configured.
package memstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
)

// Store is a goroutine-safe in-memory chunkstore.Store.
type Store struct {
	mu   sync.RWMutex
	data map[[chunkstore.KeySize]byte][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[[chunkstore.KeySize]byte][]byte)}
}

// Put implements chunkstore.Store.
func (s *Store) Put(_ context.Context, key [chunkstore.KeySize]byte, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[key]; ok {
		if bytes.Equal(existing, blob) {
			return nil
		}
		return chunkstore.ErrAlreadyExists
	}

	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.data[key] = cp
	return nil
}

// Get implements chunkstore.Store.
func (s *Store) Get(_ context.Context, key [chunkstore.KeySize]byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.data[key]
	if !ok {
		return nil, chunkstore.ErrNotFound
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, nil
}

// Delete implements chunkstore.Store.
func (s *Store) Delete(_ context.Context, key [chunkstore.KeySize]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return chunkstore.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// Len returns the number of blobs currently stored, for test assertions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
