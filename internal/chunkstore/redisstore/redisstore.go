// Package redisstore implements chunkstore.Store on top of Redis, useful as
// a low-latency cache tier in front of a colder backend such as s3store.
package redisstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
)

// Store is a chunkstore.Store backed by a single Redis key namespace.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an existing *redis.Client. keyPrefix namespaces chunk keys so a
// chunk store can share a Redis instance with other data.
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) redisKey(key [chunkstore.KeySize]byte) string {
	return s.prefix + hex.EncodeToString(key[:])
}

// Put implements chunkstore.Store. SETNX-then-compare gives the "same key +
// same blob is success, different blob is ErrAlreadyExists" idempotence
// contract without a round trip for the common (first-writer) case.
func (s *Store) Put(ctx context.Context, key [chunkstore.KeySize]byte, blob []byte) error {
	rk := s.redisKey(key)

	ok, err := s.client.SetNX(ctx, rk, blob, 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: setnx %s: %w", rk, err)
	}
	if ok {
		return nil
	}

	existing, err := s.client.Get(ctx, rk).Bytes()
	if err != nil {
		return fmt.Errorf("redisstore: get %s after setnx miss: %w", rk, err)
	}
	if string(existing) == string(blob) {
		return nil
	}
	return chunkstore.ErrAlreadyExists
}

// Get implements chunkstore.Store.
func (s *Store) Get(ctx context.Context, key [chunkstore.KeySize]byte) ([]byte, error) {
	rk := s.redisKey(key)
	blob, err := s.client.Get(ctx, rk).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, chunkstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", rk, err)
	}
	return blob, nil
}

// Delete implements chunkstore.Store.
func (s *Store) Delete(ctx context.Context, key [chunkstore.KeySize]byte) error {
	rk := s.redisKey(key)
	n, err := s.client.Del(ctx, rk).Result()
	if err != nil {
		return fmt.Errorf("redisstore: del %s: %w", rk, err)
	}
	if n == 0 {
		return chunkstore.ErrNotFound
	}
	return nil
}
