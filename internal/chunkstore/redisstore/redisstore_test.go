package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "selfencrypt:")
}

func key(b byte) [chunkstore.KeySize]byte {
	var k [chunkstore.KeySize]byte
	k[0] = b
	return k
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := key(1)

	if err := s.Put(ctx, k, []byte("ciphertext")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, k)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "ciphertext" {
		t.Fatalf("got %q", got)
	}
}

func TestPutIdempotentSameBlob(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := key(2)

	if err := s.Put(ctx, k, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, k, []byte("x")); err != nil {
		t.Fatalf("second identical Put should succeed: %v", err)
	}
}

func TestPutRejectsDifferentBlobSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := key(3)

	if err := s.Put(ctx, k, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, k, []byte("y")); err != chunkstore.ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.Get(ctx, key(9)); err != chunkstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTwiceIsNotFoundSecondTime(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	k := key(4)

	if err := s.Put(ctx, k, []byte("z")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, k); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if err := s.Delete(ctx, k); err != chunkstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second Delete, got %v", err)
	}
}
