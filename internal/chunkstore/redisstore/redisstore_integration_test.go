//go:build integration

package redisstore

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
)

// TestPutGetDeleteAgainstRealRedis exercises Store against a disposable
// Redis container. Run with: go test -tags=integration ./internal/chunkstore/redisstore/...
func TestPutGetDeleteAgainstRealRedis(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	opts, err := redis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	store := New(redis.NewClient(opts), "selfencrypt-it:")

	var key [chunkstore.KeySize]byte
	copy(key[:], hashengine.SumBytes([]byte("integration-chunk")))
	blob := []byte("ciphertext bytes for a single chunk")

	if err := store.Put(ctx, key, blob); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("round trip mismatch")
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); err != chunkstore.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
