//go:build integration

package s3store

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
)

// TestPutGetDeleteAgainstRealMinIO exercises Store against a disposable
// MinIO container. Run with: go test -tags=integration ./internal/chunkstore/s3store/...
func TestPutGetDeleteAgainstRealMinIO(t *testing.T) {
	ctx := context.Background()

	container, err := minio.Run(ctx, "minio/minio:RELEASE.2024-01-16T16-07-38Z")
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate minio container: %v", err)
		}
	}()

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	store, err := New(ctx, Config{
		Bucket:    "selfencrypt-chunks",
		Region:    "us-east-1",
		Endpoint:  "http://" + endpoint,
		AccessKey: container.Username,
		SecretKey: container.Password,
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

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
