package datamap

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
)

func descriptor(preSize, postSize int64, seed byte) ChunkDescriptor {
	return ChunkDescriptor{
		PreHash:  hashengine.SumBytes([]byte{seed}),
		PreSize:  preSize,
		PostHash: hashengine.SumBytes([]byte{seed, 1}),
		PostSize: postSize,
	}
}

func TestValidateEmptyDataMap(t *testing.T) {
	d := &DataMap{VersionTag: VersionTag}
	if err := d.Validate(); err != nil {
		t.Fatalf("empty data map should validate: %v", err)
	}
}

func TestValidateRejectsOneOrTwoChunks(t *testing.T) {
	d := &DataMap{
		Chunks:    []ChunkDescriptor{descriptor(10, 10, 1), descriptor(5, 5, 2)},
		TotalSize: 15,
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for 2-chunk data map")
	}
}

func TestValidateThreeChunks(t *testing.T) {
	d := &DataMap{
		Chunks: []ChunkDescriptor{
			descriptor(100, 100, 1),
			descriptor(100, 100, 2),
			descriptor(40, 40, 3),
		},
		TotalSize: 240,
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("valid 3-chunk data map rejected: %v", err)
	}
}

func TestValidateRejectsMismatchedNominalSize(t *testing.T) {
	d := &DataMap{
		Chunks: []ChunkDescriptor{
			descriptor(100, 100, 1),
			descriptor(99, 99, 2), // not last, must match nominal
			descriptor(40, 40, 3),
		},
		TotalSize: 239,
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for mismatched non-last chunk size")
	}
}

func TestValidateRejectsOversizedLastChunk(t *testing.T) {
	d := &DataMap{
		Chunks: []ChunkDescriptor{
			descriptor(100, 100, 1),
			descriptor(100, 100, 2),
			descriptor(150, 150, 3), // last chunk must be <= nominal
		},
		TotalSize: 350,
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for oversized last chunk")
	}
}

func TestValidateRejectsTotalSizeMismatch(t *testing.T) {
	d := &DataMap{
		Chunks: []ChunkDescriptor{
			descriptor(100, 100, 1),
			descriptor(100, 100, 2),
			descriptor(40, 40, 3),
		},
		TotalSize: 999,
	}
	if err := d.Validate(); err == nil {
		t.Fatal("expected error for total size mismatch")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := &DataMap{
		Chunks: []ChunkDescriptor{
			descriptor(100, 100, 1),
			descriptor(100, 100, 2),
			descriptor(40, 40, 3),
		},
		ResidualContent: []byte("tail bytes"),
		TotalSize:       250,
		VersionTag:      VersionTag,
		FileHash:        hashengine.SumBytes([]byte("whole file")),
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var restored DataMap
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if restored.TotalSize != original.TotalSize {
		t.Errorf("TotalSize mismatch")
	}
	if restored.VersionTag != original.VersionTag {
		t.Errorf("VersionTag mismatch")
	}
	if !bytes.Equal(restored.ResidualContent, original.ResidualContent) {
		t.Errorf("ResidualContent mismatch")
	}
	if !bytes.Equal(restored.FileHash, original.FileHash) {
		t.Errorf("FileHash mismatch")
	}
	if len(restored.Chunks) != len(original.Chunks) {
		t.Fatalf("chunk count mismatch: %d != %d", len(restored.Chunks), len(original.Chunks))
	}
	for i := range original.Chunks {
		if !bytes.Equal(restored.Chunks[i].PreHash, original.Chunks[i].PreHash) {
			t.Errorf("chunk %d pre_hash mismatch", i)
		}
		if !bytes.Equal(restored.Chunks[i].PostHash, original.Chunks[i].PostHash) {
			t.Errorf("chunk %d post_hash mismatch", i)
		}
		if restored.Chunks[i].PreSize != original.Chunks[i].PreSize {
			t.Errorf("chunk %d pre_size mismatch", i)
		}
	}
}

func TestPreHashesOrder(t *testing.T) {
	d := &DataMap{Chunks: []ChunkDescriptor{descriptor(1, 1, 5), descriptor(1, 1, 6)}}
	hashes := d.PreHashes()
	if len(hashes) != 2 {
		t.Fatalf("expected 2 hashes, got %d", len(hashes))
	}
	if !bytes.Equal(hashes[0], d.Chunks[0].PreHash) {
		t.Error("order mismatch at index 0")
	}
}
