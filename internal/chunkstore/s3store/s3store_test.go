package s3store

import (
	"testing"

	"github.com/maidsafe-archive/selfencrypt-go/internal/chunkstore"
)

func TestObjectKeyUsesHexPostHashAndPrefix(t *testing.T) {
	s := &Store{bucket: "chunks", prefix: "selfencrypt/"}
	var key [chunkstore.KeySize]byte
	key[0] = 0xAB
	key[chunkstore.KeySize-1] = 0xCD

	got := s.objectKey(key)
	if got[:len("selfencrypt/ab")] != "selfencrypt/ab" {
		t.Fatalf("expected key to start with selfencrypt/ab, got %q", got)
	}
	if got[len(got)-2:] != "cd" {
		t.Fatalf("expected key to end with cd, got %q", got)
	}
}

func TestObjectKeyNoPrefix(t *testing.T) {
	s := &Store{bucket: "chunks"}
	var key [chunkstore.KeySize]byte
	got := s.objectKey(key)
	if len(got) != chunkstore.KeySize*2 {
		t.Fatalf("expected %d hex chars, got %d (%q)", chunkstore.KeySize*2, len(got), got)
	}
}
