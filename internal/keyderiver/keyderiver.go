// Package keyderiver derives the per-chunk (key, iv, pad) triple from the
// pre-hashes of neighbouring chunks. This byte layout is a wire-compatibility
// contract: any implementation must reproduce it exactly, or existing chunk
// stores become unreadable.
package keyderiver

import (
	"fmt"

	"github.com/maidsafe-archive/selfencrypt-go/internal/cipherengine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/hashengine"
	"github.com/maidsafe-archive/selfencrypt-go/internal/xorpad"
)

// Material holds the derived symmetric material for one chunk.
type Material struct {
	Key [cipherengine.KeySize]byte
	IV  [cipherengine.IVSize]byte
	Pad [xorpad.Size]byte
}

// Derive computes the Material for chunk index i given the pre-hashes of
// every chunk in the data map, in stream order. preHashes[j] must be exactly
// hashengine.Size bytes for every j.
//
// Let H(j) = preHashes[(j mod n + n) mod n] (wrap-around). Let A = H(i-1),
// B = H(i), C = H(i-2). Then:
//
//	key         = A[0:32]
//	iv          = A[32:48]
//	pad[0:64]   = A[0:64]
//	pad[64:128] = B[0:64]
//	pad[128:144]= C[48:64]
func Derive(preHashes [][]byte, i int) (Material, error) {
	var m Material
	n := len(preHashes)
	if n == 0 {
		return m, fmt.Errorf("keyderiver: no chunks")
	}
	for j, h := range preHashes {
		if len(h) != hashengine.Size {
			return m, fmt.Errorf("keyderiver: pre-hash %d has length %d, want %d", j, len(h), hashengine.Size)
		}
	}

	a := preHashes[wrap(i-1, n)]
	b := preHashes[wrap(i, n)]
	c := preHashes[wrap(i-2, n)]

	copy(m.Key[:], a[0:32])
	copy(m.IV[:], a[32:48])
	copy(m.Pad[0:64], a[0:64])
	copy(m.Pad[64:128], b[0:64])
	copy(m.Pad[128:144], c[48:64])

	return m, nil
}

// wrap returns ((j % n) + n) % n, the non-negative residue of j modulo n.
func wrap(j, n int) int {
	r := j % n
	if r < 0 {
		r += n
	}
	return r
}
