// Package xorpad implements the fixed-length repeating XOR obfuscation stage
// applied between the stream cipher and the store. It is self-inverse and
// composes into a bounded-memory pipeline the same way the cipher stage
// does: a pure byte-in/byte-out transform with no dynamic dispatch.
package xorpad

import "fmt"

// Size is the fixed pad length mandated by the convergent keying scheme
// (see keyderiver): 144 bytes, assembled from three neighbouring pre-hashes.
const Size = 144

// Apply XORs in against pad, repeating the pad as needed, and returns a new
// slice of the same length as in. Calling Apply twice with the same pad is
// the identity transform, so the same function serves both pipeline
// directions.
func Apply(pad [Size]byte, in []byte) []byte {
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ pad[i%Size]
	}
	return out
}

// ApplyInPlace XORs src into dst (dst must be at least len(src) long),
// avoiding an allocation on the hot path used by the Engine's worker pool.
func ApplyInPlace(pad [Size]byte, dst, src []byte) error {
	if len(dst) < len(src) {
		return fmt.Errorf("xorpad: dst too small: %d < %d", len(dst), len(src))
	}
	for i := range src {
		dst[i] = src[i] ^ pad[i%Size]
	}
	return nil
}
