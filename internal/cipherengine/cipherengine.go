// Package cipherengine implements the AES-256-CFB streaming cipher stage of
// the encryption pipeline. It performs no padding and no authentication; the
// pipeline relies on hash comparison (see hashengine) for integrity instead.
package cipherengine

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// KeySize and IVSize are the fixed widths required by the convergent keying
// scheme (see keyderiver); CFB mode needs an IV the width of the AES block.
const (
	KeySize = 32
	IVSize  = aes.BlockSize // 16
)

// Encrypt applies AES-256-CFB to plaintext using key and iv, returning a
// ciphertext of identical length. No padding is performed.
func Encrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, nil
}

// Decrypt is the exact inverse of Encrypt. CFB's feedback register is fed
// from ciphertext in both directions, but the encrypter and decrypter
// Streams differ in how they obtain that ciphertext for the next block, so
// the decrypter must be used here rather than reusing the encrypter.
func Decrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := newBlock(key, iv)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	return out, nil
}

func newBlock(key, iv []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipherengine: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("cipherengine: iv must be %d bytes, got %d", IVSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipherengine: %w", err)
	}
	return block, nil
}
