// Package aescbc implements AES-256-CBC with PKCS#7 padding.
package aescbc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// IVSize is the CBC initialization vector length.
const IVSize = aes.BlockSize

var (
	ErrKeySize        = errors.New("aescbc: key must be 32 bytes")
	ErrIVSize         = errors.New("aescbc: iv must be 16 bytes")
	ErrCiphertextSize = errors.New("aescbc: ciphertext is not a positive multiple of the block size")
)

// Encrypt pads plaintext and encrypts it under key with a fresh random IV.
// The IV is always generated here; callers cannot supply one.
func Encrypt(plaintext, key []byte) (ciphertext, iv []byte, err error) {
	if len(key) != 32 {
		return nil, nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("aescbc: %w", err)
	}

	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("aescbc: generate iv: %w", err)
	}

	padded := pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, iv, nil
}

// Decrypt reverses Encrypt. Invalid padding is tolerated: the decrypted
// buffer is returned as-is so malformed stored data can still be repaired.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	if len(iv) != IVSize {
		return nil, ErrIVSize
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrCiphertextSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aescbc: %w", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte, size int) []byte {
	if len(b) == 0 {
		return b
	}
	n := int(b[len(b)-1])
	if n < 1 || n > size || n > len(b) {
		return b
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return b
		}
	}
	return b[:len(b)-n]
}
