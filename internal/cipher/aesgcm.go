package cipher

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// aesPrefix marks values produced by AESGCM. Bump the version if the
// layout after the prefix ever changes.
const aesPrefix = "enc:v1:"

// AESGCM encrypts credentials with AES-256-GCM. The 32-byte key is
// derived from the master key material via SHA-256, so any non-empty
// passphrase or raw key works as input.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds an AESGCM cipher from master key material.
func NewAESGCM(masterKey []byte) (*AESGCM, error) {
	if len(masterKey) == 0 {
		return nil, fmt.Errorf("cipher: master key is empty")
	}

	key := sha256.Sum256(masterKey)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: create AES block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: create GCM: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The nonce is
// prepended to the ciphertext before base64 encoding.
func (c *AESGCM) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("cipher: generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return aesPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Unprefixed, truncated, or
// tampered input fails with ErrMalformedCiphertext.
func (c *AESGCM) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if !strings.HasPrefix(ciphertext, aesPrefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformedCiphertext, aesPrefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, aesPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext shorter than nonce", ErrMalformedCiphertext)
	}

	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the AESGCM prefix.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, aesPrefix)
}
