// Package cipher encrypts and decrypts individual credential strings
// before they reach durable storage.
//
// DESIGN: Two backends:
//   - AESGCM: local AES-256-GCM with a master key from env, the OS
//     keyring, or an interactive passphrase
//   - KMSCipher: delegates to AWS KMS for deployments where the master
//     key must not live on the machine
//
// Ciphertexts are self-identifying via a version prefix so a foreign or
// truncated blob is rejected instead of silently decrypting to garbage.
package cipher

import (
	"context"
	"errors"
)

// Cipher is the symmetric credential cipher consumed by the settings
// service. Decrypt must fail on malformed or foreign input.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// ErrMalformedCiphertext is returned by Decrypt when the input is not a
// ciphertext this backend produced.
var ErrMalformedCiphertext = errors.New("cipher: malformed ciphertext")
