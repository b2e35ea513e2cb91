package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/deskpilot/settings-gateway/internal/kvstore"
)

// fakeCipher seals values with a recognizable prefix. Deterministic, so
// tests can corrupt or pre-seed ciphertext by hand.
type fakeCipher struct {
	encryptErr error
	decryptErr error
}

const fakeSealPrefix = "sealed:"

func (f *fakeCipher) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if f.encryptErr != nil {
		return "", f.encryptErr
	}
	return fakeSealPrefix + plaintext, nil
}

func (f *fakeCipher) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if f.decryptErr != nil {
		return "", f.decryptErr
	}
	if !strings.HasPrefix(ciphertext, fakeSealPrefix) {
		return "", errors.New("malformed ciphertext")
	}
	return strings.TrimPrefix(ciphertext, fakeSealPrefix), nil
}

// countingStore counts reads so cache behavior is observable.
type countingStore struct {
	kvstore.Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	c.gets++
	return c.Store.Get(ctx, keys)
}

// erringStore fails selected operations with a transport-style error.
type erringStore struct {
	kvstore.Store
	failGet   bool
	failSet   bool
	failClear bool
}

var errTransport = errors.New("store unavailable")

func (e *erringStore) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	if e.failGet {
		return nil, errTransport
	}
	return e.Store.Get(ctx, keys)
}

func (e *erringStore) Set(ctx context.Context, values map[string]json.RawMessage) error {
	if e.failSet {
		return errTransport
	}
	return e.Store.Set(ctx, values)
}

func (e *erringStore) Clear(ctx context.Context) error {
	if e.failClear {
		return errTransport
	}
	return e.Store.Clear(ctx)
}

func ptr[T any](v T) *T {
	return &v
}
