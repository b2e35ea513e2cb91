// Package kvstore provides the key-value storage the settings service
// persists into.
//
// DESIGN: The store is a flat, JSON-valued map with no transactions, the
// same shape the browser extension sees from its host storage. Two
// implementations exist:
//   - SQLiteStore: durable, one table, used by the daemon
//   - MemoryStore: volatile, used by tests and --ephemeral runs
package kvstore

import (
	"context"
	"encoding/json"
)

// Store is an asynchronous map from string keys to raw JSON values.
// All methods may fail with a transport error; none of them are
// transactional across keys.
type Store interface {
	// Get returns the subset of keys that exist. Missing keys are simply
	// absent from the result map, not an error.
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)

	// Set upserts every entry in values.
	Set(ctx context.Context, values map[string]json.RawMessage) error

	// Remove deletes the given keys. Deleting a missing key is a no-op.
	Remove(ctx context.Context, keys []string) error

	// Clear deletes every key in the store.
	Clear(ctx context.Context) error
}
