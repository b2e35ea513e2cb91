package kvstore

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	err := store.Set(ctx, map[string]json.RawMessage{
		"settings": json.RawMessage(`{"sidebarWidth":420}`),
		"other":    json.RawMessage(`"x"`),
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, []string{"settings", "missing"})
	require.NoError(t, err)
	require.Contains(t, got, "settings")
	assert.NotContains(t, got, "missing")
	assert.JSONEq(t, `{"sidebarWidth":420}`, string(got["settings"]))
}

func TestSQLiteStoreUpsert(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"k": json.RawMessage(`1`)}))
	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"k": json.RawMessage(`2`)}))

	got, err := store.Get(ctx, []string{"k"})
	require.NoError(t, err)
	assert.JSONEq(t, `2`, string(got["k"]))
}

func TestSQLiteStoreRemoveAndClear(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{
		"a": json.RawMessage(`1`),
		"b": json.RawMessage(`2`),
	}))

	require.NoError(t, store.Remove(ctx, []string{"a", "never-existed"}))
	got, err := store.Get(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Get(ctx, []string{"b"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	store, path := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{"k": json.RawMessage(`"durable"`)}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, []string{"k"})
	require.NoError(t, err)
	assert.JSONEq(t, `"durable"`, string(got["k"]))
}

func TestSQLiteStoreEmptyKeySlices(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, store.Remove(ctx, nil))
	require.NoError(t, store.Set(ctx, nil))
}
