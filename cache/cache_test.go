package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/graphrag/storage"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	c, err := New(stores.KV)
	require.NoError(t, err)
	return c
}

func TestKey_ContentAddressed(t *testing.T) {
	k1 := Key("gpt-4o-mini", "prompt", "0.0")
	k2 := Key("gpt-4o-mini", "prompt", "0.0")
	assert.Equal(t, k1, k2)

	assert.NotEqual(t, k1, Key("gpt-4o-mini", "prompt", "0.7"))
	assert.NotEqual(t, k1, Key("other-model", "prompt", "0.0"))

	// Parameter boundaries matter: ("ab","c") != ("a","bc")
	assert.NotEqual(t, Key("m", "ab", "c"), Key("m", "a", "bc"))
}

func TestGetOrCompute_HitSkipsCompute(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	key := Key("model", "prompt")

	calls := 0
	compute := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("response"), nil
	}

	value, err := c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("response"), value)
	assert.Equal(t, 1, calls)

	value, err = c.GetOrCompute(ctx, key, compute)
	require.NoError(t, err)
	assert.Equal(t, []byte("response"), value)
	assert.Equal(t, 1, calls, "second lookup must not invoke compute")
}

func TestGetOrCompute_ComputeError(t *testing.T) {
	c := newTestCache(t)

	wantErr := errors.New("provider down")
	_, err := c.GetOrCompute(context.Background(), Key("m", "p"), func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

// failingKV always fails writes, to verify cache writes are best-effort.
type failingKV struct {
	storage.KVStore
}

func (f *failingKV) Get(ctx context.Context, key []byte) ([]byte, error) {
	return nil, storage.ErrNotFound
}

func (f *failingKV) Set(ctx context.Context, key, value []byte) error {
	return storage.ErrStorageUnavailable
}

func TestGetOrCompute_StoreFailureNotFatal(t *testing.T) {
	c, err := New(&failingKV{})
	require.NoError(t, err)

	value, err := c.GetOrCompute(context.Background(), Key("m", "p"), func(ctx context.Context) ([]byte, error) {
		return []byte("computed"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("computed"), value)
}
