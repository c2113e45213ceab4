package badger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/storage"
)

func TestKVStoreBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	if err := stores.KV.Set(ctx, []byte("alpha"), []byte("one")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	value, err := stores.KV.Get(ctx, []byte("alpha"))
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if string(value) != "one" {
		t.Fatalf("Expected 'one', got %q", value)
	}

	_, err = stores.KV.Get(ctx, []byte("missing"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := stores.KV.Delete(ctx, []byte("alpha")); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := stores.KV.Get(ctx, []byte("alpha")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing key is not an error
	if err := stores.KV.Delete(ctx, []byte("missing")); err != nil {
		t.Fatalf("Delete of missing key failed: %v", err)
	}
}

func TestKVStoreScan(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	entries := map[string]string{
		"chunk:1": "a",
		"chunk:2": "b",
		"doc:1":   "c",
	}
	for k, v := range entries {
		if err := stores.KV.Set(ctx, []byte(k), []byte(v)); err != nil {
			t.Fatalf("Failed to set %s: %v", k, err)
		}
	}

	pairs, err := stores.KV.Scan(ctx, []byte("chunk:"))
	if err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %d", len(pairs))
	}
	if string(pairs[0].Key) != "chunk:1" || string(pairs[1].Key) != "chunk:2" {
		t.Fatalf("Scan keys out of order: %q, %q", pairs[0].Key, pairs[1].Key)
	}
}

func TestErrorClassification(t *testing.T) {
	backendErr := errors.New("disk failure")
	err := classifyErr(backendErr)
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("Expected ErrStorageUnavailable, got %v", err)
	}
	if !errors.Is(err, backendErr) {
		t.Fatalf("Expected original error preserved, got %v", err)
	}

	// Errors already carrying a classification pass through unchanged
	if classifyErr(nil) != nil {
		t.Fatal("Expected nil to pass through")
	}
	wrapped := fmt.Errorf("%w: missing node", storage.ErrNotFound)
	for _, sentinel := range []error{
		storage.ErrNotFound,
		storage.ErrConstraintViolation,
		storage.ErrSerializationFailed,
		storage.ErrStorageUnavailable,
		wrapped,
	} {
		if got := classifyErr(sentinel); got != sentinel {
			t.Fatalf("Expected %v to pass through, got %v", sentinel, got)
		}
	}
}

func TestWriteRetryStopsWhenContextDone(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = stores.Backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		return badger.ErrConflict
	})
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("Expected ErrStorageUnavailable, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context error joined in, got %v", err)
	}
}
