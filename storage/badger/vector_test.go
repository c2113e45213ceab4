package badger

import (
	"context"
	"testing"

	"github.com/poiesic/graphrag/core"
)

func TestVectorStoreQueryRanking(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	// Closest, close, orthogonal
	entries := []struct {
		id     core.ID
		vector []float32
	}{
		{id: 1, vector: []float32{1, 0, 0}},
		{id: 2, vector: []float32{0.9, 0.1, 0}},
		{id: 3, vector: []float32{0, 1, 0}},
	}
	for _, e := range entries {
		if err := stores.Vectors.Upsert(ctx, e.id, e.vector, []byte("payload")); err != nil {
			t.Fatalf("Failed to upsert %d: %v", e.id, err)
		}
	}

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches above threshold, got %d", len(matches))
	}
	if matches[0].Id != 1 || matches[1].Id != 2 {
		t.Fatalf("Matches not ranked by similarity: %v", matches)
	}
	if string(matches[0].Payload) != "payload" {
		t.Fatalf("Payload not round-tripped: %q", matches[0].Payload)
	}
}

func TestVectorStoreTopK(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		v := []float32{1, float32(i) * 0.01}
		if err := stores.Vectors.Upsert(ctx, core.ID(i), v, nil); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0}, 3, 0)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Expected topK=3 matches, got %d", len(matches))
	}
}

func TestVectorStoreDelete(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	if err := stores.Vectors.Upsert(ctx, 1, []float32{1, 0}, nil); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := stores.Vectors.Delete(ctx, 1); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	matches, err := stores.Vectors.Query(ctx, []float32{1, 0}, 10, 0)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("Expected no matches after delete, got %d", len(matches))
	}
}
