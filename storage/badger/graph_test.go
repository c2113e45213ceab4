package badger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

func TestGraphNodeBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	entity := &core.Entity{
		Name:           "Eiffel Tower",
		Type:           "building",
		Description:    "A landmark in Paris.",
		SourceChunkIds: []core.ID{1, 2},
	}
	if err := stores.Graph.UpsertNode(ctx, entity); err != nil {
		t.Fatalf("Failed to upsert node: %v", err)
	}

	// Lookup is by canonical name regardless of input casing
	got, err := stores.Graph.GetNode(ctx, "  EIFFEL   tower ")
	if err != nil {
		t.Fatalf("Failed to get node: %v", err)
	}
	if got.Name != "eiffel tower" {
		t.Fatalf("Expected canonical name, got %q", got.Name)
	}
	if got.Description != "A landmark in Paris." {
		t.Fatalf("Unexpected description %q", got.Description)
	}

	_, err = stores.Graph.GetNode(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestGraphUpsertNode_MergeSemantics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	if err := stores.Graph.UpsertNode(ctx, &core.Entity{
		Name:           "paris",
		Type:           "place",
		Description:    "first",
		SourceChunkIds: []core.ID{1, 2},
	}); err != nil {
		t.Fatalf("Failed to upsert node: %v", err)
	}

	if err := stores.Graph.UpsertNode(ctx, &core.Entity{
		Name:           "Paris",
		Type:           "place",
		Description:    "second",
		SourceChunkIds: []core.ID{2, 3},
	}); err != nil {
		t.Fatalf("Failed to upsert node: %v", err)
	}

	got, err := stores.Graph.GetNode(ctx, "paris")
	if err != nil {
		t.Fatalf("Failed to get node: %v", err)
	}

	// Scalars are last-writer-wins, chunk IDs are unioned
	if got.Description != "second" {
		t.Fatalf("Expected last description, got %q", got.Description)
	}
	if len(got.SourceChunkIds) != 3 {
		t.Fatalf("Expected 3 chunk IDs after union, got %v", got.SourceChunkIds)
	}
}

func TestGraphEdgeBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	for _, name := range []string{"paris", "eiffel tower"} {
		if err := stores.Graph.UpsertNode(ctx, &core.Entity{Name: name, Type: "x"}); err != nil {
			t.Fatalf("Failed to upsert node: %v", err)
		}
	}

	relation := &core.Relation{
		Source:         "Paris",
		Target:         "Eiffel Tower",
		Description:    "contains",
		Weight:         1.0,
		SourceChunkIds: []core.ID{7},
	}
	if err := stores.Graph.UpsertEdge(ctx, relation); err != nil {
		t.Fatalf("Failed to upsert edge: %v", err)
	}

	// Edge is found regardless of endpoint order
	got, err := stores.Graph.GetEdge(ctx, "eiffel tower", "paris")
	if err != nil {
		t.Fatalf("Failed to get edge: %v", err)
	}
	if got.Description != "contains" {
		t.Fatalf("Unexpected description %q", got.Description)
	}

	degree, err := stores.Graph.NodeDegree(ctx, "paris")
	if err != nil {
		t.Fatalf("Failed to get degree: %v", err)
	}
	if degree != 1 {
		t.Fatalf("Expected degree 1, got %d", degree)
	}

	if err := stores.Graph.UpsertEdge(ctx, &core.Relation{Source: "paris", Target: "paris"}); !errors.Is(err, storage.ErrConstraintViolation) {
		t.Fatalf("Expected constraint violation for self relation, got %v", err)
	}
}

func TestGraphGetNeighbors(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	// a - b - c - d chain
	for _, name := range []string{"a", "b", "c", "d"} {
		if err := stores.Graph.UpsertNode(ctx, &core.Entity{Name: name, Type: "x"}); err != nil {
			t.Fatalf("Failed to upsert node: %v", err)
		}
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		if err := stores.Graph.UpsertEdge(ctx, &core.Relation{Source: pair[0], Target: pair[1]}); err != nil {
			t.Fatalf("Failed to upsert edge: %v", err)
		}
	}

	entities, relations, err := stores.Graph.GetNeighbors(ctx, "a", 2, 100)
	if err != nil {
		t.Fatalf("Failed to get neighbors: %v", err)
	}
	if len(entities) != 3 { // a, b, c
		t.Fatalf("Expected 3 entities at depth 2, got %d", len(entities))
	}
	if len(relations) != 2 { // a-b, b-c
		t.Fatalf("Expected 2 relations at depth 2, got %d", len(relations))
	}

	// maxNodes caps the traversal
	entities, _, err = stores.Graph.GetNeighbors(ctx, "a", 3, 2)
	if err != nil {
		t.Fatalf("Failed to get neighbors: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("Expected 2 entities with maxNodes=2, got %d", len(entities))
	}
}

func TestGraphDeleteNode(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		if err := stores.Graph.UpsertNode(ctx, &core.Entity{Name: name, Type: "x"}); err != nil {
			t.Fatalf("Failed to upsert node: %v", err)
		}
	}
	if err := stores.Graph.UpsertEdge(ctx, &core.Relation{Source: "a", Target: "b"}); err != nil {
		t.Fatalf("Failed to upsert edge: %v", err)
	}

	if err := stores.Graph.DeleteNode(ctx, "a"); err != nil {
		t.Fatalf("Failed to delete node: %v", err)
	}

	if _, err := stores.Graph.GetNode(ctx, "a"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted node, got %v", err)
	}
	if _, err := stores.Graph.GetEdge(ctx, "a", "b"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for deleted edge, got %v", err)
	}
	degree, err := stores.Graph.NodeDegree(ctx, "b")
	if err != nil {
		t.Fatalf("Failed to get degree: %v", err)
	}
	if degree != 0 {
		t.Fatalf("Expected degree 0 after delete, got %d", degree)
	}
}

func TestGraphConcurrentUpserts(t *testing.T) {
	stores, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer stores.Close()

	ctx := context.Background()

	// Enough writers to keep the same key under sustained transaction
	// conflict; every upsert must still land.
	const workers = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entity := &core.Entity{
				Name:           "shared",
				Type:           "x",
				Description:    "desc",
				SourceChunkIds: []core.ID{core.ID(i + 1)},
			}
			if err := stores.Graph.UpsertNode(ctx, entity); err != nil {
				t.Errorf("Upsert failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := stores.Graph.GetNode(ctx, "shared")
	if err != nil {
		t.Fatalf("Failed to get node: %v", err)
	}
	if len(got.SourceChunkIds) != workers {
		t.Fatalf("Expected %d chunk IDs after concurrent union, got %d", workers, len(got.SourceChunkIds))
	}
}
