package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/mock"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) *storage.Stores {
	t.Helper()
	mem, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	return &storage.Stores{
		KV:        mem.KV,
		Vectors:   mem.Vectors,
		Graph:     mem.Graph,
		DocStatus: mem.DocStatus,
	}
}

func newTestMerger(t *testing.T, stores *storage.Stores, llm *mock.LLM, opts ...config.Option) *Merger {
	t.Helper()
	splitter, err := chunk.NewSplitter("gpt-4o-mini", 100, 10)
	require.NoError(t, err)

	cfgOpts := append([]config.Option{
		config.WithRetry(2, time.Millisecond),
		config.WithForceLLMSummaryOnMerge(3),
	}, opts...)
	cfg := config.New(cfgOpts...)

	merger, err := NewMerger(stores, llm, mock.NewEmbedder(), splitter, cfg)
	require.NoError(t, err)
	return merger
}

func TestMergeEntityCreatesCanonicalNode(t *testing.T) {
	stores := newTestStores(t)
	merger := newTestMerger(t, stores, mock.NewLLM())
	ctx := context.Background()

	chunkId := core.IDFromContent("chunk-1")
	entity, err := merger.MergeEntity(ctx, ai.EntityCandidate{
		Name:        "  Marie   CURIE ",
		Type:        "person",
		Description: "Discovered radium.",
	}, chunkId)
	require.NoError(t, err)

	assert.Equal(t, "marie curie", entity.Name)
	assert.Equal(t, 1, entity.Fragments)
	assert.Equal(t, []core.ID{chunkId}, entity.SourceChunkIds)
	assert.NotEmpty(t, entity.Vector)

	stored, err := stores.Graph.GetNode(ctx, "marie curie")
	require.NoError(t, err)
	assert.Equal(t, "person", stored.Type)
	assert.Equal(t, "Discovered radium.", stored.Description)
}

func TestMergeEntityIdempotent(t *testing.T) {
	stores := newTestStores(t)
	merger := newTestMerger(t, stores, mock.NewLLM())
	ctx := context.Background()

	candidate := ai.EntityCandidate{Name: "paris", Type: "location", Description: "Capital of France."}
	chunkId := core.IDFromContent("chunk-1")

	first, err := merger.MergeEntity(ctx, candidate, chunkId)
	require.NoError(t, err)
	second, err := merger.MergeEntity(ctx, candidate, chunkId)
	require.NoError(t, err)

	assert.Equal(t, first.Description, second.Description)
	assert.Equal(t, first.Fragments, second.Fragments)
	assert.Equal(t, first.SourceChunkIds, second.SourceChunkIds)
}

func TestMergeEntityCommutative(t *testing.T) {
	c1 := ai.EntityCandidate{Name: "rhine", Type: "location", Description: "River in Europe."}
	c2 := ai.EntityCandidate{Name: "Rhine", Type: "location", Description: "Flows into the North Sea."}
	id1 := core.IDFromContent("chunk-1")
	id2 := core.IDFromContent("chunk-2")

	merge := func(t *testing.T, first, second ai.EntityCandidate, firstId, secondId core.ID) *core.Entity {
		stores := newTestStores(t)
		merger := newTestMerger(t, stores, mock.NewLLM())
		ctx := context.Background()

		_, err := merger.MergeEntity(ctx, first, firstId)
		require.NoError(t, err)
		entity, err := merger.MergeEntity(ctx, second, secondId)
		require.NoError(t, err)
		return entity
	}

	forward := merge(t, c1, c2, id1, id2)
	backward := merge(t, c2, c1, id2, id1)

	assert.ElementsMatch(t,
		strings.Split(forward.Description, "\n"),
		strings.Split(backward.Description, "\n"))
	assert.ElementsMatch(t, forward.SourceChunkIds, backward.SourceChunkIds)
	assert.Equal(t, forward.Fragments, backward.Fragments)
}

func TestMergeThresholdTriggersSummarizationOnce(t *testing.T) {
	stores := newTestStores(t)
	llm := mock.NewLLM()
	llm.Response = "A physicist celebrated for her work on radioactivity."
	merger := newTestMerger(t, stores, llm) // threshold 3

	ctx := context.Background()
	for i, desc := range []string{
		"Won the Nobel Prize in Physics.",
		"Pioneered research on radioactivity.",
		"First woman to win a Nobel Prize.",
	} {
		_, err := merger.MergeEntity(ctx, ai.EntityCandidate{
			Name:        "marie curie",
			Type:        "person",
			Description: desc,
		}, core.IDFromContent(fmt.Sprintf("chunk-%d", i)))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, llm.CallCount(), "three fragments at threshold 3 must summarize exactly once")

	entity, err := stores.Graph.GetNode(ctx, "marie curie")
	require.NoError(t, err)
	assert.Equal(t, llm.Response, entity.Description)
	assert.Equal(t, 1, entity.Fragments, "counter resets after re-summarization")
}

func TestMergeRelationSymmetricAndWeighted(t *testing.T) {
	stores := newTestStores(t)
	merger := newTestMerger(t, stores, mock.NewLLM())
	ctx := context.Background()

	_, err := merger.MergeRelation(ctx, ai.RelationCandidate{
		Source: "Marie Curie", Target: "Radium",
		Description: "Discovered radium.", Keywords: "discovery", Weight: 2,
	}, core.IDFromContent("chunk-1"))
	require.NoError(t, err)

	// Reversed endpoints from a different chunk land on the same edge
	relation, err := merger.MergeRelation(ctx, ai.RelationCandidate{
		Source: "radium", Target: "marie curie",
		Description: "Isolated in her laboratory.", Keywords: "science, discovery", Weight: 3,
	}, core.IDFromContent("chunk-2"))
	require.NoError(t, err)

	assert.Equal(t, 5.0, relation.Weight)
	assert.Len(t, relation.SourceChunkIds, 2)
	assert.Equal(t, 2, relation.Fragments)
	assert.Equal(t, "discovery, science", relation.Keywords)

	// Re-merging an already contributing chunk leaves weight untouched
	relation, err = merger.MergeRelation(ctx, ai.RelationCandidate{
		Source: "Marie Curie", Target: "Radium",
		Description: "Discovered radium.", Keywords: "discovery", Weight: 2,
	}, core.IDFromContent("chunk-1"))
	require.NoError(t, err)
	assert.Equal(t, 5.0, relation.Weight)
	assert.Len(t, relation.SourceChunkIds, 2)
}

func TestMergeRelationRejectsSelfLoop(t *testing.T) {
	merger := newTestMerger(t, newTestStores(t), mock.NewLLM())

	_, err := merger.MergeRelation(context.Background(), ai.RelationCandidate{
		Source: "Paris", Target: " PARIS ",
	}, core.IDFromContent("chunk-1"))
	assert.ErrorIs(t, err, core.ErrSelfRelation)
}

func TestConcurrentMergesNoLostUpdates(t *testing.T) {
	stores := newTestStores(t)
	// High threshold keeps the LLM out of this test
	merger := newTestMerger(t, stores, mock.NewLLM(), config.WithForceLLMSummaryOnMerge(1000))
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := merger.MergeEntity(ctx, ai.EntityCandidate{
				Name:        "shared entity",
				Type:        "concept",
				Description: "One shared description.",
			}, core.IDFromContent(fmt.Sprintf("chunk-%d", n)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entity, err := stores.Graph.GetNode(ctx, "shared entity")
	require.NoError(t, err)
	assert.Len(t, entity.SourceChunkIds, workers, "every worker's provenance must survive")
	assert.Equal(t, 1, entity.Fragments, "identical descriptions deduplicate")
}

func TestMergeKeywords(t *testing.T) {
	assert.Equal(t, "a, b", mergeKeywords("a", "b"))
	assert.Equal(t, "a, b", mergeKeywords("a, b", "B, a"))
	assert.Equal(t, "a", mergeKeywords("a", "  "))
	assert.Equal(t, "b", mergeKeywords("", "b"))
}
