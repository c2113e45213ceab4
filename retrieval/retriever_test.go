package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/graphrag/ai/mock"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryVectors maps test queries to fixed embeddings so similarity is fully
// controlled.
var queryVectors = map[string][]float32{
	"about alpha": {1, 0, 0},
	"about gamma": {0, 0, 1},
}

func newTestRetriever(t *testing.T, opts ...config.Option) (*Retriever, *storage.Stores) {
	t.Helper()

	mem, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	stores := &storage.Stores{KV: mem.KV, Vectors: mem.Vectors, Graph: mem.Graph, DocStatus: mem.DocStatus}

	embedder := mock.NewEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := queryVectors[text]; ok {
			return v, nil
		}
		return []float32{0, 1, 0}, nil
	}

	splitter, err := chunk.NewSplitter("gpt-4o-mini", 100, 10)
	require.NoError(t, err)

	cfgOpts := append([]config.Option{
		config.WithTopK(10),
		config.WithCosineThreshold(0.5),
	}, opts...)

	r, err := NewRetriever(stores, embedder, splitter, config.New(cfgOpts...))
	require.NoError(t, err)
	return r, stores
}

func seedChunk(t *testing.T, stores *storage.Stores, content string, vector []float32) core.ID {
	t.Helper()
	ctx := context.Background()

	docId := core.IDFromContent("seed-doc")
	c := &core.Chunk{
		Id:      core.ChunkID(docId, 0, content),
		DocId:   docId,
		Content: content,
		Tokens:  len(content),
	}
	require.NoError(t, stores.KV.Set(ctx, storage.ChunkKey(c.Id), storage.MarshalChunk(c)))
	require.NoError(t, stores.Vectors.Upsert(ctx, c.Id, vector, storage.ChunkPayload(c.Id)))
	return c.Id
}

func seedEntity(t *testing.T, stores *storage.Stores, name, description string, vector []float32) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	entity := &core.Entity{
		Name:        core.CanonicalName(name),
		Type:        "concept",
		Description: description,
		Vector:      vector,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	require.NoError(t, stores.Graph.UpsertNode(ctx, entity))
	require.NoError(t, stores.Vectors.Upsert(ctx, core.EntityID(name), vector, storage.EntityPayload(name)))
}

func seedRelation(t *testing.T, stores *storage.Stores, source, target, description string, vector []float32) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	relation := &core.Relation{
		Source:      core.CanonicalName(source),
		Target:      core.CanonicalName(target),
		Description: description,
		Weight:      1,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	require.NoError(t, stores.Graph.UpsertEdge(ctx, relation))
	require.NoError(t, stores.Vectors.Upsert(ctx, core.RelationID(source, target), vector, storage.RelationPayload(source, target)))
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r, _ := newTestRetriever(t)
	_, err := r.Retrieve(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetrieveRanksCloserChunkFirst(t *testing.T) {
	r, stores := newTestRetriever(t)

	closeId := seedChunk(t, stores, "chunk about alpha", []float32{1, 0, 0})
	furtherId := seedChunk(t, stores, "chunk mostly about alpha", []float32{0.9, 0.3, 0})
	seedChunk(t, stores, "chunk about gamma", []float32{0, 0, 1})

	result, err := r.Retrieve(context.Background(), "about alpha")
	require.NoError(t, err)

	require.Len(t, result.Chunks, 2, "the gamma chunk is below the similarity threshold")
	assert.Equal(t, closeId, result.Chunks[0].Id, "closer chunk must rank first")
	assert.Equal(t, furtherId, result.Chunks[1].Id)
	assert.Greater(t, result.Chunks[0].Score, result.Chunks[1].Score)
}

func TestRetrieveExpandsEntityNeighborhood(t *testing.T) {
	r, stores := newTestRetriever(t)

	seedEntity(t, stores, "alpha", "The matched entity.", []float32{1, 0, 0})
	seedEntity(t, stores, "beta", "A neighbor, not similar to the query.", []float32{0, 0, 1})
	seedRelation(t, stores, "alpha", "beta", "Alpha is linked to beta.", []float32{0, 0, 1})

	result, err := r.Retrieve(context.Background(), "about alpha")
	require.NoError(t, err)

	names := make([]string, 0, len(result.Entities))
	for _, e := range result.Entities {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names,
		"graph expansion must pull in the one-hop neighbor")

	require.Len(t, result.Relations, 1)
	assert.Equal(t, "alpha->beta", result.Relations[0].Key())
}

func TestRetrieveMatchedRelation(t *testing.T) {
	r, stores := newTestRetriever(t)

	seedEntity(t, stores, "alpha", "First endpoint.", []float32{0, 0, 1})
	seedEntity(t, stores, "beta", "Second endpoint.", []float32{0, 0, 1})
	seedRelation(t, stores, "alpha", "beta", "Directly matched relation.", []float32{1, 0, 0})

	result, err := r.Retrieve(context.Background(), "about alpha")
	require.NoError(t, err)

	require.Len(t, result.Relations, 1)
	assert.Equal(t, "Directly matched relation.", result.Relations[0].Description)
}

func TestRetrieveTrimsToBudgetWholeItemsOnly(t *testing.T) {
	r, stores := newTestRetriever(t, config.WithTokenBudgets(8, 4000, 4000))

	// Each chunk is ~6 tokens; the budget of 8 fits exactly one
	seedChunk(t, stores, "six or so tokens of text", []float32{1, 0, 0})
	seedChunk(t, stores, "another six tokens of text here", []float32{0.95, 0.1, 0})

	result, err := r.Retrieve(context.Background(), "about alpha")
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1, "second chunk would exceed the budget and must be dropped whole")
	assert.Equal(t, "six or so tokens of text", result.Chunks[0].Content)
}

func TestRetrieveBelowThresholdYieldsEmptyContext(t *testing.T) {
	r, stores := newTestRetriever(t)

	seedChunk(t, stores, "chunk about gamma", []float32{0, 0, 1})

	result, err := r.Retrieve(context.Background(), "about alpha")
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.Entities)
	assert.Empty(t, result.Relations)
}
