package storage

import (
	"context"

	"github.com/poiesic/graphrag/core"
)

// KVStore provides key-value persistence for cache entries and raw
// chunk/document bodies. Implementations must be thread-safe.
type KVStore interface {
	// Get retrieves the value for a key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a value under a key, overwriting any existing value.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan returns all key/value pairs whose key starts with prefix,
	// in lexicographic key order.
	Scan(ctx context.Context, prefix []byte) ([]KVPair, error)

	// Close closes the store and releases resources.
	Close() error
}

// KVPair is a single entry returned by KVStore.Scan.
type KVPair struct {
	Key   []byte
	Value []byte
}

// VectorStore provides cosine similarity search over embedded records.
// Implementations must be thread-safe.
type VectorStore interface {
	// Upsert stores a vector with an opaque payload under an ID,
	// replacing any existing entry.
	Upsert(ctx context.Context, id core.ID, vector []float32, payload []byte) error

	// Query returns up to topK entries most similar to the given vector,
	// ordered by similarity descending. Entries scoring below minSimilarity
	// are discarded.
	Query(ctx context.Context, vector []float32, topK int, minSimilarity float32) ([]VectorMatch, error)

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, id core.ID) error

	// Close closes the store and releases resources.
	Close() error
}

// VectorMatch is a single similarity search result.
type VectorMatch struct {
	Id      core.ID
	Score   float32
	Payload []byte
}

// GraphStore persists the knowledge graph of entities and relations.
//
// Implementations must support concurrent upserts to the same node without
// corrupting attributes: scalar fields are last-writer-wins, reference sets
// (SourceChunkIds) are unioned. Cross-entity atomicity is not provided here;
// the merge engine serializes writes per canonical key.
type GraphStore interface {
	// UpsertNode stores an entity under its canonical key.
	UpsertNode(ctx context.Context, entity *core.Entity) error

	// UpsertEdge stores a relation under its canonical pair key and links
	// it to both endpoint nodes.
	UpsertEdge(ctx context.Context, relation *core.Relation) error

	// GetNode retrieves an entity by canonical name.
	// Returns ErrNotFound if the node does not exist.
	GetNode(ctx context.Context, name string) (*core.Entity, error)

	// GetEdge retrieves a relation by its endpoint names, in either order.
	// Returns ErrNotFound if the edge does not exist.
	GetEdge(ctx context.Context, source, target string) (*core.Relation, error)

	// GetNeighbors traverses the graph breadth-first from the named node up
	// to depth hops, returning at most maxNodes entities and the relations
	// connecting them. The start node is included.
	GetNeighbors(ctx context.Context, name string, depth, maxNodes int) ([]*core.Entity, []*core.Relation, error)

	// NodeDegree returns the number of edges attached to the named node.
	NodeDegree(ctx context.Context, name string) (int, error)

	// DeleteNode removes an entity and all edges attached to it.
	DeleteNode(ctx context.Context, name string) error

	// Close closes the store and releases resources.
	Close() error
}

// DocStatusStore persists document processing state.
// Implementations must be thread-safe and enforce monotonic transitions
// via core.DocStatus.CanTransition.
type DocStatusStore interface {
	// SetStatus transitions a document to the given status, updating the
	// stored document record. Returns core.ErrInvalidTransition when the
	// change violates the status lifecycle.
	SetStatus(ctx context.Context, doc *core.Document, status core.DocStatus) error

	// GetStatus retrieves the stored document record.
	// Returns ErrNotFound if the document is unknown.
	GetStatus(ctx context.Context, docId core.ID) (*core.Document, error)

	// ListByStatus returns all documents currently in the given status.
	ListByStatus(ctx context.Context, status core.DocStatus) ([]*core.Document, error)

	// Delete removes a document record.
	Delete(ctx context.Context, docId core.ID) error

	// Close closes the store and releases resources.
	Close() error
}
