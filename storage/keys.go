package storage

import (
	"fmt"

	"github.com/poiesic/graphrag/core"
)

// KV key and vector payload conventions shared by the ingestion pipeline and
// the retrieval engine. Vector entries carry a typed payload so chunk, entity
// and relation records can share one vector store.
const (
	DocContentKeyPrefix = "doc:"
	ChunkKeyPrefix      = "chunk:"

	ChunkPayloadPrefix    = "chunk:"
	EntityPayloadPrefix   = "entity:"
	RelationPayloadPrefix = "relation:"
)

// DocContentKey is the KV key holding a document's raw text.
func DocContentKey(docId core.ID) []byte {
	return []byte(fmt.Sprintf("%s%016x", DocContentKeyPrefix, uint64(docId)))
}

// ChunkKey is the KV key holding a serialized chunk record.
func ChunkKey(chunkId core.ID) []byte {
	return []byte(fmt.Sprintf("%s%016x", ChunkKeyPrefix, uint64(chunkId)))
}

// ChunkPayload tags a chunk's vector entry. The payload doubles as the KV
// key of the chunk record.
func ChunkPayload(chunkId core.ID) []byte {
	return ChunkKey(chunkId)
}

// EntityPayload tags an entity's vector entry with its canonical name.
func EntityPayload(name string) []byte {
	return []byte(EntityPayloadPrefix + core.CanonicalName(name))
}

// RelationPayload tags a relation's vector entry with its canonical pair key.
func RelationPayload(source, target string) []byte {
	return []byte(RelationPayloadPrefix + core.RelationKey(source, target))
}

// Stores bundles one concrete driver per capability interface. Any mix of
// drivers is valid; the pipeline and retriever are agnostic to the choice.
type Stores struct {
	KV        KVStore
	Vectors   VectorStore
	Graph     GraphStore
	DocStatus DocStatusStore
}

// Validate reports whether every capability is populated.
func (s *Stores) Validate() error {
	if s == nil || s.KV == nil || s.Vectors == nil || s.Graph == nil || s.DocStatus == nil {
		return fmt.Errorf("%w: all four stores are required", ErrConstraintViolation)
	}
	return nil
}

// Close closes all stores, returning the first error encountered.
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{s.KV, s.Vectors, s.Graph, s.DocStatus} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
