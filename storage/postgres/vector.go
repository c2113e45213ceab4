package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// VectorStore implements storage.VectorStore on PostgreSQL with pgvector.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a VectorStore on the shared backend.
//
// Returns storage.VectorStore interface to enforce abstraction.
func NewVectorStore(backend *Backend) (storage.VectorStore, error) {
	return &VectorStore{backend: backend}, nil
}

// Upsert stores a vector with an opaque payload under an ID.
func (s *VectorStore) Upsert(ctx context.Context, id core.ID, vector []float32, payload []byte) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", storage.ErrConstraintViolation)
	}
	_, err := s.backend.pool.Exec(ctx,
		`INSERT INTO graphrag_vectors (id, embedding, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		int64(id), pgvector.NewVector(vector), payload)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Query returns up to topK entries most similar to the given vector,
// ordered by cosine similarity descending.
func (s *VectorStore) Query(ctx context.Context, vector []float32, topK int, minSimilarity float32) ([]storage.VectorMatch, error) {
	// <=> is cosine distance; similarity = 1 - distance
	rows, err := s.backend.pool.Query(ctx,
		`SELECT id, 1 - (embedding <=> $1) AS similarity, payload
		 FROM graphrag_vectors
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vector), minSimilarity, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var matches []storage.VectorMatch
	for rows.Next() {
		var id int64
		var score float32
		var payload []byte
		if err := rows.Scan(&id, &score, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		matches = append(matches, storage.VectorMatch{
			Id:      core.ID(id),
			Score:   score,
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return matches, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *VectorStore) Delete(ctx context.Context, id core.ID) error {
	_, err := s.backend.pool.Exec(ctx,
		`DELETE FROM graphrag_vectors WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrStorageUnavailable, err)
	}
	return nil
}

// Close releases resources. The shared backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}
