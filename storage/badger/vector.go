package badger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB.
//
// Entries are scanned exhaustively on query; this driver targets embedded
// deployments where the corpus fits comfortably in one process. The postgres
// driver serves indexed search at larger scale.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore on the shared backend.
//
// Returns storage.VectorStore interface to enforce abstraction.
func NewVectorStore(backend *Backend) (storage.VectorStore, error) {
	return &VectorStore{backend: backend}, nil
}

// vectorRecord is the stored form of one entry.
type vectorRecord struct {
	Vector  []float32
	Payload []byte
}

var float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)

func marshalVectorRecord(r vectorRecord) []byte {
	payload := string(r.Payload)
	buf := make([]byte, float32SliceMUS.Size(r.Vector)+ord.String.Size(payload))
	n := float32SliceMUS.Marshal(r.Vector, buf)
	ord.String.Marshal(payload, buf[n:])
	return buf
}

func unmarshalVectorRecord(data []byte) (vectorRecord, error) {
	var r vectorRecord
	vector, n, err := float32SliceMUS.Unmarshal(data)
	if err != nil {
		return r, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	payload, _, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return r, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	r.Vector = vector
	r.Payload = []byte(payload)
	return r, nil
}

// Upsert stores a vector with an opaque payload under an ID.
func (s *VectorStore) Upsert(ctx context.Context, id core.ID, vector []float32, payload []byte) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", storage.ErrConstraintViolation)
	}
	value := marshalVectorRecord(vectorRecord{Vector: vector, Payload: payload})
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		if err := tx.Set(makeVectorKey(id), value); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Query returns up to topK entries most similar to the given vector,
// ordered by cosine similarity descending. Entries below minSimilarity
// are discarded.
func (s *VectorStore) Query(ctx context.Context, vector []float32, topK int, minSimilarity float32) ([]storage.VectorMatch, error) {
	var matches []storage.VectorMatch

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefixLen := len(opts.Prefix)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)

			var id core.ID
			if _, err := fmt.Sscanf(string(key[prefixLen:]), "%d", &id); err != nil {
				return fmt.Errorf("%w: malformed vector key %q", storage.ErrSerializationFailed, key)
			}

			var record vectorRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = unmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			score := cosineSimilarity(vector, record.Vector)
			if score >= minSimilarity {
				matches = append(matches, storage.VectorMatch{
					Id:      id,
					Score:   score,
					Payload: record.Payload,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(matches, func(a, b storage.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes an entry. Deleting a missing entry is not an error.
func (s *VectorStore) Delete(ctx context.Context, id core.ID) error {
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		if err := tx.Delete(makeVectorKey(id)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Close releases resources. The shared backend is closed by its owner.
func (s *VectorStore) Close() error {
	return nil
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched dimensions or zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
