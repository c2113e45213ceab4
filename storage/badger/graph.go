package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

// GraphStore implements storage.GraphStore for BadgerDB.
//
// Nodes are stored under their canonical name, edges under the canonical
// pair key, and an adjacency index (node -> neighbor -> pair key) supports
// traversal and degree queries.
type GraphStore struct {
	backend *Backend
}

var _ storage.GraphStore = (*GraphStore)(nil)

// NewGraphStore creates a new GraphStore on the shared backend.
//
// Returns storage.GraphStore interface to enforce abstraction.
func NewGraphStore(backend *Backend) (storage.GraphStore, error) {
	return &GraphStore{backend: backend}, nil
}

// UpsertNode stores an entity under its canonical key.
// Scalar fields overwrite the stored node; SourceChunkIds are unioned.
func (s *GraphStore) UpsertNode(ctx context.Context, entity *core.Entity) error {
	if err := core.ValidateEntity(entity); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConstraintViolation, err)
	}

	name := entity.Key()
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		key := makeNodeKey(name)
		existing, err := readEntity(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		stored := *entity
		stored.Name = name
		stored.UpdatedAt = now
		if existing != nil {
			stored.InsertedAt = existing.InsertedAt
			stored.SourceChunkIds = unionIDs(existing.SourceChunkIds, entity.SourceChunkIds)
		} else {
			stored.InsertedAt = now
		}

		if err := tx.Set(key, storage.MarshalEntity(&stored)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// UpsertEdge stores a relation under its canonical pair key and records
// adjacency entries for both endpoints.
// Scalar fields overwrite the stored edge; SourceChunkIds are unioned.
func (s *GraphStore) UpsertEdge(ctx context.Context, relation *core.Relation) error {
	if err := core.ValidateRelation(relation); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrConstraintViolation, err)
	}

	src := core.CanonicalName(relation.Source)
	dst := core.CanonicalName(relation.Target)
	pairKey := core.RelationKey(src, dst)

	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		key := makeEdgeKey(pairKey)
		existing, err := readRelation(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		stored := *relation
		stored.Source = src
		stored.Target = dst
		stored.UpdatedAt = now
		if existing != nil {
			stored.InsertedAt = existing.InsertedAt
			stored.SourceChunkIds = unionIDs(existing.SourceChunkIds, relation.SourceChunkIds)
		} else {
			stored.InsertedAt = now
		}

		if err := tx.Set(key, storage.MarshalRelation(&stored)); err != nil {
			return err
		}
		if err := tx.Set(makeAdjacencyKey(src, dst), []byte(pairKey)); err != nil {
			return err
		}
		if err := tx.Set(makeAdjacencyKey(dst, src), []byte(pairKey)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// GetNode retrieves an entity by canonical name.
func (s *GraphStore) GetNode(ctx context.Context, name string) (*core.Entity, error) {
	var result *core.Entity
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		entity, err := readEntity(tx, makeNodeKey(core.CanonicalName(name)))
		if err != nil {
			return err
		}
		if entity == nil {
			return storage.ErrNotFound
		}
		result = entity
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetEdge retrieves a relation by its endpoint names, in either order.
func (s *GraphStore) GetEdge(ctx context.Context, source, target string) (*core.Relation, error) {
	var result *core.Relation
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		relation, err := readRelation(tx, makeEdgeKey(core.RelationKey(source, target)))
		if err != nil {
			return err
		}
		if relation == nil {
			return storage.ErrNotFound
		}
		result = relation
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetNeighbors traverses breadth-first from the named node up to depth hops,
// returning at most maxNodes entities and the relations connecting them.
func (s *GraphStore) GetNeighbors(ctx context.Context, name string, depth, maxNodes int) ([]*core.Entity, []*core.Relation, error) {
	start := core.CanonicalName(name)
	var entities []*core.Entity
	var relations []*core.Relation

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		startEntity, err := readEntity(tx, makeNodeKey(start))
		if err != nil {
			return err
		}
		if startEntity == nil {
			return storage.ErrNotFound
		}

		visited := map[string]bool{start: true}
		seenEdges := map[string]bool{}
		entities = append(entities, startEntity)
		frontier := []string{start}

		for hop := 0; hop < depth && len(frontier) > 0 && len(entities) < maxNodes; hop++ {
			var next []string
			for _, node := range frontier {
				neighbors, pairKeys, err := readAdjacency(tx, node)
				if err != nil {
					return err
				}
				for i, neighbor := range neighbors {
					if !seenEdges[pairKeys[i]] {
						seenEdges[pairKeys[i]] = true
						relation, err := readRelation(tx, makeEdgeKey(pairKeys[i]))
						if err != nil {
							return err
						}
						if relation != nil {
							relations = append(relations, relation)
						}
					}
					if visited[neighbor] {
						continue
					}
					visited[neighbor] = true
					entity, err := readEntity(tx, makeNodeKey(neighbor))
					if err != nil {
						return err
					}
					if entity == nil {
						continue // dangling adjacency entry
					}
					entities = append(entities, entity)
					next = append(next, neighbor)
					if len(entities) >= maxNodes {
						return nil
					}
				}
			}
			frontier = next
		}
		return nil
	}, false)
	if err != nil {
		return nil, nil, err
	}
	return entities, relations, nil
}

// NodeDegree returns the number of edges attached to the named node.
func (s *GraphStore) NodeDegree(ctx context.Context, name string) (int, error) {
	degree := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		neighbors, _, err := readAdjacency(tx, core.CanonicalName(name))
		if err != nil {
			return err
		}
		degree = len(neighbors)
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return degree, nil
}

// DeleteNode removes an entity and all edges attached to it.
func (s *GraphStore) DeleteNode(ctx context.Context, name string) error {
	node := core.CanonicalName(name)
	return s.backend.WithWriteRetry(ctx, func(tx *badger.Txn) error {
		neighbors, pairKeys, err := readAdjacency(tx, node)
		if err != nil {
			return err
		}
		for i, neighbor := range neighbors {
			if err := tx.Delete(makeEdgeKey(pairKeys[i])); err != nil {
				return err
			}
			if err := tx.Delete(makeAdjacencyKey(node, neighbor)); err != nil {
				return err
			}
			if err := tx.Delete(makeAdjacencyKey(neighbor, node)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeNodeKey(node)); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// Close releases resources. The shared backend is closed by its owner.
func (s *GraphStore) Close() error {
	return nil
}

// readEntity reads and unmarshals a graph node.
// Returns nil without error when the key is absent.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalEntity(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// readRelation reads and unmarshals a graph edge.
// Returns nil without error when the key is absent.
func readRelation(tx *badger.Txn, key []byte) (*core.Relation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var relation *core.Relation
	err = item.Value(func(val []byte) error {
		var err error
		relation, err = storage.UnmarshalRelation(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return relation, nil
}

// readAdjacency returns the neighbor names and edge pair keys of a node.
func readAdjacency(tx *badger.Txn, node string) (neighbors []string, pairKeys []string, err error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeAdjacencyScanPrefix(node)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	prefixLen := len(opts.Prefix)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, nil, err
		}
		neighbors = append(neighbors, string(key[prefixLen:]))
		pairKeys = append(pairKeys, string(value))
	}
	return neighbors, pairKeys, nil
}

// unionIDs merges two ID sets preserving first-seen order.
func unionIDs(existing, incoming []core.ID) []core.ID {
	seen := make(map[core.ID]bool, len(existing)+len(incoming))
	result := make([]core.ID, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	for _, id := range incoming {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}
