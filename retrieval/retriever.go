// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retrieval answers queries by combining vector similarity search
// with graph traversal.
//
// A query is embedded and matched against chunk, entity and relation vector
// entries. Matched entities seed a one-hop graph expansion that pulls in
// neighboring entities and the relations connecting them. The assembled
// context is ranked by similarity score and trimmed lowest-rank-first to
// per-field token budgets, never cutting inside an item.
package retrieval

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
)

var (
	// ErrEmptyQuery is returned when the query is blank.
	ErrEmptyQuery = errors.New("empty query")

	// ErrStoresRequired is returned when the storage bundle is not provided.
	ErrStoresRequired = errors.New("storage stores required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrSplitterRequired is returned when a chunk splitter is not provided.
	ErrSplitterRequired = errors.New("chunk splitter required")

	// ErrConfigRequired is returned when a configuration is not provided.
	ErrConfigRequired = errors.New("config required")
)

// ScoredEntity is an entity with its retrieval score.
type ScoredEntity struct {
	*core.Entity
	Score float32
}

// ScoredRelation is a relation with its retrieval score.
type ScoredRelation struct {
	*core.Relation
	Score float32
}

// ScoredChunk is a chunk with its retrieval score.
type ScoredChunk struct {
	*core.Chunk
	Score float32
}

// Context is the ranked, budget-trimmed material assembled for a query,
// ready for downstream answer generation.
type Context struct {
	Entities  []ScoredEntity
	Relations []ScoredRelation
	Chunks    []ScoredChunk
}

// Retriever answers queries against the knowledge graph and chunk index.
type Retriever struct {
	stores   *storage.Stores
	embedder ai.Embedder
	splitter *chunk.Splitter
	cfg      *config.Config
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewRetriever creates a retrieval engine over the given stores.
func NewRetriever(stores *storage.Stores, embedder ai.Embedder, splitter *chunk.Splitter, cfg *config.Config, opts ...Option) (*Retriever, error) {
	if err := stores.Validate(); err != nil {
		return nil, ErrStoresRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if splitter == nil {
		return nil, ErrSplitterRequired
	}
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		stores:   stores,
		embedder: embedder,
		splitter: splitter,
		cfg:      cfg,
		logger:   slog.Default().With("component", "retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Retrieve embeds the query, gathers similar chunks, entities and relations,
// expands matched entities one hop through the graph, and returns the ranked
// context trimmed to the configured token budgets.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*Context, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := r.stores.Vectors.Query(ctx, vector, r.cfg.TopK, r.cfg.CosineThreshold)
	if err != nil {
		return nil, err
	}

	result := &Context{}
	seenEntities := make(map[string]bool)
	seenRelations := make(map[string]bool)
	seenChunks := make(map[core.ID]bool)

	for _, match := range matches {
		switch {
		case bytes.HasPrefix(match.Payload, []byte(storage.ChunkKeyPrefix)):
			if err := r.collectChunk(ctx, match, seenChunks, result); err != nil {
				return nil, err
			}
		case bytes.HasPrefix(match.Payload, []byte(storage.EntityPayloadPrefix)):
			name := string(match.Payload[len(storage.EntityPayloadPrefix):])
			if err := r.collectEntity(ctx, name, match.Score, seenEntities, seenRelations, result); err != nil {
				return nil, err
			}
		case bytes.HasPrefix(match.Payload, []byte(storage.RelationPayloadPrefix)):
			pairKey := string(match.Payload[len(storage.RelationPayloadPrefix):])
			if err := r.collectRelation(ctx, pairKey, match.Score, seenRelations, result); err != nil {
				return nil, err
			}
		default:
			r.logger.Warn("vector entry with unknown payload tag", "id", match.Id)
		}
	}

	rankContext(result)
	r.trimToBudgets(result)

	r.logger.Debug("retrieved context",
		"query_len", len(query),
		"entities", len(result.Entities),
		"relations", len(result.Relations),
		"chunks", len(result.Chunks))
	return result, nil
}

func (r *Retriever) collectChunk(ctx context.Context, match storage.VectorMatch, seen map[core.ID]bool, result *Context) error {
	if seen[match.Id] {
		return nil
	}
	seen[match.Id] = true

	// The payload doubles as the chunk's KV key
	data, err := r.stores.KV.Get(ctx, match.Payload)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("chunk vector without chunk record", "id", match.Id)
		return nil
	}
	if err != nil {
		return err
	}
	c, err := storage.UnmarshalChunk(data)
	if err != nil {
		return err
	}

	result.Chunks = append(result.Chunks, ScoredChunk{Chunk: c, Score: match.Score})
	return nil
}

// collectEntity adds a matched entity and its one-hop neighborhood.
// Expansion stops at MaxGraphNodes entities overall; neighbors inherit the
// seed's score so directly matched items always outrank their expansions.
func (r *Retriever) collectEntity(ctx context.Context, name string, score float32, seenEntities, seenRelations map[string]bool, result *Context) error {
	if len(result.Entities) >= r.cfg.MaxGraphNodes {
		return nil
	}

	entities, relations, err := r.stores.Graph.GetNeighbors(ctx, name, 1, r.cfg.MaxGraphNodes-len(result.Entities))
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("entity vector without graph node", "name", name)
		return nil
	}
	if err != nil {
		return err
	}

	for _, entity := range entities {
		key := entity.Key()
		if seenEntities[key] {
			continue
		}
		seenEntities[key] = true
		result.Entities = append(result.Entities, ScoredEntity{Entity: entity, Score: score})
	}
	for _, relation := range relations {
		key := relation.Key()
		if seenRelations[key] {
			continue
		}
		seenRelations[key] = true
		result.Relations = append(result.Relations, ScoredRelation{Relation: relation, Score: score})
	}
	return nil
}

func (r *Retriever) collectRelation(ctx context.Context, pairKey string, score float32, seen map[string]bool, result *Context) error {
	if seen[pairKey] {
		return nil
	}

	source, target, ok := strings.Cut(pairKey, "->")
	if !ok {
		r.logger.Warn("malformed relation payload", "key", pairKey)
		return nil
	}

	relation, err := r.stores.Graph.GetEdge(ctx, source, target)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Warn("relation vector without graph edge", "key", pairKey)
		return nil
	}
	if err != nil {
		return err
	}

	seen[pairKey] = true
	result.Relations = append(result.Relations, ScoredRelation{Relation: relation, Score: score})
	return nil
}

// rankContext orders each list by score descending with deterministic
// tie-breaks.
func rankContext(c *Context) {
	sort.SliceStable(c.Entities, func(i, j int) bool {
		if c.Entities[i].Score != c.Entities[j].Score {
			return c.Entities[i].Score > c.Entities[j].Score
		}
		return c.Entities[i].Name < c.Entities[j].Name
	})
	sort.SliceStable(c.Relations, func(i, j int) bool {
		if c.Relations[i].Score != c.Relations[j].Score {
			return c.Relations[i].Score > c.Relations[j].Score
		}
		return c.Relations[i].Key() < c.Relations[j].Key()
	})
	sort.SliceStable(c.Chunks, func(i, j int) bool {
		if c.Chunks[i].Score != c.Chunks[j].Score {
			return c.Chunks[i].Score > c.Chunks[j].Score
		}
		return c.Chunks[i].Ordinal < c.Chunks[j].Ordinal
	})
}

// trimToBudgets drops lowest-ranked items until each list fits its token
// budget. Items are never truncated mid-text.
func (r *Retriever) trimToBudgets(c *Context) {
	c.Chunks = trimToBudget(c.Chunks, r.cfg.MaxTokenTextChunk, func(s ScoredChunk) string {
		return s.Content
	}, r.splitter.CountTokens)
	c.Entities = trimToBudget(c.Entities, r.cfg.MaxTokenEntityDesc, func(s ScoredEntity) string {
		return s.Description
	}, r.splitter.CountTokens)
	c.Relations = trimToBudget(c.Relations, r.cfg.MaxTokenRelationDesc, func(s ScoredRelation) string {
		return s.Description
	}, r.splitter.CountTokens)
}

func trimToBudget[T any](items []T, budget int, text func(T) string, count func(string) int) []T {
	total := 0
	for i, item := range items {
		n := count(text(item))
		if total+n > budget {
			return items[:i]
		}
		total += n
	}
	return items
}
