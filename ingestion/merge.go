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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"golang.org/x/sync/semaphore"
)

// fragmentSeparator joins accumulated description fragments until a
// re-summarization folds them into one.
const fragmentSeparator = "\n"

// Merger folds extraction candidates into canonical graph state.
//
// Merges for the same canonical key are serialized through a per-key mutex;
// distinct keys merge concurrently. Re-ingesting an unchanged document is
// idempotent: provenance, weight and description fragments are only added
// when the contributing chunk or fragment is new.
type Merger struct {
	graph            storage.GraphStore
	vectors          storage.VectorStore
	llm              ai.LLM
	embedder         ai.Embedder
	splitter         *chunk.Splitter
	keys             *keyMutex
	forceSummaryAt   int
	maxSummaryTokens int
	llmTimeout       time.Duration
	maxRetries       int
	retryBaseDelay   time.Duration
	llmSem           *semaphore.Weighted
	embedSem         *semaphore.Weighted
	logger           *slog.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithMergerLogger sets a custom logger.
// Default is slog.Default().
func WithMergerLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
	}
}

// withLimits shares the pipeline's LLM and embedding semaphores so merger
// calls count against the same global bounds as extraction.
func withLimits(llmSem, embedSem *semaphore.Weighted) MergerOption {
	return func(m *Merger) {
		m.llmSem = llmSem
		m.embedSem = embedSem
	}
}

// NewMerger creates a merge engine over the given stores and model services.
func NewMerger(stores *storage.Stores, llm ai.LLM, embedder ai.Embedder, splitter *chunk.Splitter, cfg *config.Config, opts ...MergerOption) (*Merger, error) {
	if err := stores.Validate(); err != nil {
		return nil, ErrStoresRequired
	}
	if llm == nil || embedder == nil {
		return nil, ErrProviderRequired
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

	m := &Merger{
		graph:            stores.Graph,
		vectors:          stores.Vectors,
		llm:              llm,
		embedder:         embedder,
		splitter:         splitter,
		keys:             newKeyMutex(),
		forceSummaryAt:   cfg.ForceLLMSummaryOnMerge,
		maxSummaryTokens: cfg.MaxTokenSummary,
		llmTimeout:       cfg.LLMTimeout,
		maxRetries:       cfg.MaxRetries,
		retryBaseDelay:   cfg.RetryBaseDelay,
		logger:           slog.Default().With("component", "merger"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MergeEntity folds one entity candidate into the canonical node for its
// name, updating the graph and the entity's vector entry.
func (m *Merger) MergeEntity(ctx context.Context, candidate ai.EntityCandidate, chunkId core.ID) (*core.Entity, error) {
	name := core.CanonicalName(candidate.Name)
	if name == "" {
		return nil, core.ErrEmptyEntityName
	}

	lockKey := "entity:" + name
	m.keys.Lock(lockKey)
	defer m.keys.Unlock(lockKey)

	now := time.Now().UTC()
	entity, err := m.loadEntity(ctx, name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		entity = &core.Entity{Name: name, InsertedAt: now}
	}

	entity.SourceChunkIds, _ = appendUniqueID(entity.SourceChunkIds, chunkId)
	if candidate.Type != "" {
		// Last writer wins on scalars
		entity.Type = candidate.Type
	}
	if entity.Type == "" {
		// Stub nodes created for bare relation endpoints
		entity.Type = "unknown"
	}

	if fragment := strings.TrimSpace(candidate.Description); fragment != "" && !containsFragment(entity.Description, fragment) {
		if entity.Description == "" {
			entity.Description = fragment
		} else {
			entity.Description += fragmentSeparator + fragment
		}
		entity.Fragments++
	}

	entity.Description, entity.Fragments = m.condense(ctx, entity.Name, entity.Description, entity.Fragments)
	entity.UpdatedAt = now

	vector, err := m.embed(ctx, entity.Name+"\n"+entity.Description)
	if err != nil {
		return nil, err
	}
	entity.Vector = vector

	if err := m.graph.UpsertNode(ctx, entity); err != nil {
		return nil, err
	}
	if err := m.vectors.Upsert(ctx, core.EntityID(name), vector, storage.EntityPayload(name)); err != nil {
		return nil, err
	}
	return entity, nil
}

// MergeRelation folds one relation candidate into the canonical edge for its
// endpoint pair, updating the graph and the relation's vector entry.
func (m *Merger) MergeRelation(ctx context.Context, candidate ai.RelationCandidate, chunkId core.ID) (*core.Relation, error) {
	source := core.CanonicalName(candidate.Source)
	target := core.CanonicalName(candidate.Target)
	if source == "" || target == "" {
		return nil, core.ErrEmptyEntityName
	}
	if source == target {
		return nil, core.ErrSelfRelation
	}

	lockKey := "relation:" + core.RelationKey(source, target)
	m.keys.Lock(lockKey)
	defer m.keys.Unlock(lockKey)

	now := time.Now().UTC()
	relation, err := m.loadRelation(ctx, source, target)
	if err != nil {
		return nil, err
	}
	if relation == nil {
		relation = &core.Relation{Source: source, Target: target, InsertedAt: now}
	}

	var added bool
	relation.SourceChunkIds, added = appendUniqueID(relation.SourceChunkIds, chunkId)
	if added {
		// Weight accumulates once per contributing chunk, which keeps
		// re-ingestion of an unchanged document idempotent
		weight := candidate.Weight
		if weight == 0 {
			weight = 1.0
		}
		relation.Weight += weight
	}
	relation.Keywords = mergeKeywords(relation.Keywords, candidate.Keywords)

	if fragment := strings.TrimSpace(candidate.Description); fragment != "" && !containsFragment(relation.Description, fragment) {
		if relation.Description == "" {
			relation.Description = fragment
		} else {
			relation.Description += fragmentSeparator + fragment
		}
		relation.Fragments++
	}

	subject := fmt.Sprintf("the relation between %s and %s", source, target)
	relation.Description, relation.Fragments = m.condense(ctx, subject, relation.Description, relation.Fragments)
	relation.UpdatedAt = now

	vector, err := m.embed(ctx, source+" -> "+target+"\n"+relation.Keywords+"\n"+relation.Description)
	if err != nil {
		return nil, err
	}

	if err := m.graph.UpsertEdge(ctx, relation); err != nil {
		return nil, err
	}
	if err := m.vectors.Upsert(ctx, core.RelationID(source, target), vector, storage.RelationPayload(source, target)); err != nil {
		return nil, err
	}
	return relation, nil
}

// condense enforces the summary token budget. Once the accumulated fragment
// count reaches the threshold the description is re-summarized by the LLM
// and the counter resets to one (the summary is itself a fragment);
// otherwise the concatenation is truncated to the budget.
func (m *Merger) condense(ctx context.Context, subject, description string, fragments int) (string, int) {
	if fragments >= m.forceSummaryAt {
		summary, err := m.summarize(ctx, subject, description)
		if err == nil {
			return summary, 1
		}
		// Concatenation stays usable; the counter keeps its value so the
		// next merge attempts summarization again
		m.logger.Warn("re-summarization failed, keeping concatenation",
			"subject", subject, "err", err)
	}
	return m.splitter.TruncateTokens(description, m.maxSummaryTokens), fragments
}

func (m *Merger) summarize(ctx context.Context, subject, fragments string) (string, error) {
	prompt := buildSummaryPrompt(subject, fragments, m.maxSummaryTokens)

	var response string
	err := RetryWithBackoff(ctx, func() error {
		if m.llmSem != nil {
			if err := m.llmSem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.llmSem.Release(1)
		}
		callCtx, cancel := context.WithTimeout(ctx, m.llmTimeout)
		defer cancel()

		text, err := m.llm.Complete(callCtx, prompt, ai.WithTemperature(0.0))
		if err != nil {
			return err
		}
		response = text
		return nil
	}, m.maxRetries, m.retryBaseDelay)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(response)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ai.ErrMalformedResponse)
	}
	return m.splitter.TruncateTokens(summary, m.maxSummaryTokens), nil
}

func (m *Merger) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		if m.embedSem != nil {
			if err := m.embedSem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.embedSem.Release(1)
		}
		callCtx, cancel := context.WithTimeout(ctx, m.llmTimeout)
		defer cancel()

		v, err := m.embedder.EmbedText(callCtx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, m.maxRetries, m.retryBaseDelay)
	return vector, err
}

// loadEntity reads a node with retries; a missing node is (nil, nil).
func (m *Merger) loadEntity(ctx context.Context, name string) (*core.Entity, error) {
	var entity *core.Entity
	err := RetryWithBackoff(ctx, func() error {
		e, err := m.graph.GetNode(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			entity = nil
			return nil
		}
		if err != nil {
			return err
		}
		entity = e
		return nil
	}, m.maxRetries, m.retryBaseDelay)
	return entity, err
}

// loadRelation reads an edge with retries; a missing edge is (nil, nil).
func (m *Merger) loadRelation(ctx context.Context, source, target string) (*core.Relation, error) {
	var relation *core.Relation
	err := RetryWithBackoff(ctx, func() error {
		r, err := m.graph.GetEdge(ctx, source, target)
		if errors.Is(err, storage.ErrNotFound) {
			relation = nil
			return nil
		}
		if err != nil {
			return err
		}
		relation = r
		return nil
	}, m.maxRetries, m.retryBaseDelay)
	return relation, err
}

// appendUniqueID appends id if absent, reporting whether it was added.
func appendUniqueID(ids []core.ID, id core.ID) ([]core.ID, bool) {
	for _, existing := range ids {
		if existing == id {
			return ids, false
		}
	}
	return append(ids, id), true
}

// containsFragment reports whether description already holds fragment as one
// of its separator-joined parts.
func containsFragment(description, fragment string) bool {
	for _, part := range strings.Split(description, fragmentSeparator) {
		if strings.TrimSpace(part) == fragment {
			return true
		}
	}
	return false
}

// mergeKeywords unions comma-separated keyword lists, preserving first-seen
// order.
func mergeKeywords(existing, incoming string) string {
	if strings.TrimSpace(incoming) == "" {
		return existing
	}

	seen := make(map[string]bool)
	var merged []string
	for _, list := range []string{existing, incoming} {
		for _, kw := range strings.Split(list, ",") {
			kw = strings.TrimSpace(kw)
			if kw == "" || seen[strings.ToLower(kw)] {
				continue
			}
			seen[strings.ToLower(kw)] = true
			merged = append(merged, kw)
		}
	}
	return strings.Join(merged, ", ")
}
