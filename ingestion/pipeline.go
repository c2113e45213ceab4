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
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// summaryRunes is the length of the content prefix kept on the document
// record for status listings.
const summaryRunes = 200

// Pipeline orchestrates document ingestion: chunking, extraction, merging
// and status tracking.
//
// Two nested bounds govern concurrency: an ants pool processes up to
// MaxParallelInsert documents at once, and a shared semaphore bounds LLM
// calls across all documents at MaxAsync. Embedding calls have their own
// bound. A failing document never aborts work on unrelated documents.
type Pipeline struct {
	stores    *storage.Stores
	splitter  *chunk.Splitter
	extractor ai.Extractor
	embedder  ai.Embedder
	merger    *Merger
	docPool   *ants.Pool
	llmSem    *semaphore.Weighted
	embedSem  *semaphore.Weighted
	cfg       *config.Config
	logger    *slog.Logger
	released  atomic.Bool
	inflight  sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(stores *storage.Stores, provider ai.Provider, splitter *chunk.Splitter, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if err := stores.Validate(); err != nil {
		return nil, ErrStoresRequired
	}
	if provider == nil {
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

	docPool, err := ants.NewPool(cfg.MaxParallelInsert)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		stores:    stores,
		splitter:  splitter,
		extractor: provider.Extractor(),
		embedder:  provider.Embedder(),
		docPool:   docPool,
		llmSem:    semaphore.NewWeighted(int64(cfg.MaxAsync)),
		embedSem:  semaphore.NewWeighted(int64(cfg.EmbeddingConcurrency)),
		cfg:       cfg,
		logger:    slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.docPool.Release()
			return nil, optErr
		}
	}

	merger, err := NewMerger(stores, provider.LLM(), provider.Embedder(), splitter, cfg,
		withLimits(p.llmSem, p.embedSem), WithMergerLogger(p.logger))
	if err != nil {
		p.docPool.Release()
		return nil, err
	}
	p.merger = merger

	return p, nil
}

// Merger exposes the pipeline's merge engine.
func (p *Pipeline) Merger() *Merger {
	return p.merger
}

// Insert queues documents for asynchronous ingestion and returns their IDs
// in input order. Document identity is the content hash, so re-inserting an
// unchanged, already processed document is a no-op; re-inserting a failed
// document queues it again. Processing errors are recorded on the document's
// status, never returned here.
func (p *Pipeline) Insert(ctx context.Context, contents ...string) ([]core.ID, error) {
	return p.insert(ctx, contents, nil)
}

// InsertAndWait queues documents and blocks until their processing finishes.
func (p *Pipeline) InsertAndWait(ctx context.Context, contents ...string) ([]core.ID, error) {
	var done sync.WaitGroup
	ids, err := p.insert(ctx, contents, &done)
	done.Wait()
	return ids, err
}

func (p *Pipeline) insert(ctx context.Context, contents []string, done *sync.WaitGroup) ([]core.ID, error) {
	if p.released.Load() {
		return nil, ErrReleased
	}

	var ids []core.ID
	for _, content := range contents {
		docId, queued, err := p.enqueue(ctx, content)
		if err != nil {
			return ids, err
		}
		ids = append(ids, docId)
		if !queued {
			continue
		}
		if err := p.submit(docId, done); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// Reprocess queues a known document for re-ingestion. The document must be
// in a terminal state; requeuing an in-flight document fails with
// core.ErrInvalidTransition.
func (p *Pipeline) Reprocess(ctx context.Context, docId core.ID) error {
	if p.released.Load() {
		return ErrReleased
	}

	doc, err := p.stores.DocStatus.GetStatus(ctx, docId)
	if err != nil {
		return err
	}
	doc.Error = ""
	if err := p.stores.DocStatus.SetStatus(ctx, doc, core.DocStatusPending); err != nil {
		return err
	}
	return p.submit(docId, nil)
}

// Release waits for in-flight documents and frees the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.released.Swap(true) {
		return
	}
	p.inflight.Wait()
	p.docPool.Release()
}

// enqueue records a document as pending. The second return value reports
// whether processing is needed.
func (p *Pipeline) enqueue(ctx context.Context, content string) (core.ID, bool, error) {
	docId := core.IDFromContent(content)

	existing, err := p.stores.DocStatus.GetStatus(ctx, docId)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, false, err
	}
	if existing != nil {
		switch existing.Status {
		case core.DocStatusPending, core.DocStatusProcessing:
			return docId, false, nil
		case core.DocStatusProcessed:
			// Identity is the content hash: an existing processed record
			// means the exact same content was already ingested
			p.logger.Debug("document unchanged, skipping", "doc", docId)
			return docId, false, nil
		}
	}

	if err := p.stores.KV.Set(ctx, storage.DocContentKey(docId), []byte(content)); err != nil {
		return 0, false, err
	}

	doc := &core.Document{
		Id:          docId,
		ContentHash: docId,
		Summary:     contentSummary(content),
	}
	if err := p.stores.DocStatus.SetStatus(ctx, doc, core.DocStatusPending); err != nil {
		return 0, false, err
	}
	return docId, true, nil
}

func (p *Pipeline) submit(docId core.ID, done *sync.WaitGroup) error {
	p.inflight.Add(1)
	if done != nil {
		done.Add(1)
	}

	err := p.docPool.Submit(func() {
		defer p.inflight.Done()
		if done != nil {
			defer done.Done()
		}
		p.process(context.Background(), docId)
	})
	if err != nil {
		p.inflight.Done()
		if done != nil {
			done.Done()
		}
	}
	return err
}

// process runs one document through the pipeline and records the outcome on
// its status.
func (p *Pipeline) process(ctx context.Context, docId core.ID) {
	doc, err := p.stores.DocStatus.GetStatus(ctx, docId)
	if err != nil {
		p.logger.Error("cannot load document status", "doc", docId, "err", err)
		return
	}
	if err := p.stores.DocStatus.SetStatus(ctx, doc, core.DocStatusProcessing); err != nil {
		p.logger.Error("cannot mark document processing", "doc", docId, "err", err)
		return
	}

	if err := p.processDocument(ctx, doc); err != nil {
		doc.Error = err.Error()
		if serr := p.stores.DocStatus.SetStatus(ctx, doc, core.DocStatusFailed); serr != nil {
			p.logger.Error("cannot mark document failed", "doc", docId, "err", serr)
		}
		p.logger.Error("document processing failed", "doc", docId, "err", err)
		return
	}

	if err := p.stores.DocStatus.SetStatus(ctx, doc, core.DocStatusProcessed); err != nil {
		p.logger.Error("cannot mark document processed", "doc", docId, "err", err)
		return
	}
	p.logger.Info("document processed",
		"doc", docId,
		"chunks", doc.ChunkCount,
		"partialFailures", doc.Error != "")
}

func (p *Pipeline) processDocument(ctx context.Context, doc *core.Document) error {
	raw, err := p.loadContent(ctx, doc.Id)
	if err != nil {
		return err
	}

	chunks, err := p.splitter.Split(doc.Id, string(raw))
	if err != nil {
		return err
	}
	doc.ChunkCount = len(chunks)
	if len(chunks) == 0 {
		// Empty documents are processed trivially
		return nil
	}

	// Persist chunk records before anything references them, so provenance
	// ids always resolve
	for i := range chunks {
		if err := p.stores.KV.Set(ctx, storage.ChunkKey(chunks[i].Id), storage.MarshalChunk(&chunks[i])); err != nil {
			return err
		}
	}

	if err := p.embedChunks(ctx, chunks); err != nil {
		return err
	}

	extractions, failed := p.extractChunks(ctx, chunks)
	if len(extractions) == 0 {
		return fmt.Errorf("%w: %d chunks failed", ErrNoMergeableResult, failed)
	}
	if failed > 0 {
		doc.Error = fmt.Sprintf("partial extraction: %d/%d chunks failed", failed, len(chunks))
	}

	return p.mergeExtractions(ctx, extractions)
}

func (p *Pipeline) loadContent(ctx context.Context, docId core.ID) ([]byte, error) {
	var raw []byte
	err := RetryWithBackoff(ctx, func() error {
		data, err := p.stores.KV.Get(ctx, storage.DocContentKey(docId))
		if err != nil {
			return err
		}
		raw = data
		return nil
	}, p.cfg.MaxRetries, p.cfg.RetryBaseDelay)
	return raw, err
}

// embedChunks computes and stores chunk embeddings in batches.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []core.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(chunks); start += p.cfg.EmbeddingBatchSize {
		batch := chunks[start:min(start+p.cfg.EmbeddingBatchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Content
			}

			var vectors [][]float32
			err := RetryWithBackoff(gctx, func() error {
				if err := p.embedSem.Acquire(gctx, 1); err != nil {
					return err
				}
				defer p.embedSem.Release(1)
				callCtx, cancel := context.WithTimeout(gctx, p.cfg.LLMTimeout)
				defer cancel()

				v, err := p.embedder.EmbedTexts(callCtx, texts)
				if err != nil {
					return err
				}
				vectors = v
				return nil
			}, p.cfg.MaxRetries, p.cfg.RetryBaseDelay)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: %d embeddings for %d texts", ai.ErrMalformedResponse, len(vectors), len(batch))
			}

			for i := range batch {
				batch[i].Vector = vectors[i]
				if err := p.stores.Vectors.Upsert(gctx, batch[i].Id, vectors[i], storage.ChunkPayload(batch[i].Id)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// chunkExtraction pairs a chunk with its candidates for the merge phase.
type chunkExtraction struct {
	chunkId    core.ID
	extraction *ai.Extraction
}

// extractChunks runs extraction for every chunk concurrently, bounded by the
// shared LLM semaphore. A failing chunk is logged and counted; its siblings
// proceed.
func (p *Pipeline) extractChunks(ctx context.Context, chunks []core.Chunk) ([]chunkExtraction, int) {
	results := make([]*ai.Extraction, len(chunks))
	var failures atomic.Int32

	var wg sync.WaitGroup
	for i := range chunks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var extraction *ai.Extraction
			err := RetryWithBackoff(ctx, func() error {
				if err := p.llmSem.Acquire(ctx, 1); err != nil {
					return err
				}
				defer p.llmSem.Release(1)
				callCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
				defer cancel()

				ex, err := p.extractor.ExtractGraph(callCtx, chunks[i].Content)
				if err != nil {
					return err
				}
				extraction = ex
				return nil
			}, p.cfg.MaxRetries, p.cfg.RetryBaseDelay)
			if err != nil {
				failures.Add(1)
				p.logger.Warn("chunk extraction failed",
					"doc", chunks[i].DocId,
					"ordinal", chunks[i].Ordinal,
					"err", err)
				return
			}
			results[i] = extraction
		}()
	}
	wg.Wait()

	// Deterministic merge input order regardless of completion order
	var out []chunkExtraction
	for i, extraction := range results {
		if extraction != nil {
			out = append(out, chunkExtraction{chunkId: chunks[i].Id, extraction: extraction})
		}
	}
	return out, int(failures.Load())
}

// mergeExtractions folds all candidates into the graph. Relation endpoints
// the model never described get stub entity nodes so edges always connect
// existing nodes.
func (p *Pipeline) mergeExtractions(ctx context.Context, extractions []chunkExtraction) error {
	seen := make(map[string]bool)
	for _, ce := range extractions {
		for _, entity := range ce.extraction.Entities {
			name := core.CanonicalName(entity.Name)
			if name == "" {
				continue
			}
			seen[name] = true
			if _, err := p.merger.MergeEntity(ctx, entity, ce.chunkId); err != nil {
				return fmt.Errorf("merge entity %q: %w", name, err)
			}
		}
	}

	for _, ce := range extractions {
		for _, relation := range ce.extraction.Relations {
			source := core.CanonicalName(relation.Source)
			target := core.CanonicalName(relation.Target)
			if source == "" || target == "" || source == target {
				// Malformed candidates are dropped, not fatal
				continue
			}

			for _, endpoint := range []string{source, target} {
				if seen[endpoint] {
					continue
				}
				seen[endpoint] = true
				// Empty type: an existing node keeps its real type, a new
				// node falls back to "unknown"
				stub := ai.EntityCandidate{Name: endpoint}
				if _, err := p.merger.MergeEntity(ctx, stub, ce.chunkId); err != nil {
					return fmt.Errorf("merge stub entity %q: %w", endpoint, err)
				}
			}

			if _, err := p.merger.MergeRelation(ctx, relation, ce.chunkId); err != nil {
				return fmt.Errorf("merge relation %q: %w", core.RelationKey(source, target), err)
			}
		}
	}
	return nil
}

// contentSummary returns the leading slice of content kept on the document
// record.
func contentSummary(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= summaryRunes {
		return content
	}
	return string(runes[:summaryRunes])
}
