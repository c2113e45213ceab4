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

// Package graphrag is a knowledge-graph-backed retrieval system. Documents
// are chunked, mined for entities and relations by an LLM, and merged into a
// persistent graph alongside vector embeddings. Queries combine vector
// similarity with graph traversal to assemble ranked context.
package graphrag

import (
	"context"
	"log/slog"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/openai"
	"github.com/poiesic/graphrag/cache"
	"github.com/poiesic/graphrag/chunk"
	"github.com/poiesic/graphrag/config"
	"github.com/poiesic/graphrag/core"
	"github.com/poiesic/graphrag/ingestion"
	"github.com/poiesic/graphrag/retrieval"
	"github.com/poiesic/graphrag/storage"
	"github.com/poiesic/graphrag/storage/badger"
	"github.com/poiesic/graphrag/storage/postgres"
	"github.com/poiesic/graphrag/storage/redis"
)

// Database bundles the stores, the AI provider, the ingestion pipeline and
// the retrieval engine behind one lifecycle.
type Database struct {
	stores        *storage.Stores
	badgerBackend *badger.Backend
	pgBackend     *postgres.Backend
	provider      ai.Provider
	pipeline      *ingestion.Pipeline
	retriever     *retrieval.Retriever
	cfg           *config.Config
	logger        *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	cfg      *config.Config
	aiConfig *ai.Config
	provider ai.Provider
	stores   *storage.Stores
	redis    *redis.Options
	pgConn   string
	pgDim    int
}

// WithConfig sets the pipeline and retrieval configuration.
// Default is config.Default().
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.cfg = cfg
	}
}

// WithAIConfig sets the AI provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider injects an AI provider instead of building the default
// OpenAI-compatible one. The extraction cache is not spliced into an
// injected provider; its extractor is used as given.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithStores injects a pre-built store bundle, bypassing driver selection.
func WithStores(stores *storage.Stores) DatabaseOption {
	return func(o *databaseOptions) {
		o.stores = stores
	}
}

// WithRedis places the KV and document status stores on Redis. The vector
// and graph stores stay on the Badger backend.
func WithRedis(opts redis.Options) DatabaseOption {
	return func(o *databaseOptions) {
		o.redis = &opts
	}
}

// WithPostgres places the vector store on PostgreSQL with pgvector, using
// the given embedding dimension. The document status store moves there too
// unless Redis is also configured, in which case Redis keeps it.
func WithPostgres(connString string, dim int) DatabaseOption {
	return func(o *databaseOptions) {
		o.pgConn = connString
		o.pgDim = dim
	}
}

// NewDatabase opens a database at the given path and wires the full stack:
// stores, AI provider, LLM cache, ingestion pipeline and retriever. An empty
// path opens an in-memory Badger backend, useful for tests and scratch work.
// The database owns everything it opens; Close releases it all.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		cfg:      config.Default(),
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	db := &Database{
		cfg:    options.cfg,
		logger: slog.Default().With("component", "database"),
	}

	if err := db.openStores(filePath, options); err != nil {
		return nil, err
	}

	provider, err := db.buildProvider(options)
	if err != nil {
		db.closeStores()
		return nil, err
	}
	db.provider = provider

	splitter, err := chunk.NewSplitter(
		options.cfg.TiktokenModel,
		options.cfg.ChunkTokenSize,
		options.cfg.ChunkOverlapTokens,
	)
	if err != nil {
		db.provider.Close()
		db.closeStores()
		return nil, err
	}

	pipeline, err := ingestion.NewPipeline(db.stores, provider, splitter, options.cfg)
	if err != nil {
		db.provider.Close()
		db.closeStores()
		return nil, err
	}
	db.pipeline = pipeline

	retriever, err := retrieval.NewRetriever(db.stores, provider.Embedder(), splitter, options.cfg)
	if err != nil {
		pipeline.Release()
		db.provider.Close()
		db.closeStores()
		return nil, err
	}
	db.retriever = retriever

	return db, nil
}

// openStores builds the store bundle: injected stores as-is, otherwise a
// Badger backend with Redis and PostgreSQL overrides per the options.
func (db *Database) openStores(filePath string, options *databaseOptions) error {
	if options.stores != nil {
		if err := options.stores.Validate(); err != nil {
			return err
		}
		db.stores = options.stores
		return nil
	}

	backend, err := badger.OpenBackend(filePath, filePath == "")
	if err != nil {
		return err
	}
	db.badgerBackend = backend

	stores := &storage.Stores{}
	if stores.KV, err = badger.NewKVStore(backend); err != nil {
		backend.Close()
		return err
	}
	if stores.Vectors, err = badger.NewVectorStore(backend); err != nil {
		backend.Close()
		return err
	}
	if stores.Graph, err = badger.NewGraphStore(backend); err != nil {
		backend.Close()
		return err
	}
	if stores.DocStatus, err = badger.NewDocStatusStore(backend); err != nil {
		backend.Close()
		return err
	}

	if options.redis != nil {
		if stores.KV, err = redis.NewKVStore(*options.redis); err != nil {
			backend.Close()
			return err
		}
		if stores.DocStatus, err = redis.NewDocStatusStore(*options.redis); err != nil {
			stores.KV.Close()
			backend.Close()
			return err
		}
	}

	if options.pgConn != "" {
		pgBackend, err := postgres.Open(context.Background(), options.pgConn, options.pgDim)
		if err != nil {
			stores.Close()
			backend.Close()
			return err
		}
		db.pgBackend = pgBackend
		if stores.Vectors, err = postgres.NewVectorStore(pgBackend); err != nil {
			pgBackend.Close()
			stores.Close()
			backend.Close()
			return err
		}
		if options.redis == nil {
			if stores.DocStatus, err = postgres.NewDocStatusStore(pgBackend); err != nil {
				pgBackend.Close()
				stores.Close()
				backend.Close()
				return err
			}
		}
	}

	db.stores = stores
	return nil
}

// buildProvider creates the AI provider and splices the content-addressed
// cache between the pipeline and the upstream client where enabled.
func (db *Database) buildProvider(options *databaseOptions) (ai.Provider, error) {
	injected := options.provider != nil

	base := options.provider
	if !injected {
		provider, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			return nil, err
		}
		base = provider
	}

	if !options.cfg.EnableLLMCache && !options.cfg.EnableExtractCache {
		return base, nil
	}

	c, err := cache.New(db.stores.KV)
	if err != nil {
		base.Close()
		return nil, err
	}

	llm := base.LLM()
	extractor := base.Extractor()
	if options.cfg.EnableLLMCache {
		llm = cache.WrapLLM(base.LLM(), c, options.aiConfig.LLMModel)
	}
	if options.cfg.EnableExtractCache && !injected {
		cached := cache.WrapLLM(base.LLM(), c, options.aiConfig.LLMModel)
		extractor, err = openai.NewExtractorWithLLM(options.aiConfig, cached)
		if err != nil {
			base.Close()
			return nil, err
		}
	}

	return &servicesProvider{inner: base, llm: llm, extractor: extractor}, nil
}

// Insert queues documents for ingestion and returns their IDs without
// waiting for processing to finish. Progress is tracked per document in the
// status store.
func (db *Database) Insert(ctx context.Context, contents ...string) ([]core.ID, error) {
	return db.pipeline.Insert(ctx, contents...)
}

// InsertAndWait queues documents and blocks until every one has reached a
// terminal status.
func (db *Database) InsertAndWait(ctx context.Context, contents ...string) ([]core.ID, error) {
	return db.pipeline.InsertAndWait(ctx, contents...)
}

// Query retrieves ranked context for a natural-language query.
func (db *Database) Query(ctx context.Context, query string) (*retrieval.Context, error) {
	return db.retriever.Retrieve(ctx, query)
}

// Status returns the processing record for a document.
func (db *Database) Status(ctx context.Context, docId core.ID) (*core.Document, error) {
	return db.stores.DocStatus.GetStatus(ctx, docId)
}

// ListByStatus returns all documents currently in the given status.
func (db *Database) ListByStatus(ctx context.Context, status core.DocStatus) ([]*core.Document, error) {
	return db.stores.DocStatus.ListByStatus(ctx, status)
}

// Reprocess requeues a document that previously reached a terminal status.
func (db *Database) Reprocess(ctx context.Context, docId core.ID) error {
	return db.pipeline.Reprocess(ctx, docId)
}

// Stores exposes the underlying store bundle.
func (db *Database) Stores() *storage.Stores {
	return db.stores
}

// Pipeline exposes the ingestion pipeline.
func (db *Database) Pipeline() *ingestion.Pipeline {
	return db.pipeline
}

// Retriever exposes the retrieval engine.
func (db *Database) Retriever() *retrieval.Retriever {
	return db.retriever
}

// Close drains the pipeline and releases the provider, the stores and the
// backends, in that order.
func (db *Database) Close() error {
	if db.pipeline != nil {
		db.pipeline.Release()
	}

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	return db.closeStores()
}

func (db *Database) closeStores() error {
	var firstErr error
	if db.stores != nil {
		if err := db.stores.Close(); err != nil {
			db.logger.Error("error closing stores", "err", err)
			firstErr = err
		}
	}
	if db.pgBackend != nil {
		if err := db.pgBackend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if db.badgerBackend != nil {
		if err := db.badgerBackend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// servicesProvider overrides selected services on an inner provider. It is
// how the cache decorator is spliced between the pipeline and the client.
type servicesProvider struct {
	inner     ai.Provider
	llm       ai.LLM
	extractor ai.Extractor
}

var _ ai.Provider = (*servicesProvider)(nil)

func (p *servicesProvider) LLM() ai.LLM {
	return p.llm
}

func (p *servicesProvider) Embedder() ai.Embedder {
	return p.inner.Embedder()
}

func (p *servicesProvider) Extractor() ai.Extractor {
	return p.extractor
}

func (p *servicesProvider) Close() error {
	return p.inner.Close()
}
