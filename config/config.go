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


package config

import (
	"errors"
	"time"
)

// Config holds the pipeline and retrieval knobs honored by the core.
// Values are the contract; the CLI maps flags onto them.
type Config struct {
	// ChunkTokenSize is the maximum number of tokens per chunk.
	ChunkTokenSize int

	// ChunkOverlapTokens is the number of tokens shared between consecutive chunks.
	ChunkOverlapTokens int

	// TiktokenModel selects the tokenizer used for chunking and budget trimming.
	TiktokenModel string

	// MaxAsync bounds concurrent LLM calls across all documents.
	MaxAsync int

	// MaxParallelInsert bounds concurrently processed documents.
	MaxParallelInsert int

	// EmbeddingConcurrency bounds concurrent embedding calls.
	EmbeddingConcurrency int

	// EmbeddingBatchSize is the maximum number of texts per embedding call.
	EmbeddingBatchSize int

	// ForceLLMSummaryOnMerge is the number of distinct description fragments
	// accumulated on an entity or relation that triggers LLM re-summarization.
	ForceLLMSummaryOnMerge int

	// MaxTokenSummary caps entity/relation descriptions, merged or re-summarized.
	MaxTokenSummary int

	// CosineThreshold discards vector matches scoring below it.
	CosineThreshold float32

	// TopK is the number of vector matches requested per query.
	TopK int

	// MaxGraphNodes caps graph expansion during retrieval.
	MaxGraphNodes int

	// MaxTokenTextChunk is the retrieval token budget for chunk content.
	MaxTokenTextChunk int

	// MaxTokenEntityDesc is the retrieval token budget for entity descriptions.
	MaxTokenEntityDesc int

	// MaxTokenRelationDesc is the retrieval token budget for relation descriptions.
	MaxTokenRelationDesc int

	// EnableLLMCache caches general LLM calls.
	EnableLLMCache bool

	// EnableExtractCache caches extraction-specific LLM calls.
	EnableExtractCache bool

	// LLMTimeout bounds each individual LLM call.
	LLMTimeout time.Duration

	// MaxRetries is the attempt count for retryable LLM, embedding and
	// idempotent storage calls.
	MaxRetries int

	// RetryBaseDelay is the base backoff delay, doubled per attempt.
	RetryBaseDelay time.Duration
}

// Option is a functional option for configuring a Config.
type Option func(*Config)

// WithChunking sets the chunk token size and overlap.
func WithChunking(size, overlap int) Option {
	return func(c *Config) {
		c.ChunkTokenSize = size
		c.ChunkOverlapTokens = overlap
	}
}

// WithTiktokenModel sets the tokenizer model.
func WithTiktokenModel(model string) Option {
	return func(c *Config) {
		c.TiktokenModel = model
	}
}

// WithMaxAsync sets the global LLM concurrency bound.
func WithMaxAsync(n int) Option {
	return func(c *Config) {
		c.MaxAsync = n
	}
}

// WithMaxParallelInsert sets the document-level parallelism bound.
func WithMaxParallelInsert(n int) Option {
	return func(c *Config) {
		c.MaxParallelInsert = n
	}
}

// WithEmbedding sets the embedding concurrency bound and batch size.
func WithEmbedding(concurrency, batchSize int) Option {
	return func(c *Config) {
		c.EmbeddingConcurrency = concurrency
		c.EmbeddingBatchSize = batchSize
	}
}

// WithForceLLMSummaryOnMerge sets the fragment count that triggers re-summarization.
func WithForceLLMSummaryOnMerge(n int) Option {
	return func(c *Config) {
		c.ForceLLMSummaryOnMerge = n
	}
}

// WithMaxTokenSummary sets the description token cap.
func WithMaxTokenSummary(n int) Option {
	return func(c *Config) {
		c.MaxTokenSummary = n
	}
}

// WithCosineThreshold sets the minimum similarity for vector matches.
func WithCosineThreshold(threshold float32) Option {
	return func(c *Config) {
		c.CosineThreshold = threshold
	}
}

// WithTopK sets the number of vector matches requested per query.
func WithTopK(k int) Option {
	return func(c *Config) {
		c.TopK = k
	}
}

// WithMaxGraphNodes caps graph expansion during retrieval.
func WithMaxGraphNodes(n int) Option {
	return func(c *Config) {
		c.MaxGraphNodes = n
	}
}

// WithTokenBudgets sets the per-field retrieval token budgets.
func WithTokenBudgets(chunk, entity, relation int) Option {
	return func(c *Config) {
		c.MaxTokenTextChunk = chunk
		c.MaxTokenEntityDesc = entity
		c.MaxTokenRelationDesc = relation
	}
}

// WithLLMCache enables or disables caching for general LLM calls.
func WithLLMCache(enabled bool) Option {
	return func(c *Config) {
		c.EnableLLMCache = enabled
	}
}

// WithExtractCache enables or disables caching for extraction calls.
func WithExtractCache(enabled bool) Option {
	return func(c *Config) {
		c.EnableExtractCache = enabled
	}
}

// WithLLMTimeout bounds each individual LLM call.
func WithLLMTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LLMTimeout = d
	}
}

// WithRetry sets the attempt count and base backoff delay for retryable calls.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryBaseDelay = baseDelay
	}
}

// Default returns a Config with the defaults used across the pipeline.
func Default() *Config {
	return &Config{
		ChunkTokenSize:         1200,
		ChunkOverlapTokens:     100,
		TiktokenModel:          "gpt-4o-mini",
		MaxAsync:               4,
		MaxParallelInsert:      2,
		EmbeddingConcurrency:   4,
		EmbeddingBatchSize:     32,
		ForceLLMSummaryOnMerge: 4,
		MaxTokenSummary:        500,
		CosineThreshold:        0.2,
		TopK:                   60,
		MaxGraphNodes:          1000,
		MaxTokenTextChunk:      4000,
		MaxTokenEntityDesc:     4000,
		MaxTokenRelationDesc:   4000,
		EnableLLMCache:         true,
		EnableExtractCache:     true,
		LLMTimeout:             180 * time.Second,
		MaxRetries:             3,
		RetryBaseDelay:         time.Second,
	}
}

// New creates a Config with defaults and applies the provided options.
func New(opts ...Option) *Config {
	cfg := Default()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ChunkTokenSize < 1 {
		return errors.New("config: ChunkTokenSize must be positive")
	}
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkTokenSize {
		return errors.New("config: ChunkOverlapTokens must be in [0, ChunkTokenSize)")
	}
	if c.MaxAsync < 1 {
		return errors.New("config: MaxAsync must be positive")
	}
	if c.MaxParallelInsert < 1 {
		return errors.New("config: MaxParallelInsert must be positive")
	}
	if c.EmbeddingConcurrency < 1 {
		return errors.New("config: EmbeddingConcurrency must be positive")
	}
	if c.EmbeddingBatchSize < 1 {
		return errors.New("config: EmbeddingBatchSize must be positive")
	}
	if c.ForceLLMSummaryOnMerge < 2 {
		return errors.New("config: ForceLLMSummaryOnMerge must be at least 2")
	}
	if c.MaxTokenSummary < 1 {
		return errors.New("config: MaxTokenSummary must be positive")
	}
	if c.CosineThreshold < 0 || c.CosineThreshold > 1 {
		return errors.New("config: CosineThreshold must be in [0, 1]")
	}
	if c.TopK < 1 {
		return errors.New("config: TopK must be positive")
	}
	if c.MaxGraphNodes < 1 {
		return errors.New("config: MaxGraphNodes must be positive")
	}
	if c.MaxTokenTextChunk < 1 || c.MaxTokenEntityDesc < 1 || c.MaxTokenRelationDesc < 1 {
		return errors.New("config: token budgets must be positive")
	}
	if c.MaxRetries < 1 {
		return errors.New("config: MaxRetries must be positive")
	}
	return nil
}
