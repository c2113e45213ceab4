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


// Package cache provides a content-addressed cache for LLM and embedding
// calls, built atop the storage.KVStore interface.
//
// Keys are BLAKE2b hashes of the request's semantic content (model, prompt,
// parameters), so identical requests hit the same entry regardless of which
// pipeline worker issues them. Writes are best-effort: a store failure only
// forfeits future hits and never fails the surrounding pipeline step.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/graphrag/storage"
)

// Cache is a content-addressed read-through cache over a KVStore.
// Entries are immutable and last-write-wins; no locking is needed.
type Cache struct {
	kv     storage.KVStore
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// New creates a Cache over the given KVStore.
func New(kv storage.KVStore, opts ...Option) (*Cache, error) {
	if kv == nil {
		return nil, errors.New("cache: kv store required")
	}
	c := &Cache{
		kv:     kv,
		logger: slog.Default().With("component", "cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key builds the content address for a request from its model identifier,
// prompt and any further parameters that affect the response.
func Key(model, prompt string, params ...string) []byte {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	key := make([]byte, len("llm:")+hex.EncodedLen(len(sum)))
	copy(key, "llm:")
	hex.Encode(key[len("llm:"):], sum)
	return key
}

// GetOrCompute returns the cached payload for key, or invokes compute,
// stores its result and returns it. Lookup and store failures are logged
// and treated as misses; compute errors are returned unchanged.
func (c *Cache) GetOrCompute(ctx context.Context, key []byte, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	value, err := c.kv.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("cache lookup failed, computing", "err", err)
	}

	value, err = compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.kv.Set(ctx, key, value); err != nil {
		// Best-effort: losing the entry only forfeits future hits
		c.logger.Warn("cache store failed", "err", err)
	}
	return value, nil
}
