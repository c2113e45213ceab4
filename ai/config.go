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

package ai

import (
	"errors"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// LLMHost is the base URL for the chat-completion service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	LLMHost string

	// EmbeddingHost is the base URL for the embedding service API.
	EmbeddingHost string

	// LLMModel is the model identifier used for extraction and
	// summarization. Example: "qwen2.5:7b", "gpt-4o-mini"
	LLMModel string

	// EmbeddingModel is the model identifier used for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// MaxGleans is the number of follow-up extraction passes per chunk that
	// re-prompt the model for entities it missed on the first pass.
	// Default: 1
	MaxGleans int

	// EntityTypes are the categories offered to the model for entity
	// classification. Default: EntityTypes.
	EntityTypes []string
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithLLMHost sets the chat-completion service host URL.
func WithLLMHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithHost sets both LLM and embedding hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.LLMHost = host
		c.EmbeddingHost = host
	}
}

// WithLLMModel sets the chat model identifier.
func WithLLMModel(model string) ConfigOption {
	return func(c *Config) {
		c.LLMModel = model
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithMaxGleans sets the number of follow-up extraction passes.
func WithMaxGleans(n int) ConfigOption {
	return func(c *Config) {
		c.MaxGleans = n
	}
}

// WithEntityTypes overrides the entity categories offered to the model.
func WithEntityTypes(types []string) ConfigOption {
	return func(c *Config) {
		c.EntityTypes = types
	}
}

// DefaultConfig returns a Config with sensible defaults for local
// OpenAI-compatible services. By default, chat and embedding use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		LLMHost:        defaultHost,
		EmbeddingHost:  defaultHost,
		LLMModel:       "qwen2.5:7b",
		EmbeddingModel: "embeddinggemma",
		MaxGleans:      1,
		EntityTypes:    EntityTypes,
	}
}

// NewConfig creates a Config with the default values and applies the provided
// options. This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithLLMModel("gpt-4o-mini"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.LLMHost != "" && !strings.HasSuffix(c.LLMHost, "/v1") {
		c.LLMHost = strings.TrimSuffix(c.LLMHost, "/") + "/v1"
	}
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.LLMHost == "" {
		return errors.New("ai config: LLMHost is required")
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.LLMModel == "" {
		return errors.New("ai config: LLMModel is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.MaxGleans < 0 {
		return errors.New("ai config: MaxGleans must not be negative")
	}
	if len(c.EntityTypes) == 0 {
		return errors.New("ai config: EntityTypes must not be empty")
	}
	return nil
}
