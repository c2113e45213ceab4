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

package mock

import "github.com/poiesic/graphrag/ai"

// Provider is a test double for ai.Provider.
// It aggregates mock LLM, embedder and extractor instances.
type Provider struct {
	llm       *LLM
	embedder  *Embedder
	extractor *Extractor
}

// NewProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production
// constructors. Use GetLLM/GetEmbedder/GetExtractor to access concrete
// types for test assertions.
func NewProvider() ai.Provider {
	return &Provider{
		llm:       NewLLM(),
		embedder:  NewEmbedder(),
		extractor: NewExtractor(),
	}
}

// NewProviderWithServices creates a mock provider with custom mock services.
// This allows full control over the behavior of each service.
func NewProviderWithServices(llm *LLM, embedder *Embedder, extractor *Extractor) ai.Provider {
	return &Provider{
		llm:       llm,
		embedder:  embedder,
		extractor: extractor,
	}
}

// LLM returns the mock chat client.
func (p *Provider) LLM() ai.LLM {
	return p.llm
}

// Embedder returns the mock embedder.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Extractor returns the mock extractor.
func (p *Provider) Extractor() ai.Extractor {
	return p.extractor
}

// Close is a no-op for mock provider.
func (p *Provider) Close() error {
	return nil
}

// GetLLM returns the underlying mock chat client for test assertions.
func (p *Provider) GetLLM() *LLM {
	return p.llm
}

// GetEmbedder returns the underlying mock embedder for test assertions.
func (p *Provider) GetEmbedder() *Embedder {
	return p.embedder
}

// GetExtractor returns the underlying mock extractor for test assertions.
func (p *Provider) GetExtractor() *Extractor {
	return p.extractor
}
