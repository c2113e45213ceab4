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

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/graphrag/ai"
)

// GraphExtractor implements ai.Extractor using an LLM with a structured
// delimiter-format extraction prompt.
type GraphExtractor struct {
	llm         ai.LLM
	entityTypes []string
	maxGleans   int
	logger      *slog.Logger
}

// newGraphExtractor is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGraphExtractor(config *ai.Config, llm ai.LLM) (*GraphExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &GraphExtractor{
		llm:         llm,
		entityTypes: config.EntityTypes,
		maxGleans:   config.MaxGleans,
		logger:      slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewExtractor creates a graph extractor with its own chat client using the
// provided configuration.
//
// Returns ai.Extractor interface to enforce abstraction.
func NewExtractor(config *ai.Config) (ai.Extractor, error) {
	llm, err := newLLM(config)
	if err != nil {
		return nil, err
	}
	return newGraphExtractor(config, llm)
}

// NewExtractorWithLLM creates a graph extractor on top of an existing chat
// client. This allows callers to wrap the client, for example with a
// content-addressed cache, before extraction uses it.
func NewExtractorWithLLM(config *ai.Config, llm ai.LLM) (ai.Extractor, error) {
	return newGraphExtractor(config, llm)
}

// ExtractGraph mines entity and relation candidates from a chunk of text.
// After the first pass it issues up to MaxGleans follow-up prompts asking the
// model for entities it missed.
func (e *GraphExtractor) ExtractGraph(ctx context.Context, chunkText string) (*ai.Extraction, error) {
	text := strings.TrimSpace(chunkText)
	if text == "" {
		return &ai.Extraction{}, nil
	}

	prompt := buildExtractionPrompt(e.entityTypes, text)
	response, err := e.llm.Complete(ctx, prompt, ai.WithTemperature(0.0))
	if err != nil {
		return nil, err
	}

	extraction, ok := parseExtraction(response)
	if !ok {
		e.logger.Warn("unparseable extraction response", "length", len(response))
		return nil, fmt.Errorf("%w: no parseable records", ai.ErrMalformedResponse)
	}

	for glean := 0; glean < e.maxGleans; glean++ {
		gleanResponse, err := e.llm.Complete(ctx, buildGleanPrompt(prompt, response), ai.WithTemperature(0.0))
		if err != nil {
			// The first pass already produced a usable result
			e.logger.Warn("glean pass failed", "pass", glean+1, "err", err)
			break
		}

		more, ok := parseExtraction(gleanResponse)
		if !ok || len(more.Entities)+len(more.Relations) == 0 {
			break
		}

		e.logger.Debug("glean pass found missed candidates",
			"pass", glean+1,
			"entities", len(more.Entities),
			"relations", len(more.Relations))
		extraction.Entities = append(extraction.Entities, more.Entities...)
		extraction.Relations = append(extraction.Relations, more.Relations...)
		response = response + "\n" + gleanResponse
	}

	e.logger.Debug("extracted graph candidates",
		"entities", len(extraction.Entities),
		"relations", len(extraction.Relations))
	return extraction, nil
}
