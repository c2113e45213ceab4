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

// Package chunk splits document text into overlapping token-bounded chunks.
//
// Chunk boundaries are computed on the token sequence, not on bytes, so no
// chunk ever exceeds the configured token size. Consecutive chunks share a
// fixed number of overlap tokens. Ordinals are deterministic: splitting the
// same text with the same settings always yields the same chunks with the
// same IDs.
package chunk

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/poiesic/graphrag/core"
)

// fallbackEncoding is used when the configured model is unknown to the
// tokenizer registry (local models usually are).
const fallbackEncoding = "cl100k_base"

// Splitter splits text into token-bounded chunks with overlap.
// A Splitter is safe for concurrent use.
type Splitter struct {
	encoder *tiktoken.Tiktoken
	size    int
	overlap int
	logger  *slog.Logger
}

// NewSplitter creates a Splitter using the tokenizer for the given model.
// Unknown models fall back to the cl100k_base encoding. The overlap must be
// smaller than the chunk size so every step makes progress.
func NewSplitter(model string, size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk: size must be positive")
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.New("chunk: overlap must be in [0, size)")
	}

	logger := slog.Default().With("component", "splitter")

	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		logger.Debug("no tokenizer for model, using fallback encoding",
			"model", model, "encoding", fallbackEncoding)
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}

	return &Splitter{
		encoder: encoder,
		size:    size,
		overlap: overlap,
		logger:  logger,
	}, nil
}

// Split divides text into chunks of at most the configured token size, with
// consecutive chunks sharing the configured overlap. Whitespace-only text
// yields zero chunks. Text at or under the size yields exactly one chunk.
func (s *Splitter) Split(docId core.ID, text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := s.encoder.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil, nil
	}

	step := s.size - s.overlap
	var chunks []core.Chunk
	for start, ordinal := 0, 0; start < len(tokens); start, ordinal = start+step, ordinal+1 {
		end := min(start+s.size, len(tokens))

		// Tokens shared with the previous chunk. A short tail can be
		// entirely inside the previous chunk's window.
		overlapTokens := 0
		if ordinal > 0 {
			overlapTokens = min(s.overlap, end-start)
		}

		content := s.encoder.Decode(tokens[start:end])
		chunks = append(chunks, core.Chunk{
			Id:            core.ChunkID(docId, ordinal, content),
			DocId:         docId,
			Ordinal:       ordinal,
			Content:       content,
			Tokens:        end - start,
			OverlapTokens: overlapTokens,
		})

		if end == len(tokens) {
			break
		}
	}

	s.logger.Debug("split document",
		"doc", docId,
		"tokens", len(tokens),
		"chunks", len(chunks))
	return chunks, nil
}

// CountTokens returns the number of tokens the splitter's encoding assigns
// to text. Used for summary caps and retrieval budget trimming.
func (s *Splitter) CountTokens(text string) int {
	return len(s.encoder.Encode(text, nil, nil))
}

// TruncateTokens returns text cut to at most maxTokens tokens.
func (s *Splitter) TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := s.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return s.encoder.Decode(tokens[:maxTokens])
}
