package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/graphrag/ai"
)

// Extractor is a test double for ai.Extractor.
// It allows custom behavior injection via function fields.
type Extractor struct {
	// ExtractGraphFunc is called by ExtractGraph if set.
	// If nil, uses default simple word extraction.
	ExtractGraphFunc func(ctx context.Context, chunkText string) (*ai.Extraction, error)

	mu        sync.Mutex
	callCount int
}

// NewExtractor creates a mock extractor with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractGraph extracts simple mock candidates from text.
// Default behavior: the first few distinct words become entities and
// consecutive pairs of them become relations.
func (m *Extractor) ExtractGraph(ctx context.Context, chunkText string) (*ai.Extraction, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractGraphFunc != nil {
		return m.ExtractGraphFunc(ctx, chunkText)
	}

	extraction := &ai.Extraction{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(chunkText)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true

		extraction.Entities = append(extraction.Entities, ai.EntityCandidate{
			Name:        word,
			Type:        "concept",
			Description: "mention of " + word,
		})
		if len(extraction.Entities) >= 4 {
			break
		}
	}

	for i := 1; i < len(extraction.Entities); i++ {
		extraction.Relations = append(extraction.Relations, ai.RelationCandidate{
			Source:      extraction.Entities[i-1].Name,
			Target:      extraction.Entities[i].Name,
			Description: "co-occurrence",
			Keywords:    "mention",
			Weight:      1.0,
		})
	}

	return extraction, nil
}

// CallCount returns the number of times ExtractGraph was called.
func (m *Extractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom function.
func (m *Extractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractGraphFunc = nil
}
