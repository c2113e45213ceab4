// Package mock provides test double implementations of the ai service
// interfaces.
//
// This package contains mock implementations of ai.LLM, ai.Embedder,
// ai.Extractor and ai.Provider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	provider := mock.NewProvider()
//	vector, err := provider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	llm := mock.NewLLM()
//	llm.CompleteFunc = func(ctx context.Context, prompt string, opts ...ai.CallOption) (string, error) {
//	    return "scripted response", nil
//	}
//
//	// Check call counts
//	count := llm.CallCount()
//
// # Default Behavior
//
//   - LLM: Returns the canned Response field (empty by default)
//   - Embedder: Returns deterministic unit vectors based on text hash
//   - Extractor: Derives simple word-based entity and relation candidates
//   - Provider: Aggregates the three mocks
package mock
