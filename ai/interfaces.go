package ai

import "context"

// LLM is a minimal chat-completion contract. Implementations must be
// thread-safe for concurrent use.
type LLM interface {
	// Complete sends a prompt to the model and returns the raw text of the
	// response. Options control sampling and output limits per call.
	// Fails with ErrTimeout if the call exceeds its deadline, or ErrProvider
	// for any other upstream failure.
	Complete(ctx context.Context, prompt string, opts ...CallOption) (string, error)
}

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts. Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor mines a chunk of text for entity and relation candidates.
// Implementations must be thread-safe for concurrent use.
type Extractor interface {
	// ExtractGraph analyzes the chunk text and returns candidate entities
	// and relations. Candidates the model emitted in a malformed shape are
	// dropped, never fatal; a response with no parseable candidates at all
	// fails with ErrMalformedResponse.
	ExtractGraph(ctx context.Context, chunkText string) (*Extraction, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages LLM, Embedder and
// Extractor instances, ensuring they share configuration and resources.
type Provider interface {
	// LLM returns the chat-completion service.
	LLM() LLM

	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Extractor returns the graph extraction service.
	Extractor() Extractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

// CallOptions holds per-call parameters for LLM completions.
type CallOptions struct {
	// Temperature controls sampling randomness. Zero is deterministic.
	Temperature float64

	// MaxTokens caps the response length. Zero means provider default.
	MaxTokens int
}

// CallOption is a functional option for a single Complete call.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature for a call.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the response length for a call.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = n
	}
}

// ApplyCallOptions folds options into a CallOptions with zero defaults.
func ApplyCallOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
