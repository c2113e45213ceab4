package mock

import (
	"context"
	"sync"

	"github.com/poiesic/graphrag/ai"
)

// LLM is a test double for ai.LLM.
// It allows custom behavior injection via function fields.
type LLM struct {
	// CompleteFunc is called by Complete if set.
	// If nil, returns the canned Response.
	CompleteFunc func(ctx context.Context, prompt string, opts ...ai.CallOption) (string, error)

	// Response is returned by Complete when CompleteFunc is nil.
	Response string

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewLLM creates a mock chat client.
// Note: Returns concrete type to allow test assertions.
func NewLLM() *LLM {
	return &LLM{}
}

// Complete records the prompt and returns the scripted response.
func (m *LLM) Complete(ctx context.Context, prompt string, opts ...ai.CallOption) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, opts...)
	}
	return m.Response, nil
}

// CallCount returns the number of times Complete was called.
func (m *LLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of all prompts Complete received, in order.
func (m *LLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears the call count, recorded prompts and custom function.
func (m *LLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.CompleteFunc = nil
}
