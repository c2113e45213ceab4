package cache

import (
	"context"
	"testing"

	"github.com/poiesic/graphrag/ai"
	"github.com/poiesic/graphrag/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapLLM_RepeatCallHitsCache(t *testing.T) {
	c := newTestCache(t)
	llm := mock.NewLLM()
	llm.Response = "answer"

	cached := WrapLLM(llm, c, "test-model")
	ctx := context.Background()

	text, err := cached.Complete(ctx, "question", ai.WithTemperature(0.0))
	require.NoError(t, err)
	assert.Equal(t, "answer", text)

	text, err = cached.Complete(ctx, "question", ai.WithTemperature(0.0))
	require.NoError(t, err)
	assert.Equal(t, "answer", text)
	assert.Equal(t, 1, llm.CallCount(), "repeat call must be served from cache")
}

func TestWrapLLM_ParametersPartitionEntries(t *testing.T) {
	c := newTestCache(t)
	llm := mock.NewLLM()
	llm.Response = "answer"

	cached := WrapLLM(llm, c, "test-model")
	ctx := context.Background()

	_, err := cached.Complete(ctx, "question", ai.WithTemperature(0.0))
	require.NoError(t, err)
	_, err = cached.Complete(ctx, "question", ai.WithTemperature(0.7))
	require.NoError(t, err)

	assert.Equal(t, 2, llm.CallCount(), "different temperature is a different entry")
}
