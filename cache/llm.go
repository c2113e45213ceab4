package cache

import (
	"context"
	"strconv"

	"github.com/poiesic/graphrag/ai"
)

// CachedLLM is a read-through decorator around an ai.LLM. Responses are
// keyed by model, prompt and call parameters, so repeated identical calls
// are served from the cache without touching the provider.
type CachedLLM struct {
	inner ai.LLM
	cache *Cache
	model string
}

var _ ai.LLM = (*CachedLLM)(nil)

// WrapLLM decorates an LLM with the cache. The model identifier is part of
// the cache key; switching models never serves stale responses.
func WrapLLM(inner ai.LLM, c *Cache, model string) ai.LLM {
	return &CachedLLM{inner: inner, cache: c, model: model}
}

// Complete returns the cached response for this exact call, or forwards to
// the wrapped LLM and caches its result.
func (l *CachedLLM) Complete(ctx context.Context, prompt string, opts ...ai.CallOption) (string, error) {
	o := ai.ApplyCallOptions(opts...)
	key := Key(l.model, prompt,
		strconv.FormatFloat(o.Temperature, 'g', -1, 64),
		strconv.Itoa(o.MaxTokens))

	payload, err := l.cache.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		text, err := l.inner.Complete(ctx, prompt, opts...)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
	if err != nil {
		return "", err
	}
	return string(payload), nil
}
