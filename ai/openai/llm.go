package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/graphrag/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LLM implements ai.LLM using OpenAI-compatible chat APIs.
type LLM struct {
	client llms.Model
	logger *slog.Logger
}

// newLLM is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newLLM(config *ai.Config) (*LLM, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't
	// require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken("none"),
		openai.WithModel(config.LLMModel),
	)
	if err != nil {
		return nil, err
	}

	return &LLM{
		client: client,
		logger: slog.Default().With("component", "openai-llm"),
	}, nil
}

// NewLLM creates a chat-completion client using the provided configuration.
//
// Returns ai.LLM interface to enforce abstraction.
func NewLLM(config *ai.Config) (ai.LLM, error) {
	return newLLM(config)
}

// Complete sends a prompt to the model and returns the response text.
func (l *LLM) Complete(ctx context.Context, prompt string, opts ...ai.CallOption) (string, error) {
	o := ai.ApplyCallOptions(opts...)

	callOpts := []llms.CallOption{llms.WithTemperature(o.Temperature)}
	if o.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(o.MaxTokens))
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := l.client.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ai.ErrTimeout, err)
		}
		l.logger.Error("failed to generate content", "err", err)
		return "", fmt.Errorf("%w: %w", ai.ErrProvider, err)
	}

	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
	}
	return response.Choices[0].Content, nil
}
