// Package openai adapts the OpenAI Chat Completions API to the
// core.ReasoningBackend interface used by the request scheduler.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"

	"github.com/gridmind/gridmind/core"
)

// Options configure the OpenAI backend. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Backend wraps the OpenAI Chat Completions API behind core.ReasoningBackend.
type Backend struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Complete implements core.ReasoningBackend. Rate-limit responses are mapped
// to core.RateLimitError so the scheduler can absorb them into a cooldown.
func (b *Backend) Complete(ctx context.Context, req core.BackendRequest) (*core.BackendResponse, error) {
	maxTokens := b.opts.MaxCompletionTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	completion, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               b.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	})
	if err != nil {
		if rl, ok := asRateLimit(err); ok {
			return nil, rl
		}
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}

	return &core.BackendResponse{
		Text: completion.Choices[0].Message.Content,
		Usage: core.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

func asRateLimit(err error) (*core.RateLimitError, bool) {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		return nil, false
	}
	return &core.RateLimitError{RetryAfter: retryAfter(apiErr.Response)}, true
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
